package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/pipeline"
	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/summarizer"
)

const (
	welcomeMessage = "북한 브리핑 AI 서비스에 오신 것을 환영합니다."
	noDataDetail   = "북한 동향 데이터를 불러오지 못했습니다."
)

type rootResponse struct {
	Message         string   `json:"message"`
	Languages       []string `json:"languages"`
	DefaultLanguage string   `json:"default_language"`
}

type weeklyResponse struct {
	Status       string `json:"status"`
	Title        string `json:"title"`
	Summary      string `json:"summary"`
	ImageURL     string `json:"image_url,omitempty"`
	LanguageUsed string `json:"language_used"`
}

type publishResponse struct {
	Status       string `json:"status"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	ImageURL     string `json:"image_url,omitempty"`
	LanguageUsed string `json:"language_used"`
}

func (s *Server) handleRoot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, rootResponse{
			Message:         welcomeMessage,
			Languages:       summarizer.Codes(),
			DefaultLanguage: s.runner.DefaultLanguage(),
		})
	}
}

func (s *Server) handleWeekly() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.runner.Preview(r.Context(), r.URL.Query().Get("language"), pipeline.TriggerAPI)
		if err != nil {
			s.respondRunError(w, err, "")
			return
		}
		respondJSON(w, http.StatusOK, weeklyResponse{
			Status:       "success",
			Title:        res.Article.Title,
			Summary:      res.Article.HTMLBody,
			ImageURL:     res.Article.ImageURL,
			LanguageUsed: res.Language,
		})
	}
}

func (s *Server) handlePublish() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.runner.Publish(r.Context(), r.URL.Query().Get("language"), pipeline.TriggerAPI)
		if err != nil {
			s.respondRunError(w, err, "게시 실패: ")
			return
		}
		respondJSON(w, http.StatusOK, publishResponse{
			Status:       "published",
			Title:        res.Article.Title,
			URL:          res.PostURL,
			ImageURL:     res.Article.ImageURL,
			LanguageUsed: res.Language,
		})
	}
}

func (s *Server) handleRuns() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.runs == nil {
			respondError(w, http.StatusNotFound, "run log is not enabled")
			return
		}
		var limit int
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
				return
			}
			limit = n
		}
		entries, err := s.runs.Recent(r.Context(), limit)
		if err != nil {
			s.logger.Error("list runs failed", "error", err)
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{"runs": entries})
	}
}

// respondRunError maps pipeline errors to status codes: unsupported
// language 400, no data 404, anything else 500.
func (s *Server) respondRunError(w http.ResponseWriter, err error, prefix string) {
	switch {
	case errors.Is(err, pipeline.ErrUnsupportedLanguage):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, pipeline.ErrNoData):
		respondError(w, http.StatusNotFound, noDataDetail)
	default:
		s.logger.Error("briefing run failed", "error", err)
		respondError(w, http.StatusInternalServerError, prefix+err.Error())
	}
}
