// Package api provides the HTTP API for the weekly briefing.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/pipeline"
	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/runlog"
)

// Runner executes briefing runs.
type Runner interface {
	Preview(ctx context.Context, lang, trigger string) (*pipeline.Result, error)
	Publish(ctx context.Context, lang, trigger string) (*pipeline.Result, error)
	DefaultLanguage() string
}

// RunLister lists recorded runs.
type RunLister interface {
	Recent(ctx context.Context, limit int) ([]runlog.Entry, error)
}

// Server holds the dependencies for the API.
type Server struct {
	runner     Runner
	runs       RunLister
	corsOrigin string
	logger     *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithRunLog exposes recorded runs on GET /briefing/runs.
func WithRunLog(runs RunLister) Option {
	return func(s *Server) { s.runs = runs }
}

// WithCORSOrigin allows browser calls from origin.
func WithCORSOrigin(origin string) Option {
	return func(s *Server) { s.corsOrigin = origin }
}

// NewServer creates a new API Server instance.
func NewServer(runner Runner, opts ...Option) *Server {
	s := &Server{
		runner: runner,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the configured http.Handler for the API.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot())

	mux.HandleFunc("GET /briefing/weekly", s.handleWeekly())
	mux.HandleFunc("GET /briefing/publish", s.handlePublish())
	mux.HandleFunc("POST /briefing/publish", s.handlePublish())
	mux.HandleFunc("GET /briefing/runs", s.handleRuns())

	mux.Handle("GET /metrics", promhttp.Handler())

	return s.logRequests(s.cors(mux))
}

// --- Middleware ---

func (s *Server) cors(next http.Handler) http.Handler {
	if s.corsOrigin == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"query", r.URL.RawQuery,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

// --- Helpers ---

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"detail": message})
}
