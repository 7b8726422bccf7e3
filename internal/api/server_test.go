package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/pipeline"
	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/runlog"
	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/summarizer"
)

type fakeRunner struct {
	err       error
	lastLang  string
	published bool
}

func (f *fakeRunner) result(lang string) (*pipeline.Result, error) {
	f.lastLang = lang
	if f.err != nil {
		return nil, f.err
	}
	if lang == "" {
		lang = "ko"
	}
	return &pipeline.Result{
		RunID:    "run-1",
		Language: lang,
		Article:  &summarizer.Article{Language: lang, Title: "북한 주간 동향", HTMLBody: "<div>요약</div>", ImageURL: "https://img.example.com/1.png"},
		PostURL:  "https://nk.tistory.com/5",
		Items:    3,
	}, nil
}

func (f *fakeRunner) Preview(_ context.Context, lang, trigger string) (*pipeline.Result, error) {
	if trigger != pipeline.TriggerAPI {
		return nil, fmt.Errorf("unexpected trigger %s", trigger)
	}
	return f.result(lang)
}

func (f *fakeRunner) Publish(_ context.Context, lang, trigger string) (*pipeline.Result, error) {
	if trigger != pipeline.TriggerAPI {
		return nil, fmt.Errorf("unexpected trigger %s", trigger)
	}
	f.published = true
	return f.result(lang)
}

func (f *fakeRunner) DefaultLanguage() string { return "ko" }

type fakeRuns struct {
	entries []runlog.Entry
	limit   int
}

func (f *fakeRuns) Recent(_ context.Context, limit int) ([]runlog.Entry, error) {
	f.limit = limit
	return f.entries, nil
}

func serve(t *testing.T, h http.Handler, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body %q: %v", rec.Body.String(), err)
		}
	}
	return rec, body
}

func TestRoot(t *testing.T) {
	h := NewServer(&fakeRunner{}).Routes()
	rec, body := serve(t, h, http.MethodGet, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["message"] != welcomeMessage || body["default_language"] != "ko" {
		t.Fatalf("unexpected body %v", body)
	}
	if langs, ok := body["languages"].([]any); !ok || len(langs) != 12 {
		t.Fatalf("expected 12 languages, got %v", body["languages"])
	}

	rec, _ = serve(t, h, http.MethodGet, "/unknown")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown path, got %d", rec.Code)
	}
}

func TestWeekly(t *testing.T) {
	runner := &fakeRunner{}
	h := NewServer(runner).Routes()
	rec, body := serve(t, h, http.MethodGet, "/briefing/weekly?language=en")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	want := map[string]any{
		"status":        "success",
		"title":         "북한 주간 동향",
		"summary":       "<div>요약</div>",
		"image_url":     "https://img.example.com/1.png",
		"language_used": "en",
	}
	for k, v := range want {
		if body[k] != v {
			t.Errorf("%s = %v, want %v", k, body[k], v)
		}
	}
	if runner.published {
		t.Fatal("weekly must not publish")
	}
}

func TestPublish_GetAndPost(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		runner := &fakeRunner{}
		h := NewServer(runner).Routes()
		rec, body := serve(t, h, method, "/briefing/publish?language=ja")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", method, rec.Code)
		}
		if body["status"] != "published" || body["url"] != "https://nk.tistory.com/5" || body["language_used"] != "ja" {
			t.Fatalf("%s: unexpected body %v", method, body)
		}
		if !runner.published || runner.lastLang != "ja" {
			t.Fatalf("%s: expected publish run for ja", method)
		}
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target string
		status int
		detail string
	}{
		{"unsupported language", fmt.Errorf("%w: %q", pipeline.ErrUnsupportedLanguage, "xx"), "/briefing/weekly?language=xx", http.StatusBadRequest, "unsupported language"},
		{"no data", pipeline.ErrNoData, "/briefing/weekly", http.StatusNotFound, noDataDetail},
		{"generation failure", fmt.Errorf("summarize: %w", summarizer.ErrGeneration), "/briefing/weekly", http.StatusInternalServerError, "generation"},
		{"publish failure", pipeline.ErrNotPublished, "/briefing/publish", http.StatusInternalServerError, "게시 실패"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewServer(&fakeRunner{err: tt.err}).Routes()
			rec, body := serve(t, h, http.MethodGet, tt.target)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			detail, _ := body["detail"].(string)
			if !strings.Contains(detail, tt.detail) {
				t.Fatalf("expected detail containing %q, got %q", tt.detail, detail)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := NewServer(&fakeRunner{}).Routes()
	rec, _ := serve(t, h, http.MethodDelete, "/briefing/publish")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestRuns(t *testing.T) {
	h := NewServer(&fakeRunner{}).Routes()
	rec, _ := serve(t, h, http.MethodGet, "/briefing/runs")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without run log, got %d", rec.Code)
	}

	runs := &fakeRuns{entries: []runlog.Entry{{ID: "r1", Language: "ko", Status: runlog.StatusPublished, StartedAt: time.Now()}}}
	h = NewServer(&fakeRunner{}, WithRunLog(runs)).Routes()
	rec, body := serve(t, h, http.MethodGet, "/briefing/runs?limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if list, ok := body["runs"].([]any); !ok || len(list) != 1 {
		t.Fatalf("unexpected runs %v", body["runs"])
	}
	if runs.limit != 5 {
		t.Fatalf("expected limit 5, got %d", runs.limit)
	}
}

func TestRuns_InvalidLimit(t *testing.T) {
	runs := &fakeRuns{limit: -99}
	h := NewServer(&fakeRunner{}, WithRunLog(runs)).Routes()
	for _, q := range []string{"abc", "-1", "2.5"} {
		rec, body := serve(t, h, http.MethodGet, "/briefing/runs?limit="+q)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("limit=%s: expected 400, got %d", q, rec.Code)
		}
		if detail, _ := body["detail"].(string); !strings.Contains(detail, "limit") {
			t.Fatalf("limit=%s: unexpected detail %v", q, body["detail"])
		}
	}
	if runs.limit != -99 {
		t.Fatal("run log must not be queried for an invalid limit")
	}

	rec, _ := serve(t, h, http.MethodGet, "/briefing/runs")
	if rec.Code != http.StatusOK || runs.limit != 0 {
		t.Fatalf("expected default limit, got %d with limit %d", rec.Code, runs.limit)
	}
}

func TestCORS(t *testing.T) {
	h := NewServer(&fakeRunner{}, WithCORSOrigin("http://localhost:3000")).Routes()
	req := httptest.NewRequest(http.MethodOptions, "/briefing/weekly", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Fatalf("missing CORS header")
	}
}

func TestMetrics(t *testing.T) {
	h := NewServer(&fakeRunner{}).Routes()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatal("expected prometheus exposition")
	}
}

func TestRunnerErrorDoesNotLeakAsSuccess(t *testing.T) {
	h := NewServer(&fakeRunner{err: errors.New("boom")}).Routes()
	rec, body := serve(t, h, http.MethodPost, "/briefing/publish")
	if rec.Code != http.StatusInternalServerError || body["status"] != nil {
		t.Fatalf("unexpected response %d %v", rec.Code, body)
	}
}
