package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestExtractText_Simple(t *testing.T) {
	html := `<html><body><h1>Title</h1><p>Hello world</p><ul><li>Item 1</li><li>Item 2</li></ul></body></html>`
	text := ExtractText(html)
	if !strings.Contains(text, "Title") {
		t.Errorf("expected 'Title' in output, got: %s", text)
	}
	if !strings.Contains(text, "Hello world") {
		t.Errorf("expected 'Hello world' in output, got: %s", text)
	}
	if !strings.Contains(text, "- Item 1") {
		t.Errorf("expected '- Item 1' in output, got: %s", text)
	}
}

func TestExtractText_RemovesScripts(t *testing.T) {
	html := `<html><body><script>alert('xss')</script><p>Content</p><style>.foo{}</style></body></html>`
	text := ExtractText(html)
	if strings.Contains(text, "alert") {
		t.Errorf("expected script content to be removed, got: %s", text)
	}
	if strings.Contains(text, ".foo") {
		t.Errorf("expected style content to be removed, got: %s", text)
	}
	if !strings.Contains(text, "Content") {
		t.Errorf("expected 'Content' in output, got: %s", text)
	}
}

func TestExtractText_RemovesNav(t *testing.T) {
	html := `<html><body><nav><a href="/">Home</a></nav><main><p>Main content</p></main><footer>Footer</footer></body></html>`
	text := ExtractText(html)
	if strings.Contains(text, "Home") {
		t.Errorf("expected nav content to be removed, got: %s", text)
	}
	if strings.Contains(text, "Footer") {
		t.Errorf("expected footer content to be removed, got: %s", text)
	}
	if !strings.Contains(text, "Main content") {
		t.Errorf("expected 'Main content' in output, got: %s", text)
	}
}

func TestExtractText_NoBlankLines(t *testing.T) {
	text := ExtractText(`<div><p>one</p><div></div><p>two</p></div>`)
	if text != "one\ntwo" {
		t.Errorf("expected blank lines collapsed, got %q", text)
	}
}

func TestFetcher_Document(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "test-agent") {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><div class="view">본문</div></body></html>`))
	}))
	defer srv.Close()

	f := NewFetcher(Options{UserAgent: "test-agent"})
	doc, err := f.Document(context.Background(), srv.URL+"/view?id=1")
	if err != nil {
		t.Fatal(err)
	}
	if got := doc.Find(".view").Text(); got != "본문" {
		t.Fatalf("expected '본문', got %q", got)
	}
	if doc.Url == nil || doc.Url.Path != "/view" {
		t.Fatalf("expected document URL to be set, got %v", doc.Url)
	}
}

func TestFetcher_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(Options{})
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestFetcher_PacesPerHost(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte("<p>ok</p>"))
	}))
	defer srv.Close()

	f := NewFetcher(Options{Interval: 50 * time.Millisecond})
	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := f.Fetch(context.Background(), srv.URL); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Fatalf("expected requests to be paced, took %s", elapsed)
	}
	if hits != 3 {
		t.Fatalf("expected 3 hits, got %d", hits)
	}
}
