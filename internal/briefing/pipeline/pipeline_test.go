package pipeline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/aggregator"
	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/publisher"
	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/runlog"
	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/sources"
	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/summarizer"
	"github.com/RobinCoderZhao/nk-briefing/pkg/llm"
	"github.com/RobinCoderZhao/nk-briefing/pkg/notify"
)

type fakeCollector struct {
	bundle   *aggregator.Bundle
	window   sources.DateRange
	maxItems int
	calls    int
}

func (f *fakeCollector) Collect(_ context.Context, window sources.DateRange, maxItems int) *aggregator.Bundle {
	f.calls++
	f.window = window
	f.maxItems = maxItems
	if f.bundle == nil {
		return &aggregator.Bundle{}
	}
	return f.bundle
}

type fakeGenerator struct {
	article *summarizer.Article
	err     error
	text    string
	lang    string
	calls   int
}

func (f *fakeGenerator) Summarize(_ context.Context, text, lang string) (*summarizer.Article, error) {
	f.calls++
	f.text = text
	f.lang = lang
	return f.article, f.err
}

type fakePoster struct {
	result *publisher.Result
	err    error
	posts  []publisher.Post
}

func (f *fakePoster) Publish(_ context.Context, post publisher.Post) (*publisher.Result, error) {
	f.posts = append(f.posts, post)
	return f.result, f.err
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []runlog.Entry
	err     error
}

func (f *fakeRecorder) Record(_ context.Context, e runlog.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return f.err
}

func oneItemBundle() *aggregator.Bundle {
	return &aggregator.Bundle{Sections: []aggregator.Section{{
		Source: "trend",
		Items:  []sources.TrendItem{{Title: "미사일 발사", Content: "동해상으로 탄도미사일 발사", Source: "trend"}},
	}}}
}

func goodArticle(lang string) *summarizer.Article {
	return &summarizer.Article{Language: lang, Title: "북한 주간 동향", HTMLBody: "<div><p>요약</p></div>"}
}

func newTestPipeline(c Collector, g Generator, p Poster, r Recorder) *Pipeline {
	var opts []Option
	if r != nil {
		opts = append(opts, WithRecorder(r))
	}
	pl := New(Config{WindowDays: 7, MaxItems: 5}, c, g, p, opts...)
	pl.now = func() time.Time { return time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC) }
	return pl
}

func TestPreview(t *testing.T) {
	col := &fakeCollector{bundle: oneItemBundle()}
	gen := &fakeGenerator{article: goodArticle("en")}
	post := &fakePoster{}
	rec := &fakeRecorder{}
	p := newTestPipeline(col, gen, post, rec)

	res, err := p.Preview(context.Background(), "EN", TriggerAPI)
	if err != nil {
		t.Fatal(err)
	}
	if res.Language != "en" || res.Items != 1 || res.Article.Title != "북한 주간 동향" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.RunID == "" {
		t.Fatal("expected a run id")
	}
	if len(post.posts) != 0 {
		t.Fatalf("preview must not publish, got %d posts", len(post.posts))
	}
	if gen.lang != "en" || !strings.Contains(gen.text, "===== [trend] =====") {
		t.Fatalf("unexpected summarizer input lang=%s text=%q", gen.lang, gen.text)
	}
	if col.maxItems != 5 {
		t.Fatalf("expected max items 5, got %d", col.maxItems)
	}
	wantFrom := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	if col.window.From.Format("20060102") != wantFrom.Format("20060102") || col.window.To.Format("20060102") != "20250310" {
		t.Fatalf("unexpected window %s", col.window)
	}
	if len(rec.entries) != 1 || rec.entries[0].Status != runlog.StatusPreviewed || rec.entries[0].ID != res.RunID {
		t.Fatalf("unexpected run log %+v", rec.entries)
	}
}

func TestPublish(t *testing.T) {
	gen := &fakeGenerator{article: goodArticle("ko")}
	post := &fakePoster{result: &publisher.Result{PostURL: "https://example.tistory.com/7"}}
	rec := &fakeRecorder{}
	p := newTestPipeline(&fakeCollector{bundle: oneItemBundle()}, gen, post, rec)

	res, err := p.Publish(context.Background(), "", TriggerSchedule)
	if err != nil {
		t.Fatal(err)
	}
	if res.Language != "ko" {
		t.Fatalf("expected default language ko, got %s", res.Language)
	}
	if res.PostURL != "https://example.tistory.com/7" {
		t.Fatalf("unexpected post url %q", res.PostURL)
	}
	if len(post.posts) != 1 || post.posts[0].Language != "ko" || post.posts[0].HTMLBody != "<div><p>요약</p></div>" {
		t.Fatalf("unexpected posts %+v", post.posts)
	}
	e := rec.entries[0]
	if e.Status != runlog.StatusPublished || e.Trigger != TriggerSchedule || e.PostURL != res.PostURL {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestRun_NoData(t *testing.T) {
	gen := &fakeGenerator{article: goodArticle("ko")}
	post := &fakePoster{}
	rec := &fakeRecorder{}
	p := newTestPipeline(&fakeCollector{}, gen, post, rec)

	res, err := p.Publish(context.Background(), "ko", TriggerSchedule)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if res != nil {
		t.Fatalf("expected no result, got %+v", res)
	}
	if gen.calls != 0 || len(post.posts) != 0 {
		t.Fatalf("expected no summarize or publish, got %d/%d", gen.calls, len(post.posts))
	}
	if rec.entries[0].Status != runlog.StatusNoData {
		t.Fatalf("expected no_data status, got %s", rec.entries[0].Status)
	}
}

func TestRun_UnsupportedLanguage(t *testing.T) {
	col := &fakeCollector{bundle: oneItemBundle()}
	rec := &fakeRecorder{}
	p := newTestPipeline(col, &fakeGenerator{}, nil, rec)

	if _, err := p.Preview(context.Background(), "xx", TriggerAPI); !errors.Is(err, ErrUnsupportedLanguage) {
		t.Fatalf("expected ErrUnsupportedLanguage, got %v", err)
	}
	if col.calls != 0 || len(rec.entries) != 0 {
		t.Fatal("expected rejection before any work")
	}
}

func TestRun_Failures(t *testing.T) {
	tests := []struct {
		name    string
		gen     *fakeGenerator
		poster  Poster
		publish bool
		want    error
	}{
		{
			name: "generation error",
			gen:  &fakeGenerator{article: &summarizer.Article{Title: summarizer.ErrorTitle}, err: summarizer.ErrGeneration},
			want: summarizer.ErrGeneration,
		},
		{
			name: "empty body",
			gen:  &fakeGenerator{article: &summarizer.Article{Title: "제목"}},
			want: ErrIncompleteArticle,
		},
		{
			name: "wrapper without text",
			gen:  &fakeGenerator{article: &summarizer.Article{Title: "제목", HTMLBody: "<div></div>"}},
			want: ErrIncompleteArticle,
		},
		{
			name: "summarizer reports empty body",
			gen:  &fakeGenerator{article: &summarizer.Article{Title: "제목", HTMLBody: "<div></div>"}, err: summarizer.ErrEmptyBody},
			want: ErrIncompleteArticle,
		},
		{
			name: "blank title",
			gen:  &fakeGenerator{article: &summarizer.Article{Title: "  ", HTMLBody: "<p>x</p>"}},
			want: ErrIncompleteArticle,
		},
		{
			name:    "publish unconfirmed",
			gen:     &fakeGenerator{article: goodArticle("ko")},
			poster:  &fakePoster{},
			publish: true,
			want:    ErrNotPublished,
		},
		{
			name:    "publish error",
			gen:     &fakeGenerator{article: goodArticle("ko")},
			poster:  &fakePoster{err: publisher.ErrNoCategory},
			publish: true,
			want:    publisher.ErrNoCategory,
		},
		{
			name:    "no publisher",
			gen:     &fakeGenerator{article: goodArticle("ko")},
			publish: true,
			want:    publisher.ErrNoCredentials,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecorder{}
			p := newTestPipeline(&fakeCollector{bundle: oneItemBundle()}, tt.gen, tt.poster, rec)
			res, err := p.Run(context.Background(), Request{Language: "ko", Publish: tt.publish})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if res != nil {
				t.Fatalf("expected no result, got %+v", res)
			}
			if len(rec.entries) != 1 || rec.entries[0].Status != runlog.StatusFailed || rec.entries[0].Error == "" {
				t.Fatalf("unexpected run log %+v", rec.entries)
			}
			if rec.entries[0].Trigger != TriggerAPI {
				t.Fatalf("expected default trigger api, got %s", rec.entries[0].Trigger)
			}
		})
	}
}

func TestRun_RecorderErrorIgnored(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("disk full")}
	p := newTestPipeline(&fakeCollector{bundle: oneItemBundle()}, &fakeGenerator{article: goodArticle("ko")}, nil, rec)
	if _, err := p.Preview(context.Background(), "ko", TriggerCLI); err != nil {
		t.Fatalf("expected recorder failure to be logged only, got %v", err)
	}
}

func TestResolveLanguage(t *testing.T) {
	p := New(Config{DefaultLanguage: "ja"}, &fakeCollector{}, &fakeGenerator{}, nil)
	tests := []struct {
		in, want string
		ok       bool
	}{
		{"", "ja", true},
		{" ZH ", "zh", true},
		{"id", "id", true},
		{"kr", "", false},
	}
	for _, tt := range tests {
		got, err := p.ResolveLanguage(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ResolveLanguage(%q) = %q, %v", tt.in, got, err)
		}
	}
	if p.DefaultLanguage() != "ja" {
		t.Fatalf("unexpected default %s", p.DefaultLanguage())
	}
}

type stubSource struct {
	name  string
	items []sources.TrendItem
	err   error
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(context.Context, sources.DateRange, int) ([]sources.TrendItem, error) {
	return s.items, s.err
}

type scriptedLLM struct {
	content string
	prompts []string
}

func (m *scriptedLLM) Generate(_ context.Context, req *llm.Request) (*llm.Response, error) {
	for _, msg := range req.Messages {
		if msg.Role == "user" {
			m.prompts = append(m.prompts, msg.Content)
		}
	}
	return &llm.Response{Content: m.content, Model: "mock"}, nil
}

func (m *scriptedLLM) Provider() llm.Provider { return "mock" }

func TestEndToEnd_MissileWeek(t *testing.T) {
	var posted string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		posted = string(body)
		_, _ = w.Write([]byte(`{"entryUrl":"https://nk.tistory.com/101"}`))
	}))
	defer srv.Close()

	agg := aggregator.New(
		&stubSource{name: "trend", items: []sources.TrendItem{{Title: "탄도미사일 발사", Content: "북한이 동해상으로 탄도미사일을 발사했다.", Source: "trend"}}},
		&stubSource{name: "news", err: errors.New("upstream down")},
		&stubSource{name: "board"},
	)
	model := &scriptedLLM{content: "제목: 북한, 동해상 탄도미사일 발사\n본문: <p>북한이 이번 주 탄도미사일을 발사했습니다.</p>"}
	sum := summarizer.New(summarizer.Config{}, model, nil)

	pubCfg := publisher.DefaultConfig()
	pubCfg.BaseURL = srv.URL
	pubCfg.SessionCookie = "session"
	pub, err := publisher.New(pubCfg, summarizer.Categories(nil))
	if err != nil {
		t.Fatal(err)
	}

	p := New(Config{}, agg, sum, pub)
	res, err := p.Publish(context.Background(), "ko", TriggerCLI)
	if err != nil {
		t.Fatal(err)
	}
	if res.PostURL != "https://nk.tistory.com/101" || res.Items != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Article.Title != "북한, 동해상 탄도미사일 발사" {
		t.Fatalf("unexpected title %q", res.Article.Title)
	}
	if len(model.prompts) != 1 || !strings.Contains(model.prompts[0], "[탄도미사일 발사]") {
		t.Fatalf("expected aggregated text in the prompt, got %v", model.prompts)
	}
	if !strings.Contains(posted, "탄도미사일을 발사했습니다") {
		t.Fatalf("expected article body in post, got %s", posted)
	}
}

func TestEndToEnd_EmptyBodyIsNotPublished(t *testing.T) {
	var posts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts++
		_, _ = w.Write([]byte(`{"entryUrl":"https://nk.tistory.com/102"}`))
	}))
	defer srv.Close()

	agg := aggregator.New(&stubSource{name: "trend", items: []sources.TrendItem{{Title: "회의", Content: "전원회의 개최", Source: "trend"}}})
	sum := summarizer.New(summarizer.Config{}, &scriptedLLM{content: "제목: [좋은 제목]\n본문: []"}, nil)

	pubCfg := publisher.DefaultConfig()
	pubCfg.BaseURL = srv.URL
	pubCfg.SessionCookie = "session"
	pub, err := publisher.New(pubCfg, summarizer.Categories(nil))
	if err != nil {
		t.Fatal(err)
	}

	rec := &fakeRecorder{}
	p := New(Config{}, agg, sum, pub, WithRecorder(rec))
	if _, err := p.Publish(context.Background(), "ko", TriggerCLI); !errors.Is(err, ErrIncompleteArticle) {
		t.Fatalf("expected ErrIncompleteArticle, got %v", err)
	}
	if posts != 0 {
		t.Fatalf("expected nothing posted, got %d posts", posts)
	}
	if len(rec.entries) != 1 || rec.entries[0].Status != runlog.StatusFailed {
		t.Fatalf("unexpected run log %+v", rec.entries)
	}
}

type fakeAnnouncer struct {
	msgs []notify.Message
}

func (f *fakeAnnouncer) Dispatch(_ context.Context, msg notify.Message) error {
	f.msgs = append(f.msgs, msg)
	return nil
}

func TestAnnouncer(t *testing.T) {
	ann := &fakeAnnouncer{}
	post := &fakePoster{result: &publisher.Result{PostURL: "https://nk.tistory.com/9"}}
	p := New(Config{}, &fakeCollector{bundle: oneItemBundle()}, &fakeGenerator{article: goodArticle("ko")}, post, WithAnnouncer(ann))

	if _, err := p.Publish(context.Background(), "ko", TriggerSchedule); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Preview(context.Background(), "ko", TriggerAPI); err != nil {
		t.Fatal(err)
	}
	post.result = nil
	if _, err := p.Publish(context.Background(), "ko", TriggerSchedule); !errors.Is(err, ErrNotPublished) {
		t.Fatalf("expected ErrNotPublished, got %v", err)
	}

	if len(ann.msgs) != 2 {
		t.Fatalf("expected announcements for publish and failure only, got %d", len(ann.msgs))
	}
	if ann.msgs[0].Status != runlog.StatusPublished || ann.msgs[0].URL != "https://nk.tistory.com/9" || ann.msgs[0].Body != "북한 주간 동향" {
		t.Fatalf("unexpected publish message %+v", ann.msgs[0])
	}
	if ann.msgs[1].Status != runlog.StatusFailed || !strings.Contains(ann.msgs[1].Body, "did not confirm") {
		t.Fatalf("unexpected failure message %+v", ann.msgs[1])
	}
}
