// Package pipeline runs one briefing: collect, summarize and optionally
// publish, for a single language.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/aggregator"
	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/publisher"
	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/runlog"
	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/sources"
	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/summarizer"
	"github.com/RobinCoderZhao/nk-briefing/internal/metrics"
	"github.com/RobinCoderZhao/nk-briefing/pkg/notify"
)

// Run triggers.
const (
	TriggerAPI      = "api"
	TriggerSchedule = "schedule"
	TriggerCLI      = "cli"
)

var (
	// ErrNoData means no source returned anything for the window.
	ErrNoData = errors.New("no North Korea trend data for the period")
	// ErrUnsupportedLanguage is returned for codes without a profile.
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrIncompleteArticle means the generated article lacks a title or body.
	ErrIncompleteArticle = errors.New("generated article is missing a title or body")
	// ErrNotPublished means the blog did not confirm the post.
	ErrNotPublished = errors.New("blog did not confirm the post")
)

// Collector gathers trend data for a window.
type Collector interface {
	Collect(ctx context.Context, window sources.DateRange, maxItems int) *aggregator.Bundle
}

// Generator turns text into an article.
type Generator interface {
	Summarize(ctx context.Context, text, lang string) (*summarizer.Article, error)
}

// Poster publishes an article.
type Poster interface {
	Publish(ctx context.Context, post publisher.Post) (*publisher.Result, error)
}

// Recorder stores run outcomes.
type Recorder interface {
	Record(ctx context.Context, e runlog.Entry) error
}

// Announcer tells operators about published and failed runs.
type Announcer interface {
	Dispatch(ctx context.Context, msg notify.Message) error
}

// Config holds run parameters.
type Config struct {
	WindowDays      int    `yaml:"window_days" env:"WINDOW_DAYS"`
	MaxItems        int    `yaml:"max_items" env:"MAX_ITEMS"`
	DefaultLanguage string `yaml:"default_language" env:"DEFAULT_LANGUAGE"`
}

// DefaultConfig returns run defaults.
func DefaultConfig() Config {
	return Config{
		WindowDays:      7,
		MaxItems:        30,
		DefaultLanguage: string(summarizer.DefaultLanguage),
	}
}

// Request selects what one run does.
type Request struct {
	Language string
	Trigger  string
	Publish  bool
}

// Result is the outcome of a successful run.
type Result struct {
	RunID    string              `json:"run_id"`
	Language string              `json:"language"`
	Article  *summarizer.Article `json:"article"`
	PostURL  string              `json:"post_url,omitempty"`
	Items    int                 `json:"items"`
}

// Pipeline wires the stages together. It holds no per-run state.
type Pipeline struct {
	cfg       Config
	collector Collector
	generator Generator
	poster    Poster
	recorder  Recorder
	announcer Announcer
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRecorder records every run outcome.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithAnnouncer sends a message after every published or failed run.
func WithAnnouncer(a Announcer) Option {
	return func(p *Pipeline) { p.announcer = a }
}

// New creates a pipeline. poster may be nil when only previews are run.
func New(cfg Config, collector Collector, generator Generator, poster Poster, opts ...Option) *Pipeline {
	def := DefaultConfig()
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = def.WindowDays
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = def.MaxItems
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = def.DefaultLanguage
	}
	p := &Pipeline{
		cfg:       cfg,
		collector: collector,
		generator: generator,
		poster:    poster,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DefaultLanguage returns the language used when a request names none.
func (p *Pipeline) DefaultLanguage() string {
	return p.cfg.DefaultLanguage
}

// ResolveLanguage normalises code, falling back to the default for "".
func (p *Pipeline) ResolveLanguage(code string) (string, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		code = p.cfg.DefaultLanguage
	}
	if !summarizer.Supported(code) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	}
	return code, nil
}

// Preview generates an article without publishing it.
func (p *Pipeline) Preview(ctx context.Context, lang, trigger string) (*Result, error) {
	return p.Run(ctx, Request{Language: lang, Trigger: trigger})
}

// Publish generates and publishes an article.
func (p *Pipeline) Publish(ctx context.Context, lang, trigger string) (*Result, error) {
	return p.Run(ctx, Request{Language: lang, Trigger: trigger, Publish: true})
}

// Run executes the stages in order. Any stage failure ends the run.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	lang, err := p.ResolveLanguage(req.Language)
	if err != nil {
		return nil, err
	}
	if req.Trigger == "" {
		req.Trigger = TriggerAPI
	}

	started := p.now()
	res := &Result{RunID: uuid.NewString(), Language: lang}
	logger := p.logger.With("run_id", res.RunID, "language", lang, "trigger", req.Trigger)
	logger.Info("run started", "publish", req.Publish)

	err = p.run(ctx, req, res, started, logger)
	p.finish(ctx, req, res, started, err, logger)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, req Request, res *Result, started time.Time, logger *slog.Logger) error {
	window := sources.LastNDays(started, p.cfg.WindowDays)

	t := time.Now()
	bundle := p.collector.Collect(ctx, window, p.cfg.MaxItems)
	metrics.RecordStage("collect", time.Since(t).Seconds())
	if bundle.Empty() {
		return ErrNoData
	}
	res.Items = bundle.Items()

	t = time.Now()
	article, err := p.generator.Summarize(ctx, bundle.Text(), res.Language)
	metrics.RecordStage("summarize", time.Since(t).Seconds())
	if errors.Is(err, summarizer.ErrEmptyBody) {
		return fmt.Errorf("%w: %w", ErrIncompleteArticle, err)
	}
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}
	if article == nil || strings.TrimSpace(article.Title) == "" || !summarizer.HasText(article.HTMLBody) {
		return ErrIncompleteArticle
	}
	res.Article = article

	if !req.Publish {
		return nil
	}
	if p.poster == nil {
		return fmt.Errorf("publish: %w", publisher.ErrNoCredentials)
	}

	t = time.Now()
	out, err := p.poster.Publish(ctx, publisher.Post{Title: article.Title, HTMLBody: article.HTMLBody, Language: res.Language})
	metrics.RecordStage("publish", time.Since(t).Seconds())
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if out == nil {
		return ErrNotPublished
	}
	res.PostURL = out.PostURL
	logger.Info("article published", "url", out.PostURL)
	return nil
}

func (p *Pipeline) finish(ctx context.Context, req Request, res *Result, started time.Time, runErr error, logger *slog.Logger) {
	status := runlog.StatusPreviewed
	switch {
	case errors.Is(runErr, ErrNoData):
		status = runlog.StatusNoData
	case runErr != nil:
		status = runlog.StatusFailed
	case req.Publish:
		status = runlog.StatusPublished
	}

	finished := p.now()
	metrics.RecordRun(req.Trigger, res.Language, status)
	if runErr != nil {
		logger.Warn("run ended", "status", status, "error", runErr, "duration", finished.Sub(started))
	} else {
		logger.Info("run ended", "status", status, "items", res.Items, "duration", finished.Sub(started))
	}

	p.announce(ctx, status, res, runErr, logger)

	if p.recorder == nil {
		return
	}
	entry := runlog.Entry{
		ID:         res.RunID,
		Trigger:    req.Trigger,
		Language:   res.Language,
		Status:     status,
		Items:      res.Items,
		PostURL:    res.PostURL,
		StartedAt:  started,
		FinishedAt: finished,
	}
	if runErr != nil {
		entry.Error = runErr.Error()
	}
	if err := p.recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
		logger.Error("record run failed", "error", err)
	}
}

func (p *Pipeline) announce(ctx context.Context, status string, res *Result, runErr error, logger *slog.Logger) {
	if p.announcer == nil {
		return
	}
	msg := notify.Message{Language: res.Language, Status: status}
	switch status {
	case runlog.StatusPublished:
		msg.Title = fmt.Sprintf("[%s] 주간 브리핑 게시 완료", res.Language)
		msg.Body = res.Article.Title
		msg.URL = res.PostURL
	case runlog.StatusFailed:
		msg.Title = fmt.Sprintf("[%s] 주간 브리핑 실패", res.Language)
		msg.Body = runErr.Error()
	default:
		return
	}
	if err := p.announcer.Dispatch(context.WithoutCancel(ctx), msg); err != nil {
		logger.Warn("announce run failed", "error", err)
	}
}
