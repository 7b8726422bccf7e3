// Package app wires configuration into a runnable briefing service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/RobinCoderZhao/nk-briefing/internal/api"
	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/aggregator"
	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/pipeline"
	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/publisher"
	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/runlog"
	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/scheduler"
	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/sources"
	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/summarizer"
	"github.com/RobinCoderZhao/nk-briefing/internal/config"
	"github.com/RobinCoderZhao/nk-briefing/pkg/llm"
	"github.com/RobinCoderZhao/nk-briefing/pkg/notify"
)

// App holds the long-lived components built from one Config.
type App struct {
	Config   config.Config
	Pipeline *pipeline.Pipeline
	Runs     *runlog.Store // nil when the run log is disabled
}

// New builds every component. Close releases the run log.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	client, err := llm.NewClient(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}
	var images llm.ImageClient
	if cfg.Summarizer.Image.Enabled {
		images = client
	}

	pub, err := publisher.New(cfg.Publisher, summarizer.Categories(cfg.Publisher.Categories))
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg}

	var opts []pipeline.Option
	if cfg.RunlogDB != "" {
		a.Runs, err = runlog.Open(ctx, cfg.RunlogDB)
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithRecorder(a.Runs))
	}
	if d := notify.NewDispatcher(cfg.Notify); d.Len() > 0 {
		opts = append(opts, pipeline.WithAnnouncer(d))
	}

	a.Pipeline = pipeline.New(
		cfg.Pipeline,
		aggregator.New(Sources(cfg.Sources)...),
		summarizer.New(cfg.Summarizer, client, images),
		pub,
		opts...,
	)
	return a, nil
}

// Sources builds the configured sources in registration order. Sources
// without an endpoint are left out.
func Sources(cfg config.SourcesConfig) []sources.Source {
	var out []sources.Source
	for _, c := range []sources.APIConfig{cfg.Trend, cfg.News} {
		if c.URL == "" {
			slog.Debug("source disabled, no url", "source", c.Name)
			continue
		}
		if c.APIKey == "" {
			c.APIKey = cfg.DataAPIKey
		}
		out = append(out, sources.NewAPISource(c, nil))
	}
	if cfg.Board.ListURL != "" {
		out = append(out, sources.NewBoardSource(cfg.Board, nil))
	} else {
		slog.Debug("source disabled, no url", "source", cfg.Board.Name)
	}
	return out
}

// Handler returns the HTTP API for this app.
func (a *App) Handler() http.Handler {
	opts := []api.Option{api.WithCORSOrigin(a.Config.Server.CORSOrigin)}
	if a.Runs != nil {
		opts = append(opts, api.WithRunLog(a.Runs))
	}
	return api.NewServer(a.Pipeline, opts...).Routes()
}

// Scheduler returns a scheduler with one weekly job per language profile,
// its runs recorded under trigger.
func (a *App) Scheduler(trigger string) (*scheduler.Scheduler, error) {
	loc, err := scheduler.LoadLocation(a.Config.Schedule.Timezone)
	if err != nil {
		return nil, err
	}
	s := scheduler.New(loc)
	for _, job := range scheduler.BriefingJobs(a.Pipeline, summarizer.Profiles(), trigger) {
		if err := s.Add(job); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Close releases held resources.
func (a *App) Close() error {
	var errs []error
	if a.Runs != nil {
		errs = append(errs, a.Runs.Close())
	}
	return errors.Join(errs...)
}
