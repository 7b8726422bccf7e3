// Package scheduler runs the weekly per-language briefing jobs on cron.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/pipeline"
	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/summarizer"
)

// DefaultTimezone is the zone publish hours are expressed in.
const DefaultTimezone = "Asia/Seoul"

// Job represents a scheduled task.
type Job struct {
	Name     string
	Schedule string // standard 5-field cron expression
	Fn       func(ctx context.Context) error
}

// Scheduler runs jobs at their cron schedules.
type Scheduler struct {
	mu     sync.Mutex
	jobs   []Job
	loc    *time.Location
	cron   *cron.Cron
	logger *slog.Logger
	done   chan struct{}
	stop   sync.Once
}

// New creates a scheduler evaluating schedules in loc. A nil loc uses UTC.
func New(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		loc:    loc,
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
}

// LoadLocation resolves a timezone name, defaulting to DefaultTimezone.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// WeeklySpec returns the cron expression for hour:00 on weekday.
func WeeklySpec(weekday time.Weekday, hour int) string {
	return fmt.Sprintf("0 %d * * %d", hour, int(weekday))
}

// Add registers a job. The schedule is validated immediately.
func (s *Scheduler) Add(job Job) error {
	if job.Fn == nil {
		return fmt.Errorf("job %s: no function", job.Name)
	}
	if _, err := cron.ParseStandard(job.Schedule); err != nil {
		return fmt.Errorf("job %s: invalid schedule %q: %w", job.Name, job.Schedule, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	return nil
}

// Jobs returns the registered jobs.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, len(s.jobs))
	copy(out, s.jobs)
	return out
}

// Next returns when job runs next after from, in the scheduler's location.
func (s *Scheduler) Next(job Job, from time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(job.Schedule)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(from.In(s.loc)), nil
}

// RunOnce executes every registered job once, in order. A failing job does
// not stop the others; all failures are returned joined.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs []error
	for _, job := range s.Jobs() {
		if err := s.run(ctx, job); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", job.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) run(ctx context.Context, job Job) error {
	s.logger.Info("running job", "name", job.Name)
	start := time.Now()
	if err := job.Fn(ctx); err != nil {
		s.logger.Error("job failed", "name", job.Name, "error", err, "duration", time.Since(start))
		return err
	}
	s.logger.Info("job completed", "name", job.Name, "duration", time.Since(start))
	return nil
}

// Start registers all jobs with cron and blocks until ctx is cancelled or
// Stop is called. Running jobs are waited for before it returns.
func (s *Scheduler) Start(ctx context.Context) error {
	logger := cronLogger{s.logger}
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger)),
	)
	for _, job := range s.Jobs() {
		if _, err := c.AddFunc(job.Schedule, func() { _ = s.run(ctx, job) }); err != nil {
			return fmt.Errorf("schedule %s: %w", job.Name, err)
		}
		next, _ := s.Next(job, time.Now())
		s.logger.Info("job scheduled", "name", job.Name, "schedule", job.Schedule, "next", next)
	}

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()

	c.Start()
	s.logger.Info("scheduler started", "jobs", len(c.Entries()), "timezone", s.loc.String())

	select {
	case <-ctx.Done():
	case <-s.done:
	}
	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// Stop stops the scheduler. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.stop.Do(func() { close(s.done) })
}

// Briefer publishes one language's briefing.
type Briefer interface {
	Publish(ctx context.Context, lang, trigger string) (*pipeline.Result, error)
}

// BriefingJobs returns one weekly publishing job per profile, each run
// recorded under trigger. A week without data ends the job quietly without
// publishing.
func BriefingJobs(b Briefer, profiles []summarizer.LanguageProfile, trigger string) []Job {
	jobs := make([]Job, 0, len(profiles))
	for _, p := range profiles {
		lang := string(p.Code)
		jobs = append(jobs, Job{
			Name:     "briefing-" + lang,
			Schedule: WeeklySpec(p.PublishWeekday, p.PublishHour),
			Fn: func(ctx context.Context) error {
				res, err := b.Publish(ctx, lang, trigger)
				if errors.Is(err, pipeline.ErrNoData) {
					slog.Info("no data for the week, nothing published", "language", lang)
					return nil
				}
				if err != nil {
					return err
				}
				slog.Info("weekly briefing published", "language", lang, "url", res.PostURL)
				return nil
			},
		})
	}
	return jobs
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
