// Package aggregator fans out to every configured source and merges what
// succeeded into one text blob tagged by source.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/sources"
	"github.com/RobinCoderZhao/nk-briefing/internal/metrics"
)

// NoDataSentinel is returned by Aggregate when no source produced anything.
const NoDataSentinel = "해당 기간에 대한 북한 동향 데이터가 없습니다."

const defaultConcurrency = 4

// Section holds the items one source returned.
type Section struct {
	Source string
	Items  []sources.TrendItem
}

// Bundle is the merged output of one collection run, in registration order.
type Bundle struct {
	Sections []Section
}

// Empty reports whether no source contributed items.
func (b *Bundle) Empty() bool {
	return b == nil || len(b.Sections) == 0
}

// Items returns the number of items across all sections.
func (b *Bundle) Items() int {
	if b == nil {
		return 0
	}
	n := 0
	for _, s := range b.Sections {
		n += len(s.Items)
	}
	return n
}

// Text renders the bundle with one banner per source, or NoDataSentinel when empty.
func (b *Bundle) Text() string {
	if b.Empty() {
		return NoDataSentinel
	}
	var sb strings.Builder
	for i, sec := range b.Sections {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "===== [%s] =====\n", sec.Source)
		for _, it := range sec.Items {
			fmt.Fprintf(&sb, "[%s]\n%s\n\n", it.Title, it.Content)
		}
	}
	return strings.TrimSpace(sb.String())
}

// Aggregator collects from a fixed set of sources.
type Aggregator struct {
	sources     []sources.Source
	concurrency int
	logger      *slog.Logger
}

// New creates an aggregator over srcs. Order of srcs is the section order.
func New(srcs ...sources.Source) *Aggregator {
	return &Aggregator{
		sources:     srcs,
		concurrency: defaultConcurrency,
		logger:      slog.Default(),
	}
}

// Sources returns the registered source names.
func (a *Aggregator) Sources() []string {
	names := make([]string, len(a.sources))
	for i, s := range a.sources {
		names[i] = s.Name()
	}
	return names
}

// Collect fetches every source in parallel. A failing or empty source is
// logged and left out; it never affects the others.
func (a *Aggregator) Collect(ctx context.Context, window sources.DateRange, maxItems int) *Bundle {
	results := make([][]sources.TrendItem, len(a.sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, src := range a.sources {
		g.Go(func() error {
			results[i] = a.fetchOne(gctx, src, window, maxItems)
			return nil
		})
	}
	_ = g.Wait()

	bundle := &Bundle{}
	for i, items := range results {
		if len(items) == 0 {
			continue
		}
		bundle.Sections = append(bundle.Sections, Section{Source: a.sources[i].Name(), Items: items})
	}

	a.logger.Info("collection finished",
		"window", window.String(),
		"sources", len(a.sources),
		"with_data", len(bundle.Sections),
		"items", bundle.Items(),
	)
	return bundle
}

// Aggregate collects and renders the text blob. It never returns "".
func (a *Aggregator) Aggregate(ctx context.Context, window sources.DateRange, maxItems int) string {
	return a.Collect(ctx, window, maxItems).Text()
}

func (a *Aggregator) fetchOne(ctx context.Context, src sources.Source, window sources.DateRange, maxItems int) []sources.TrendItem {
	name := src.Name()
	start := time.Now()

	items, err := src.Fetch(ctx, window, maxItems)
	switch {
	case errors.Is(err, sources.ErrNoCredentials):
		a.logger.Warn("source skipped", "source", name, "reason", "no credentials")
		metrics.RecordSourceFetch(name, "skipped", 0)
		return nil
	case err != nil:
		a.logger.Error("source failed", "source", name, "error", err, "duration", time.Since(start))
		metrics.RecordSourceFetch(name, "error", 0)
		return nil
	case len(items) == 0:
		a.logger.Info("source returned no items", "source", name, "duration", time.Since(start))
		metrics.RecordSourceFetch(name, "empty", 0)
		return nil
	}

	a.logger.Info("source fetched", "source", name, "items", len(items), "duration", time.Since(start))
	metrics.RecordSourceFetch(name, "ok", len(items))
	return items
}
