// Package metrics provides Prometheus metrics for the briefing pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SourceFetchTotal counts source fetches by outcome (ok, empty, skipped, error).
	SourceFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "briefing",
			Name:      "source_fetch_total",
			Help:      "Total number of source fetches by outcome",
		},
		[]string{"source", "outcome"},
	)

	// SourceItems observes how many items a source returned.
	SourceItems = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "briefing",
			Name:      "source_items",
			Help:      "Distribution of items returned per source fetch",
			Buckets:   []float64{0, 1, 5, 10, 20, 30, 50, 100},
		},
		[]string{"source"},
	)

	// StageDuration measures pipeline stage duration.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "briefing",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	// RunsTotal counts pipeline runs.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "briefing",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs",
		},
		[]string{"trigger", "language", "status"},
	)

	// LLMTokensTotal counts tokens consumed by text generation.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "briefing",
			Name:      "llm_tokens_total",
			Help:      "Total number of LLM tokens by direction",
		},
		[]string{"direction"},
	)

	// ImageGenerationsTotal counts image generation attempts by status.
	ImageGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "briefing",
			Name:      "image_generations_total",
			Help:      "Total number of image generation attempts",
		},
		[]string{"status"},
	)
)

// RecordSourceFetch records one source fetch.
func RecordSourceFetch(source, outcome string, items int) {
	SourceFetchTotal.WithLabelValues(source, outcome).Inc()
	SourceItems.WithLabelValues(source).Observe(float64(items))
}

// RecordStage records the duration of a pipeline stage.
func RecordStage(stage string, seconds float64) {
	StageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordRun records a finished pipeline run.
func RecordRun(trigger, language, status string) {
	RunsTotal.WithLabelValues(trigger, language, status).Inc()
}

// RecordTokens records token usage of one generation.
func RecordTokens(in, out int) {
	LLMTokensTotal.WithLabelValues("in").Add(float64(in))
	LLMTokensTotal.WithLabelValues("out").Add(float64(out))
}

// RecordImage records an image generation attempt.
func RecordImage(status string) {
	ImageGenerationsTotal.WithLabelValues(status).Inc()
}
