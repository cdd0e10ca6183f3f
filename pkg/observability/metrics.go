package observability

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the research pipeline instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	runsTotal       metric.Int64Counter
	iterationsTotal metric.Int64Counter
	retriesTotal    metric.Int64Counter
	searchResults   metric.Int64Counter
	skippedSources  metric.Int64Counter

	runDuration   metric.Float64Histogram
	stageDuration metric.Float64Histogram

	activeRuns      metric.Int64ObservableGauge
	activeRunsCount atomic.Int64
}

// NewMetrics creates and initializes all metrics
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.runsTotal, err = meter.Int64Counter(
		"research_runs_total",
		metric.WithDescription("Total number of finished research runs"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.iterationsTotal, err = meter.Int64Counter(
		"research_iterations_total",
		metric.WithDescription("Total number of research loop iterations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.retriesTotal, err = meter.Int64Counter(
		"research_failed_attempts_total",
		metric.WithDescription("Total number of failed attempts seen by the retry executor"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.searchResults, err = meter.Int64Counter(
		"research_search_results_total",
		metric.WithDescription("Total number of search results kept after capping"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.skippedSources, err = meter.Int64Counter(
		"research_skipped_sources_total",
		metric.WithDescription("Total number of sources skipped during extraction"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.runDuration, err = meter.Float64Histogram(
		"research_run_duration_seconds",
		metric.WithDescription("Duration of research runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.stageDuration, err = meter.Float64Histogram(
		"research_stage_duration_seconds",
		metric.WithDescription("Duration of pipeline stages in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.activeRuns, err = meter.Int64ObservableGauge(
		"research_active_runs",
		metric.WithDescription("Number of research runs in progress"),
		metric.WithUnit("1"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.activeRunsCount.Load())
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RunStarted marks a run as active.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.activeRunsCount.Add(1)
}

// RecordRun records a finished run with its outcome ("completed", "failed", "canceled").
func (m *Metrics) RecordRun(ctx context.Context, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.activeRunsCount.Add(-1)
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.runsTotal.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, duration.Seconds(), attrs)
}

func (m *Metrics) RecordIteration(ctx context.Context) {
	if m == nil {
		return
	}
	m.iterationsTotal.Add(ctx, 1)
}

func (m *Metrics) RecordRetry(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.retriesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

func (m *Metrics) RecordSearchResults(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.searchResults.Add(ctx, int64(n))
}

func (m *Metrics) RecordSkippedSource(ctx context.Context) {
	if m == nil {
		return
	}
	m.skippedSources.Add(ctx, 1)
}

// RecordStage records the duration of one stage execution.
func (m *Metrics) RecordStage(ctx context.Context, stage string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.stageDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("status", status),
		),
	)
}
