package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// FetchMetricsMeterName is the name used for the source fetch meter
	FetchMetricsMeterName = "github.com/stacklok/registry-mirror/sources"

	// RunMetricsMeterName is the name used for the pipeline run meter
	RunMetricsMeterName = "github.com/stacklok/registry-mirror/sync"
)

// FetchMetrics holds the instruments recorded once per source and run
type FetchMetrics struct {
	fetchDuration  metric.Float64Histogram
	fetchedRecords metric.Int64Counter
}

// NewFetchMetrics creates FetchMetrics with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewFetchMetrics(provider metric.MeterProvider) (*FetchMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(FetchMetricsMeterName)

	fetchDuration, err := meter.Float64Histogram(
		"registry_mirror_fetch_duration_seconds",
		metric.WithDescription("Duration of source feed requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30),
	)
	if err != nil {
		return nil, err
	}

	fetchedRecords, err := meter.Int64Counter(
		"registry_mirror_fetched_records_total",
		metric.WithDescription("Number of plugin records received from each source"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	return &FetchMetrics{
		fetchDuration:  fetchDuration,
		fetchedRecords: fetchedRecords,
	}, nil
}

// RecordFetch records the outcome of one source request
func (m *FetchMetrics) RecordFetch(ctx context.Context, source string, duration time.Duration, records int, success bool) {
	if m == nil {
		return
	}

	m.fetchDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("source", source),
		attribute.Bool("success", success),
	))
	m.fetchedRecords.Add(ctx, int64(records), metric.WithAttributes(
		attribute.String("source", source),
	))
}

// RunMetrics holds the instruments recorded once per pipeline run
type RunMetrics struct {
	runDuration metric.Float64Histogram
	plugins     metric.Int64Gauge
}

// NewRunMetrics creates RunMetrics with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewRunMetrics(provider metric.MeterProvider) (*RunMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(RunMetricsMeterName)

	runDuration, err := meter.Float64Histogram(
		"registry_mirror_run_duration_seconds",
		metric.WithDescription("Duration of aggregation runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2.5, 5, 10, 15, 30, 60),
	)
	if err != nil {
		return nil, err
	}

	plugins, err := meter.Int64Gauge(
		"registry_mirror_plugins",
		metric.WithDescription("Plugins in the last generated catalog by kind"),
		metric.WithUnit("{plugin}"),
	)
	if err != nil {
		return nil, err
	}

	return &RunMetrics{
		runDuration: runDuration,
		plugins:     plugins,
	}, nil
}

// RecordRun records the duration and outcome of a run
func (m *RunMetrics) RecordRun(ctx context.Context, duration time.Duration, success bool) {
	if m == nil {
		return
	}
	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.Bool("success", success)))
}

// RecordPlugins records the unique and dropped plugin counts of a run
func (m *RunMetrics) RecordPlugins(ctx context.Context, unique, dropped int) {
	if m == nil {
		return
	}
	m.plugins.Record(ctx, int64(unique), metric.WithAttributes(attribute.String("kind", "unique")))
	m.plugins.Record(ctx, int64(dropped), metric.WithAttributes(attribute.String("kind", "dropped")))
}
