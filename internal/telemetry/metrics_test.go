package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader sdkmetric.Reader, scopeName string) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		if scope.Scope.Name != scopeName {
			continue
		}
		for _, m := range scope.Metrics {
			found[m.Name] = m
		}
	}
	return found
}

func TestNewMetrics_NilProvider(t *testing.T) {
	t.Parallel()

	fetch, err := NewFetchMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, fetch)

	run, err := NewRunMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, run)

	// nil receivers must not panic
	fetch.RecordFetch(context.Background(), "https://a.example/index.json", time.Second, 3, true)
	run.RecordRun(context.Background(), time.Second, true)
	run.RecordPlugins(context.Background(), 1, 0)
}

func TestFetchMetrics_RecordFetch(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	metrics, err := NewFetchMetrics(mp)
	require.NoError(t, err)

	const source = "https://a.example/index.json"
	metrics.RecordFetch(context.Background(), source, 1500*time.Millisecond, 120, true)
	metrics.RecordFetch(context.Background(), "https://b.example/index.json", 15*time.Second, 0, false)

	found := collect(t, reader, FetchMetricsMeterName)

	hist, ok := found["registry_mirror_fetch_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok, "expected histogram data type")
	require.Len(t, hist.DataPoints, 2)
	for _, dp := range hist.DataPoints {
		src, _ := dp.Attributes.Value(attribute.Key("source"))
		success, _ := dp.Attributes.Value(attribute.Key("success"))
		if src.AsString() == source {
			assert.InDelta(t, 1.5, dp.Sum, 0.001)
			assert.True(t, success.AsBool())
		} else {
			assert.False(t, success.AsBool())
		}
	}

	sum, ok := found["registry_mirror_fetched_records_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected sum data type")
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(120), total)
}

func TestRunMetrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	metrics, err := NewRunMetrics(mp)
	require.NoError(t, err)

	metrics.RecordRun(context.Background(), 2500*time.Millisecond, true)
	metrics.RecordPlugins(context.Background(), 1337, 12)

	found := collect(t, reader, RunMetricsMeterName)

	hist, ok := found["registry_mirror_run_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.InDelta(t, 2.5, hist.DataPoints[0].Sum, 0.001)

	gauge, ok := found["registry_mirror_plugins"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	byKind := make(map[string]int64)
	for _, dp := range gauge.DataPoints {
		kind, _ := dp.Attributes.Value(attribute.Key("kind"))
		byKind[kind.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"unique": 1337, "dropped": 12}, byKind)
}
