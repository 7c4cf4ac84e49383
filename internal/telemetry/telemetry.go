package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	gosync "sync"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Mode is the command the providers are built for. It is recorded on the
// resource and decides whether a scrape endpoint can exist.
type Mode string

const (
	// ModeGenerate is a single mirror run that exits afterwards
	ModeGenerate Mode = "generate"

	// ModeServe is the long-running scheduler with an HTTP listener
	ModeServe Mode = "serve"
)

// Telemetry holds the tracer and meter providers of one process
type Telemetry struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	metricsHandler http.Handler

	shutdowns    []func(context.Context) error
	shutdownOnce gosync.Once
	shutdownErr  error
}

// New builds the providers described by cfg for the given mode. A nil or
// disabled cfg yields no-op providers. Call Shutdown before exiting so that
// a generate run flushes its spans and metrics.
func New(ctx context.Context, cfg *Config, mode Mode) (*Telemetry, error) {
	tel := &Telemetry{
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}
	if cfg == nil || !cfg.Enabled {
		slog.Debug("Telemetry disabled")
		return tel, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry configuration: %w", err)
	}

	res, err := newResource(ctx, cfg, mode)
	if err != nil {
		return nil, err
	}
	slog.Info("Initializing telemetry",
		"service_name", cfg.GetServiceName(),
		"service_version", cfg.GetServiceVersion(),
		"mode", mode,
	)

	if cfg.Tracing != nil && cfg.Tracing.Enabled {
		tp, err := newTracerProvider(ctx, cfg, res)
		if err != nil {
			return nil, fmt.Errorf("failed to create tracer provider: %w", err)
		}
		tel.tracerProvider = tp
		tel.shutdowns = append(tel.shutdowns, tp.Shutdown)
	}

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		mp, handler, err := newMeterProvider(ctx, cfg, mode, res)
		if err != nil {
			_ = tel.Shutdown(ctx)
			return nil, fmt.Errorf("failed to create meter provider: %w", err)
		}
		tel.meterProvider = mp
		tel.metricsHandler = handler
		tel.shutdowns = append(tel.shutdowns, mp.Shutdown)
	}

	return tel, nil
}

// TracerProvider returns the configured tracer provider
func (t *Telemetry) TracerProvider() trace.TracerProvider {
	return t.tracerProvider
}

// MeterProvider returns the configured meter provider
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	return t.meterProvider
}

// MetricsHandler returns the Prometheus scrape handler, or nil when metrics
// are not exported through Prometheus
func (t *Telemetry) MetricsHandler() http.Handler {
	return t.metricsHandler
}

// Tracer returns a named tracer from the tracer provider
func (t *Telemetry) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return t.tracerProvider.Tracer(name, opts...)
}

// Shutdown flushes and stops the SDK providers. Later calls return the
// result of the first one.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	t.shutdownOnce.Do(func() {
		var errs []error
		for _, shutdown := range t.shutdowns {
			if err := shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		t.shutdownErr = errors.Join(errs...)
	})
	return t.shutdownErr
}
