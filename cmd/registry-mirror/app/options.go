package app

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/stacklok/registry-mirror/internal/config"
	"github.com/stacklok/registry-mirror/internal/sync"
	"github.com/stacklok/registry-mirror/internal/telemetry"
)

const tracerName = "github.com/stacklok/registry-mirror"

// mustBind binds flags to v. Binding only fails for a nil flag, which is a
// programming error.
func mustBind(v *viper.Viper, flags ...*pflag.Flag) {
	for _, flag := range flags {
		if err := v.BindPFlag(flag.Name, flag); err != nil {
			panic(fmt.Sprintf("failed to bind %s flag: %v", flag.Name, err))
		}
	}
}

// configLoader returns a loader that reads the config file named by the
// --config flag and applies flag and environment overrides on top of it.
func configLoader(v *viper.Viper) config.Loader {
	return func() (*config.Config, error) {
		var opts []config.Option
		if path := v.GetString("config"); path != "" {
			opts = append(opts, config.WithConfigPath(path))
		}
		opts = append(opts, config.WithOverride(func(cfg *config.Config) {
			applyOverrides(v, cfg)
		}))
		return config.LoadConfig(opts...)
	}
}

// applyOverrides copies values set by flags or REGISTRY_MIRROR_* variables
func applyOverrides(v *viper.Viper, cfg *config.Config) {
	if sources := v.GetStringSlice("source"); len(sources) > 0 {
		cfg.Sources = sources
	}
	if output := v.GetString("output"); output != "" {
		cfg.Output = output
	}
	if branch := v.GetString("branch"); branch != "" {
		cfg.Branch = branch
	}
	if repository := v.GetString("repository"); repository != "" {
		cfg.Repository = repository
	}
	if timeout := v.GetString("timeout"); timeout != "" {
		cfg.Fetch.Timeout = timeout
	}
	if address := v.GetString("address"); address != "" {
		cfg.Serve.Address = address
	}
	if interval := v.GetString("interval"); interval != "" {
		cfg.Serve.Interval = interval
	}
}

// newSyncManager wires telemetry into the pipeline manager
func newSyncManager(tel *telemetry.Telemetry) (sync.Manager, error) {
	fetchMetrics, err := telemetry.NewFetchMetrics(tel.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch metrics: %w", err)
	}
	runMetrics, err := telemetry.NewRunMetrics(tel.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create run metrics: %w", err)
	}

	return sync.NewManager(
		sync.WithFetchMetrics(fetchMetrics),
		sync.WithRunMetrics(runMetrics),
		sync.WithTracer(tel.Tracer(tracerName)),
	), nil
}

// newTelemetry creates the providers described by cfg for the given command
func newTelemetry(ctx context.Context, cfg *config.Config, mode telemetry.Mode) (*telemetry.Telemetry, error) {
	tel, err := telemetry.New(ctx, cfg.Telemetry, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	return tel, nil
}
