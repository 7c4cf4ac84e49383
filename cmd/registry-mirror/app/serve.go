package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/registry-mirror/internal/api"
	"github.com/stacklok/registry-mirror/internal/config"
	"github.com/stacklok/registry-mirror/internal/sync/coordinator"
	"github.com/stacklok/registry-mirror/internal/sync/state"
	"github.com/stacklok/registry-mirror/internal/telemetry"
)

const (
	defaultGracefulTimeout = 30 * time.Second // Enough for an in-flight run to be cancelled
	serverRequestTimeout   = 10 * time.Second // Status and artifact requests are cheap
	serverReadTimeout      = 10 * time.Second // Enough for headers and small requests
	serverWriteTimeout     = 15 * time.Second // Must be > serverRequestTimeout to let middleware handle timeout
	serverIdleTimeout      = 60 * time.Second // Keep connections alive for reuse
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Regenerate the registry periodically and serve it over HTTP",
		Long: `Run the aggregation on an interval and expose the latest registry file along
with health, readiness, status and metrics endpoints. The configuration file
(--config) is reloaded when it changes; invalid edits are ignored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, v)
		},
	}

	flags := serveCmd.Flags()
	flags.String("address", "", "Address to listen on (default \":8080\")")
	flags.String("interval", "", "Interval between runs (default 30m, minimum 1m)")
	mustBind(v, flags.Lookup("address"), flags.Lookup("interval"))

	return serveCmd
}

func runServe(cmd *cobra.Command, v *viper.Viper) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	configPath := v.GetString("config")
	cfgManager, err := config.NewManager(configPath, configLoader(v))
	if err != nil {
		return err
	}
	defer func() {
		if err := cfgManager.Close(); err != nil {
			slog.Warn("Failed to close config watcher", "error", err)
		}
	}()
	cfg := cfgManager.GetConfig()
	slog.Info("Loaded configuration",
		"path", configPath,
		"sources", len(cfg.Sources),
		"output", cfg.Output,
		"interval", cfg.GetServeInterval(),
	)

	// Telemetry is fixed for the lifetime of the process
	tel, err := newTelemetry(ctx, cfg, telemetry.ModeServe)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Failed to shut down telemetry", "error", err)
		}
	}()

	syncManager, err := newSyncManager(tel)
	if err != nil {
		return err
	}

	go func() {
		if err := cfgManager.WatchConfig(ctx); err != nil {
			slog.Error("Config watcher failed", "error", err)
		}
	}()

	var coordinatorOpts []coordinator.Option
	if cfg.Serve.StateFile != "" {
		coordinatorOpts = append(coordinatorOpts, coordinator.WithStateStore(state.NewFileStore(cfg.Serve.StateFile)))
	}
	runCoordinator := coordinator.New(syncManager, cfgManager.GetConfig, coordinatorOpts...)
	go func() {
		if err := runCoordinator.Start(ctx); err != nil {
			slog.Error("Run coordinator failed", "error", err)
		}
	}()

	router := api.NewServer(runCoordinator,
		api.WithMiddlewares(
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(serverRequestTimeout),
			api.LoggingMiddleware,
		),
		api.WithArtifact(func() string { return cfgManager.GetConfig().Output }),
		api.WithMetricsHandler(tel.MetricsHandler()),
	)

	server := &http.Server{
		Addr:         cfg.Serve.Address,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutting down server")
	case err := <-serverErr:
		stop()
		_ = runCoordinator.Stop()
		return fmt.Errorf("failed to start server: %w", err)
	}

	if err := runCoordinator.Stop(); err != nil {
		slog.Error("Failed to stop run coordinator", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Server shutdown complete")
	return nil
}
