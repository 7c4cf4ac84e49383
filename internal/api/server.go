// Package api provides the HTTP surface of the serve command: probes, run
// status, metrics and the generated registry artifact.
package api

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stacklok/registry-mirror/internal/api/common"
	"github.com/stacklok/registry-mirror/internal/sync/coordinator"
	"github.com/stacklok/registry-mirror/internal/versions"
)

// StatusProvider exposes the scheduler state
type StatusProvider interface {
	Status() coordinator.Snapshot
}

// ServerOption configures the mirror API server
type ServerOption func(*serverConfig)

// serverConfig holds the server configuration
type serverConfig struct {
	middlewares    []func(http.Handler) http.Handler
	artifact       func() string
	metricsHandler http.Handler
	now            func() time.Time
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithArtifact sets the function resolving the current artifact path.
// It is called per request so config reloads are honored.
func WithArtifact(path func() string) ServerOption {
	return func(cfg *serverConfig) {
		cfg.artifact = path
	}
}

// WithMetricsHandler mounts handler at /metrics
func WithMetricsHandler(handler http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metricsHandler = handler
	}
}

// NewServer creates and configures the HTTP router
func NewServer(provider StatusProvider, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{
		middlewares: []func(http.Handler) http.Handler{},
		artifact:    func() string { return "" },
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	h := &handler{provider: provider, cfg: cfg}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.Get("/health", h.health)
	r.Get("/readiness", h.readiness)
	r.Get("/version", h.version)
	r.Get("/status", h.status)
	if cfg.metricsHandler != nil {
		r.Handle("/metrics", cfg.metricsHandler)
	}
	r.Get("/{file}", h.artifact)

	return r
}

type handler struct {
	provider StatusProvider
	cfg      *serverConfig
}

func (*handler) health(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, HealthResponse{Status: "healthy"}, http.StatusOK)
}

func (h *handler) readiness(w http.ResponseWriter, _ *http.Request) {
	if !h.provider.Status().Ready() {
		common.WriteErrorResponse(w, "no registry has been generated yet", http.StatusServiceUnavailable)
		return
	}
	common.WriteJSONResponse(w, ReadinessResponse{Status: "ready"}, http.StatusOK)
}

func (*handler) version(w http.ResponseWriter, _ *http.Request) {
	info := versions.GetVersionInfo()
	common.WriteJSONResponse(w, VersionResponse{
		Version:   info.Version,
		Commit:    info.Commit,
		BuildDate: info.BuildDate,
		GoVersion: info.GoVersion,
		Platform:  info.Platform,
	}, http.StatusOK)
}

func (h *handler) status(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Snapshot: h.provider.Status(),
		Now:      h.cfg.now().UTC(),
	}
	if path := h.cfg.artifact(); path != "" {
		resp.Artifact = "/" + filepath.Base(path)
	}
	common.WriteJSONResponse(w, resp, http.StatusOK)
}

// artifact serves the generated registry under its base file name
func (h *handler) artifact(w http.ResponseWriter, r *http.Request) {
	name, err := common.GetFileNameParam(r, "file")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	path := h.cfg.artifact()
	if path == "" || name != filepath.Base(path) {
		common.WriteErrorResponse(w, "not found", http.StatusNotFound)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			common.WriteErrorResponse(w, "registry has not been generated yet", http.StatusServiceUnavailable)
			return
		}
		slog.Error("Failed to open artifact", "path", path, "error", err)
		common.WriteErrorResponse(w, "failed to read registry", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		slog.Error("Failed to stat artifact", "path", path, "error", err)
		common.WriteErrorResponse(w, "failed to read registry", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.DebugContext(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
