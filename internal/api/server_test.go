package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/registry-mirror/internal/sync"
	"github.com/stacklok/registry-mirror/internal/sync/coordinator"
)

type staticStatus coordinator.Snapshot

func (s staticStatus) Status() coordinator.Snapshot {
	return coordinator.Snapshot(s)
}

func readySnapshot() staticStatus {
	success := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return staticStatus{
		Phase:       coordinator.PhaseComplete,
		LastSuccess: &success,
		Runs:        1,
		LastResult:  &sync.Result{RunID: "run-1", Unique: 2, Total: 3},
	}
}

func serve(t *testing.T, handler http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestServer_Probes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		provider   staticStatus
		path       string
		wantStatus int
		wantBody   string
	}{
		{name: "health", provider: staticStatus{Phase: coordinator.PhasePending}, path: "/health", wantStatus: http.StatusOK, wantBody: "healthy"},
		{name: "not ready before first success", provider: staticStatus{Phase: coordinator.PhaseRunning}, path: "/readiness", wantStatus: http.StatusServiceUnavailable, wantBody: "no registry"},
		{name: "ready after success", provider: readySnapshot(), path: "/readiness", wantStatus: http.StatusOK, wantBody: "ready"},
		{name: "version", provider: staticStatus{}, path: "/version", wantStatus: http.StatusOK, wantBody: "go_version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := serve(t, NewServer(tt.provider), http.MethodGet, tt.path)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestServer_Status(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 5, 0, 0, time.UTC)
	server := NewServer(readySnapshot(),
		WithArtifact(func() string { return "/srv/out/index.json" }),
		func(cfg *serverConfig) { cfg.now = func() time.Time { return now } },
	)

	rec := serve(t, server, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Complete", body["phase"])
	assert.Equal(t, "/index.json", body["artifact"])
	assert.Equal(t, "2024-03-01T12:05:00Z", body["now"])
	lastResult, ok := body["lastResult"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "run-1", lastResult["runId"])
	assert.EqualValues(t, 3, lastResult["total"])
}

func TestServer_Artifact(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	output := filepath.Join(dir, "index.json")
	require.NoError(t, os.WriteFile(output, []byte(`{"total":0,"objects":[]}`), 0o644))
	missing := filepath.Join(dir, "missing.json")

	tests := []struct {
		name       string
		artifact   string
		path       string
		wantStatus int
		wantBody   string
	}{
		{name: "serves artifact", artifact: output, path: "/index.json", wantStatus: http.StatusOK, wantBody: `"objects":[]`},
		{name: "other names are not found", artifact: output, path: "/other.json", wantStatus: http.StatusNotFound},
		{name: "not generated yet", artifact: missing, path: "/missing.json", wantStatus: http.StatusServiceUnavailable},
		{name: "no artifact configured", artifact: "", path: "/index.json", wantStatus: http.StatusNotFound},
		{name: "rejects traversal", artifact: output, path: "/..%2Findex.json", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := NewServer(readySnapshot(), WithArtifact(func() string { return tt.artifact }))
			rec := serve(t, server, http.MethodGet, tt.path)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestServer_MetricsAndMiddleware(t *testing.T) {
	t.Parallel()

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("registry_mirror_plugins 3\n"))
	})
	var seen []string
	recorder := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = append(seen, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}

	server := NewServer(readySnapshot(), WithMetricsHandler(metrics), WithMiddlewares(recorder, LoggingMiddleware))

	rec := serve(t, server, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "registry_mirror_plugins")
	assert.Equal(t, []string{"/metrics"}, seen)

	// Without a metrics handler the path falls through to the artifact route.
	assert.Equal(t, http.StatusNotFound, serve(t, NewServer(readySnapshot()), http.MethodGet, "/metrics").Code)
}
