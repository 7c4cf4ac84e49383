package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{input: "", want: slog.LevelInfo},
		{input: "debug", want: slog.LevelDebug},
		{input: "INFO", want: slog.LevelInfo},
		{input: "warning", want: slog.LevelWarn},
		{input: " warn ", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "verbose", want: slog.LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func jsonLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		out = append(out, entry)
	}
	return out
}

func TestNewHandler_JSONLevels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler, err := NewHandler(Options{Level: slog.LevelWarn, Format: FormatJSON, Output: &buf})
	require.NoError(t, err)

	logger := slog.New(handler)
	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("Failed to fetch source", "source", "https://a.example/index.json")
	logger.Error("Registry generation failed", "error", "boom")

	entries := jsonLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "Failed to fetch source", entries[0]["msg"])
	assert.Equal(t, "https://a.example/index.json", entries[0]["source"])
	assert.Equal(t, "warn", entries[0]["level"])
	assert.Equal(t, "Registry generation failed", entries[1]["msg"])
}

func TestNewHandler_DebugEnabled(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler, err := NewHandler(Options{Level: slog.LevelDebug, Format: FormatJSON, Output: &buf})
	require.NoError(t, err)

	assert.True(t, handler.Enabled(context.Background(), slog.LevelDebug))
	slog.New(handler).With("run_id", "abc").Debug("Merged records", "unique", 3)

	entries := jsonLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "abc", entries[0]["run_id"])
	assert.EqualValues(t, 3, entries[0]["unique"])
}

func TestNewHandler_Console(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler, err := NewHandler(Options{Format: FormatConsole, Output: &buf})
	require.NoError(t, err)

	slog.New(handler).Info("Starting registry mirror")
	assert.Contains(t, buf.String(), "Starting registry mirror")
	assert.False(t, handler.Enabled(context.Background(), slog.LevelDebug))
}

func TestNewHandler_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewHandler(Options{Format: "xml", Output: &bytes.Buffer{}})
	assert.ErrorContains(t, err, "invalid log format")

	_, err = NewHandler(Options{Format: FormatJSON})
	assert.ErrorContains(t, err, "output is required")
}

func TestTraceHandler_InjectsSpanContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler, err := NewHandler(Options{Format: FormatJSON, Output: &buf})
	require.NoError(t, err)

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "sync.Run")

	logger := slog.New(handler)
	logger.InfoContext(ctx, "inside span")
	span.End()
	logger.InfoContext(context.Background(), "outside span")

	entries := jsonLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, span.SpanContext().TraceID().String(), entries[0]["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), entries[0]["span_id"])
	assert.NotContains(t, entries[1], "trace_id")
}
