package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func recordingTracer(t *testing.T) (trace.Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp.Tracer("registry-mirror"), recorder
}

// fetchAll mimics a run: one parent span and a child span per source, with
// failures recorded on the child.
func fetchAll(ctx context.Context, tracer trace.Tracer, sources map[string]error) {
	ctx, run := StartSpan(ctx, tracer, "sync.Run",
		trace.WithAttributes(AttrSourceCount.Int(len(sources))))
	defer run.End()

	for url, err := range sources {
		_, span := StartSpan(ctx, tracer, "sources.Fetch",
			trace.WithAttributes(AttrSourceURL.String(url)))
		RecordError(span, err)
		span.End()
	}
}

func TestStartSpan_RunWithSources(t *testing.T) {
	t.Parallel()

	tracer, recorder := recordingTracer(t)
	fetchAll(context.Background(), tracer, map[string]error{
		"https://a.example/index.json": nil,
		"https://b.example/index.json": errors.New("upstream returned 502"),
	})

	ended := recorder.Ended()
	require.Len(t, ended, 3)

	var run sdktrace.ReadOnlySpan
	failed := map[string]codes.Code{}
	for _, span := range ended {
		if span.Name() == "sync.Run" {
			run = span
			continue
		}
		for _, kv := range span.Attributes() {
			if kv.Key == AttrSourceURL {
				failed[kv.Value.AsString()] = span.Status().Code
			}
		}
	}
	require.NotNil(t, run)
	assert.Equal(t, map[string]codes.Code{
		"https://a.example/index.json": codes.Unset,
		"https://b.example/index.json": codes.Error,
	}, failed)

	for _, span := range ended {
		if span.Name() == "sources.Fetch" {
			assert.Equal(t, run.SpanContext().SpanID(), span.Parent().SpanID())
		}
	}
}

func TestStartSpan_WithoutTracer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		parent    bool
		wantValid bool
	}{
		{name: "no span in context", parent: false, wantValid: false},
		{name: "reuses span in context", parent: true, wantValid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			var parent trace.Span
			if tt.parent {
				tracer, _ := recordingTracer(t)
				ctx, parent = tracer.Start(ctx, "sync.Run")
				defer parent.End()
			}

			got, span := StartSpan(ctx, nil, "sources.Fetch")
			require.NotNil(t, got)
			assert.Equal(t, tt.wantValid, span.SpanContext().IsValid())
			if parent != nil {
				assert.Equal(t, parent.SpanContext(), span.SpanContext())
			}
			assert.NotPanics(t, func() { span.End() })
		})
	}
}

func TestRecordError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus codes.Code
		wantEvents int
	}{
		{name: "nil error leaves span untouched", wantStatus: codes.Unset},
		{
			name:       "error hides details from the status",
			err:        errors.New("GET https://b.example/index.json: connection refused"),
			wantStatus: codes.Error,
			wantEvents: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tracer, recorder := recordingTracer(t)
			_, span := tracer.Start(context.Background(), "writer.Write")
			RecordError(span, tt.err)
			span.End()

			ended := recorder.Ended()
			require.Len(t, ended, 1)
			assert.Equal(t, tt.wantStatus, ended[0].Status().Code)
			assert.NotContains(t, ended[0].Status().Description, "b.example")
			assert.Len(t, ended[0].Events(), tt.wantEvents)
		})
	}

	assert.NotPanics(t, func() { RecordError(nil, errors.New("dropped")) })
}
