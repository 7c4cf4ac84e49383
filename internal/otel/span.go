// Package otel provides span helpers shared by the fetch and sync stages.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys recorded on mirror spans
const (
	AttrSourceURL     = attribute.Key("source.url")
	AttrSourceCount   = attribute.Key("source.count")
	AttrResultCount   = attribute.Key("result.count")
	AttrDroppedCount  = attribute.Key("result.dropped")
	AttrRunID         = attribute.Key("run.id")
	AttrOutputPath    = attribute.Key("output.path")
	AttrFailedSources = attribute.Key("source.failed")
)

// StartSpan starts a new span if the tracer is non-nil, otherwise returns the
// span already in ctx (a no-op span when there is none).
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err on span and marks the span failed.
// The status description stays generic; upstream URLs and response bodies are
// only kept in the span event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
