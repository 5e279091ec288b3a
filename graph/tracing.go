package graph

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// NewTracerProvider builds an SDK tracer provider with the given span
// processors (e.g. an OTLP or stdout exporter's batch processor),
// returning a Tracer ready to pass as ExecuteOptions.Tracer or
// WithTracer. Callers own the provider's lifecycle and must call
// Shutdown when done.
func NewTracerProvider(processors ...sdktrace.SpanProcessor) *sdktrace.TracerProvider {
	opts := make([]sdktrace.TracerProviderOption, 0, len(processors))
	for _, p := range processors {
		opts = append(opts, sdktrace.WithSpanProcessor(p))
	}
	return sdktrace.NewTracerProvider(opts...)
}

// startRunSpan opens the root span for one Execute call, when opts carries
// a Tracer. A nil Tracer is the common case and yields a no-op span (never
// the caller's own span from ctx, which endSpan would otherwise end).
func startRunSpan(ctx context.Context, tracer trace.Tracer, nodeCount int) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	ctx, span := tracer.Start(ctx, "ragdag.execute")
	span.SetAttributes(attribute.Int("ragdag.node_count", nodeCount))
	return ctx, span
}

// startNodeSpan opens a child span for a single node execution.
func startNodeSpan(ctx context.Context, tracer trace.Tracer, nodeID string) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	ctx, span := tracer.Start(ctx, "ragdag.node")
	span.SetAttributes(attribute.String("ragdag.node_id", nodeID))
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if span == nil || !span.IsRecording() {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
