package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "costscope"

// StartToolCallSpan starts a span for one dispatched tool call.
func StartToolCallSpan(ctx context.Context, tool, correlationID string, orgID int64) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "toolcall",
		trace.WithAttributes(
			attribute.String("tool.name", tool),
			attribute.String("correlation.id", correlationID),
			attribute.Int64("organization.id", orgID),
		),
	)
}

// StartUpstreamSpan starts a span for an upstream API request.
func StartUpstreamSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "upstream",
		trace.WithAttributes(
			attribute.String("upstream.operation", operation),
		),
	)
}
