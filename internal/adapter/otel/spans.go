package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "hagglconsole"

// StartBackfillSpan starts a span for a recent-events backfill.
func StartBackfillSpan(ctx context.Context, limit int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "backfill",
		trace.WithAttributes(
			attribute.Int("backfill.limit", limit),
		),
	)
}

// StartRefreshSpan starts a span for a manual feed refresh.
func StartRefreshSpan(ctx context.Context) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "refresh")
}
