// Package otel provides OpenTelemetry instrumentation for the console.
// Instruments are created against the global providers; without an SDK
// installed they are no-ops.
package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "hagglconsole"

// Metrics holds the console's metric instruments.
type Metrics struct {
	EventsReceived    metric.Int64Counter
	ReconnectAttempts metric.Int64Counter
	BackfillRequests  metric.Int64Counter
	BackfillFailures  metric.Int64Counter
	BackfillDuration  metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.EventsReceived, err = meter.Int64Counter("hagglconsole.feed.events_received",
		metric.WithDescription("Live events accepted into the feed buffer"))
	if err != nil {
		return nil, err
	}

	m.ReconnectAttempts, err = meter.Int64Counter("hagglconsole.stream.reconnect_attempts",
		metric.WithDescription("Live subscription reconnect attempts"))
	if err != nil {
		return nil, err
	}

	m.BackfillRequests, err = meter.Int64Counter("hagglconsole.backfill.requests",
		metric.WithDescription("Recent-events backfill requests"))
	if err != nil {
		return nil, err
	}

	m.BackfillFailures, err = meter.Int64Counter("hagglconsole.backfill.failures",
		metric.WithDescription("Recent-events backfill failures"))
	if err != nil {
		return nil, err
	}

	m.BackfillDuration, err = meter.Float64Histogram("hagglconsole.backfill.duration_seconds",
		metric.WithDescription("Backfill request duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// EventReceived records one accepted live event.
func (m *Metrics) EventReceived(ctx context.Context, stage string) {
	m.EventsReceived.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

// ReconnectAttempt records one reconnect attempt.
func (m *Metrics) ReconnectAttempt(ctx context.Context) {
	m.ReconnectAttempts.Add(ctx, 1)
}

// RecordBackfill records one backfill request and its outcome.
func (m *Metrics) RecordBackfill(ctx context.Context, d time.Duration, err error) {
	m.BackfillRequests.Add(ctx, 1)
	if err != nil {
		m.BackfillFailures.Add(ctx, 1)
	}
	m.BackfillDuration.Record(ctx, d.Seconds())
}
