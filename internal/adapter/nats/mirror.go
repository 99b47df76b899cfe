// Package nats implements the event-mirror port using NATS JetStream, so
// in-house consumers can tap the agent feed without their own SSE
// subscription.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/anirudhk-tech/haggl-console/internal/domain/event"
)

const (
	streamName    = "HAGGL_EVENTS"
	subjectPrefix = "haggl.events."
)

// Mirror republishes accepted live events to JetStream, one subject per
// stage.
type Mirror struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect establishes a connection to NATS and ensures the mirror stream
// exists.
func Connect(ctx context.Context, url string) (*Mirror, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{subjectPrefix + ">"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("event mirror connected", "url", url, "stream", streamName)
	return &Mirror{nc: nc, js: js}, nil
}

// Publish republishes one event to its per-stage subject.
func (m *Mirror) Publish(ctx context.Context, ev event.AgentEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := subjectFor(ev.Stage)
	if _, err := m.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("mirror publish %s: %w", subject, err)
	}
	return nil
}

// Close shuts down the NATS connection.
func (m *Mirror) Close() error {
	m.nc.Close()
	return nil
}

func subjectFor(s event.AgentStage) string {
	return subjectPrefix + string(s)
}
