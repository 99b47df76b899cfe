// Package mirror defines the port for republishing accepted live events to
// downstream in-house consumers.
package mirror

import (
	"context"

	"github.com/anirudhk-tech/haggl-console/internal/domain/event"
)

// Mirror republishes a single accepted live event. Implementations must be
// safe for calls from the session's event-processing goroutine and must not
// block it for long; a failed publish is logged, never fatal to the feed.
type Mirror interface {
	Publish(ctx context.Context, ev event.AgentEvent) error
}
