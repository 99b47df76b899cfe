// Package broadcast defines the port for pushing real-time feed updates to
// connected dashboard clients.
package broadcast

import "context"

// Broadcaster sends a typed event to all connected dashboard clients.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
