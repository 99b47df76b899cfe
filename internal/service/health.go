package service

import "github.com/anirudhk-tech/haggl-console/internal/domain/event"

// Status is the tri-state connection status of the live subscription, plus
// the escalated unavailable state entered when reconnection gives up.
type Status string

const (
	StatusConnecting  Status = "connecting"
	StatusLive        Status = "live"
	StatusError       Status = "error"
	StatusUnavailable Status = "unavailable"
)

// Health is the snapshot the dashboard's status indicator renders from.
// Message describes a connection problem; FetchError is the banner for a
// failed backfill and is independent of the subscription state.
type Health struct {
	Status       Status           `json:"status"`
	Message      string           `json:"message,omitempty"`
	FetchError   string           `json:"fetch_error,omitempty"`
	CurrentStage event.AgentStage `json:"current_stage"`
	Buffered     int              `json:"buffered_events"`
}
