// Package event defines the AgentEvent domain entity emitted by the Haggl
// sourcing agent during an order's lifecycle, and the bounded feed buffer
// the dashboard renders from.
package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// AgentStage identifies the phase of the sourcing pipeline an event reports.
type AgentStage string

const (
	StageIdle            AgentStage = "idle"
	StageMessageReceived AgentStage = "message_received"
	StageSourcing        AgentStage = "sourcing"
	StageCalling         AgentStage = "calling"
	StageNegotiating     AgentStage = "negotiating"
	StageEvaluating      AgentStage = "evaluating"
	StageConfirmed       AgentStage = "confirmed"
	StageApprovalPending AgentStage = "approval_pending"
	StageApproved        AgentStage = "approved"
	StageCompleted       AgentStage = "completed"
	StageFailed          AgentStage = "failed"
)

// Type identifies the kind of agent event.
type Type string

const (
	TypeStageChange      Type = "stage_change"
	TypeLog              Type = "log"
	TypeVendorUpdate     Type = "vendor_update"
	TypeCallUpdate       Type = "call_update"
	TypeEvaluationUpdate Type = "evaluation_update"
	TypeOrderUpdate      Type = "order_update"
	TypeApprovalRequired Type = "approval_required"
	TypePaymentUpdate    Type = "payment_update"
	TypeSystem           Type = "system"
)

// stageLabels maps each stage to its display label. Built once; lookups for
// unknown stages fall back to the raw stage string.
var stageLabels = map[AgentStage]string{
	StageIdle:            "Idle",
	StageMessageReceived: "Message Received",
	StageSourcing:        "Sourcing Suppliers",
	StageCalling:         "Calling Vendors",
	StageNegotiating:     "Negotiating",
	StageEvaluating:      "Evaluating Offers",
	StageConfirmed:       "Order Confirmed",
	StageApprovalPending: "Awaiting Approval",
	StageApproved:        "Approved",
	StageCompleted:       "Completed",
	StageFailed:          "Failed",
}

// stageAccents maps each stage to the hex color accent used by the dashboard.
var stageAccents = map[AgentStage]string{
	StageIdle:            "#94a3b8",
	StageMessageReceived: "#38bdf8",
	StageSourcing:        "#818cf8",
	StageCalling:         "#a78bfa",
	StageNegotiating:     "#f472b6",
	StageEvaluating:      "#fbbf24",
	StageConfirmed:       "#34d399",
	StageApprovalPending: "#fb923c",
	StageApproved:        "#4ade80",
	StageCompleted:       "#22c55e",
	StageFailed:          "#ef4444",
}

// Valid reports whether s is one of the closed set of agent stages.
func (s AgentStage) Valid() bool {
	_, ok := stageLabels[s]
	return ok
}

// Label returns the display label for the stage.
func (s AgentStage) Label() string {
	if l, ok := stageLabels[s]; ok {
		return l
	}
	return string(s)
}

// Accent returns the hex color accent for the stage.
func (s AgentStage) Accent() string {
	if a, ok := stageAccents[s]; ok {
		return a
	}
	return stageAccents[StageIdle]
}

// AgentEvent is a single immutable status record emitted by the agent.
// Timestamp is the source of truth for display ordering; delivery order is
// never reordered by timestamp.
type AgentEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Stage     AgentStage     `json:"stage"`
	Message   string         `json:"message"`
	OrderID   string         `json:"order_id,omitempty"`
	Type      Type           `json:"event_type,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// wireEvent mirrors AgentEvent with the timestamp kept as a string, since the
// agent emits bare ISO-8601 without a timezone suffix.
type wireEvent struct {
	Timestamp string         `json:"timestamp"`
	Stage     AgentStage     `json:"stage"`
	Message   string         `json:"message"`
	OrderID   string         `json:"order_id,omitempty"`
	Type      Type           `json:"event_type,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// timestampLayouts are accepted wire formats, most specific first.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// Parse decodes a single wire-format AgentEvent payload. It rejects payloads
// that are not JSON objects or whose stage is outside the closed stage set.
func Parse(data []byte) (AgentEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return AgentEvent{}, fmt.Errorf("decode event: %w", err)
	}
	if !w.Stage.Valid() {
		return AgentEvent{}, fmt.Errorf("unknown stage %q", w.Stage)
	}

	ts, err := parseTimestamp(w.Timestamp)
	if err != nil {
		return AgentEvent{}, err
	}

	return AgentEvent{
		Timestamp: ts,
		Stage:     w.Stage,
		Message:   w.Message,
		OrderID:   w.OrderID,
		Type:      w.Type,
		Data:      w.Data,
	}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("timestamp is required")
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

// MarshalJSON emits the timestamp as RFC3339, which is what the console's own
// API consumers expect.
func (e AgentEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEvent{
		Timestamp: e.Timestamp.Format(time.RFC3339Nano),
		Stage:     e.Stage,
		Message:   e.Message,
		OrderID:   e.OrderID,
		Type:      e.Type,
		Data:      e.Data,
	})
}

// UnmarshalJSON accepts the same lenient wire format as Parse.
func (e *AgentEvent) UnmarshalJSON(data []byte) error {
	ev, err := Parse(data)
	if err != nil {
		return err
	}
	*e = ev
	return nil
}
