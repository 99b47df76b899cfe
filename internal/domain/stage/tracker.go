// Package stage derives the dashboard's current-stage view and milestone
// rail from the stream of agent events.
package stage

import (
	"sync"

	"github.com/anirudhk-tech/haggl-console/internal/domain/event"
)

// NotOnRail is the sentinel index for stages outside the milestone rail.
const NotOnRail = -1

// Milestones is the ordered subset of stages shown on the progress rail.
// Terminal and idle stages are deliberately absent.
var Milestones = [...]event.AgentStage{
	event.StageMessageReceived,
	event.StageSourcing,
	event.StageCalling,
	event.StageNegotiating,
	event.StageEvaluating,
	event.StageApprovalPending,
}

// milestoneIndex is the reverse lookup table, built once at init.
var milestoneIndex = func() map[event.AgentStage]int {
	m := make(map[event.AgentStage]int, len(Milestones))
	for i, s := range Milestones {
		m[s] = i
	}
	return m
}()

// MilestoneIndex returns the zero-based rail position of s, or NotOnRail
// when s is not a milestone stage.
func MilestoneIndex(s event.AgentStage) int {
	if i, ok := milestoneIndex[s]; ok {
		return i
	}
	return NotOnRail
}

// State classifies a milestone relative to the current stage.
type State string

const (
	StateCurrent  State = "current"
	StatePast     State = "active_past"
	StateInactive State = "inactive"
)

// Classify returns the rail state of milestone given the current stage.
// When the current stage is off the rail, every milestone is inactive.
func Classify(current, milestone event.AgentStage) State {
	mi := MilestoneIndex(milestone)
	if mi == NotOnRail {
		return StateInactive
	}
	ci := MilestoneIndex(current)
	switch {
	case ci == NotOnRail:
		return StateInactive
	case mi == ci:
		return StateCurrent
	case mi < ci:
		return StatePast
	default:
		return StateInactive
	}
}

// Milestone is one rendered entry of the progress rail.
type Milestone struct {
	Stage  event.AgentStage `json:"stage"`
	Label  string           `json:"label"`
	Accent string           `json:"accent"`
	State  State            `json:"state"`
}

// Rail renders the full milestone rail for the given current stage.
func Rail(current event.AgentStage) []Milestone {
	out := make([]Milestone, len(Milestones))
	for i, s := range Milestones {
		out[i] = Milestone{
			Stage:  s,
			Label:  s.Label(),
			Accent: s.Accent(),
			State:  Classify(current, s),
		}
	}
	return out
}

// Tracker derives the current stage from the most recent live event. Backfill
// never feeds a Tracker; only events delivered through the live subscription
// do, so the displayed stage cannot diverge from the feed.
type Tracker struct {
	mu      sync.RWMutex
	current event.AgentStage
	byOrder map[string]event.AgentStage
}

// NewTracker creates a Tracker reporting StageIdle until a live event arrives.
func NewTracker() *Tracker {
	return &Tracker{
		current: event.StageIdle,
		byOrder: make(map[string]event.AgentStage),
	}
}

// Observe records a live event. Every live event updates the current stage
// unconditionally, including replayed or duplicate-looking stages.
func (t *Tracker) Observe(ev event.AgentEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.current = ev.Stage
	if ev.OrderID != "" {
		t.byOrder[ev.OrderID] = ev.Stage
	}
}

// Current returns the stage of the last observed live event.
func (t *Tracker) Current() event.AgentStage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// StageFor returns the latest stage observed for orderID, or StageIdle when
// no event has mentioned it.
func (t *Tracker) StageFor(orderID string) event.AgentStage {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if s, ok := t.byOrder[orderID]; ok {
		return s
	}
	return event.StageIdle
}
