package event

import "sync"

// MaxBuffered is the feed buffer capacity. Insertion beyond it evicts the
// oldest entries from the tail.
const MaxBuffered = 100

// Buffer is the bounded, newest-first container behind the live activity
// feed. Duplicate or replayed events are retained as distinct entries; no
// deduplication or timestamp reordering is performed.
//
// All mutation goes through PushFront and ReplaceAll, serialized internally
// so a seeding loader and a streaming consumer cannot corrupt ordering.
type Buffer struct {
	mu     sync.RWMutex
	events []AgentEvent
}

// NewBuffer creates an empty feed buffer.
func NewBuffer() *Buffer {
	return &Buffer{events: make([]AgentEvent, 0, MaxBuffered)}
}

// PushFront inserts ev at the head of the buffer, evicting from the tail
// when the capacity is exceeded.
func (b *Buffer) PushFront(ev AgentEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, AgentEvent{})
	copy(b.events[1:], b.events)
	b.events[0] = ev

	if len(b.events) > MaxBuffered {
		b.events = b.events[:MaxBuffered]
	}
}

// ReplaceAll replaces the buffer contents wholesale with events, which must
// already be newest-first. Entries beyond capacity are truncated from the
// tail. This is a full seed, not a merge.
func (b *Buffer) ReplaceAll(events []AgentEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(events)
	if n > MaxBuffered {
		n = MaxBuffered
	}
	b.events = append(b.events[:0], events[:n]...)
}

// Snapshot returns a copy of the buffer contents, newest first. The copy is
// safe to read while producers keep pushing.
func (b *Buffer) Snapshot() []AgentEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]AgentEvent, len(b.events))
	copy(out, b.events)
	return out
}

// Len returns the number of buffered events.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}
