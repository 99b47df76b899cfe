// Package resilience provides reliability patterns for calls to the
// upstream sourcing-agent API.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is open and rejecting
// calls. Callers surface it as "agent API unavailable" rather than retrying.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

// Breaker is a circuit breaker for the agent's request/response endpoints.
// Consecutive failures past the threshold open the circuit; after the
// cool-off it admits a single probe call before deciding to close again.
// The live SSE subscription has its own reconnect policy and does not go
// through the breaker.
type Breaker struct {
	mu          sync.Mutex
	state       state
	failures    int
	maxFailures int
	cooloff     time.Duration
	openedAt    time.Time
	now         func() time.Time // for testing
}

// NewBreaker creates a circuit breaker that opens after maxFailures
// consecutive failures and stays open for cooloff before probing.
func NewBreaker(maxFailures int, cooloff time.Duration) *Breaker {
	return &Breaker{
		maxFailures: maxFailures,
		cooloff:     cooloff,
		now:         time.Now,
	}
}

// Execute runs fn unless the circuit is open, in which case it returns
// ErrCircuitOpen without calling fn.
func (b *Breaker) Execute(fn func() error) error {
	if !b.admit() {
		return ErrCircuitOpen
	}

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		if b.state == stateHalfOpen || b.failures >= b.maxFailures {
			b.state = stateOpen
			b.openedAt = b.now()
		}
		return err
	}

	b.failures = 0
	b.state = stateClosed
	return nil
}

func (b *Breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateOpen:
		if b.now().Sub(b.openedAt) < b.cooloff {
			return false
		}
		b.state = stateHalfOpen
		return true
	default:
		return true
	}
}
