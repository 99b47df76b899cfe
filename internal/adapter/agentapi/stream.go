package agentapi

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/anirudhk-tech/haggl-console/internal/domain/event"
)

const streamPath = "/events/stream"

// maxFrameBytes bounds a single SSE line; agent events are small, anything
// past this is a protocol violation.
const maxFrameBytes = 1 << 20

// ErrStreamClosed is reported when the agent closes the stream without a
// transport error.
var ErrStreamClosed = errors.New("event stream closed by server")

// Subscription is one open live subscription, owned by whoever called
// Subscribe and released exactly once via Close. Parsed events arrive on
// Events in transport delivery order; malformed frames are dropped and
// counted, never fatal to the stream.
type Subscription struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	events chan event.AgentEvent
	done   chan struct{}
	once   sync.Once
	log    *slog.Logger

	parseErrors atomic.Int64
	err         error // read only after done is closed
}

// Subscribe opens the live SSE subscription. The returned Subscription is
// live once Subscribe returns; it dies with ctx or with Close.
func (c *Client) Subscribe(ctx context.Context, log *slog.Logger) (*Subscription, error) {
	id := uuid.NewString()
	subCtx, cancel := context.WithCancel(ctx)

	url := fmt.Sprintf("%s%s?client_id=%s", c.baseURL, streamPath, id)
	req, err := http.NewRequestWithContext(subCtx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxFrameBytes))
		_ = resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("stream endpoint returned %d", resp.StatusCode)
	}

	sub := &Subscription{
		id:     id,
		ctx:    subCtx,
		cancel: cancel,
		events: make(chan event.AgentEvent, 32),
		done:   make(chan struct{}),
		log:    log.With("subscription", id),
	}

	go sub.read(resp.Body)
	return sub, nil
}

// ID returns the client id the subscription registered with the agent.
func (s *Subscription) ID() string {
	return s.id
}

// Events returns the channel of parsed live events. It is closed when the
// stream ends for any reason; call Err afterwards to learn why.
func (s *Subscription) Events() <-chan event.AgentEvent {
	return s.events
}

// Err reports why the stream ended: a transport error, ErrStreamClosed for a
// clean server-side close, or nil when the subscription was closed locally.
// It blocks until the read loop has finished.
func (s *Subscription) Err() error {
	<-s.done
	return s.err
}

// ParseErrors returns the number of malformed frames dropped so far.
func (s *Subscription) ParseErrors() int64 {
	return s.parseErrors.Load()
}

// Close releases the subscription and its transport. Idempotent; returns
// once the read loop has exited, so no goroutine outlives the call.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
	<-s.done
}

// read consumes SSE frames until the transport ends. Each `data:` line is
// one JSON-encoded AgentEvent.
func (s *Subscription) read(body io.ReadCloser) {
	defer close(s.done)
	defer func() { _ = body.Close() }()
	defer close(s.events)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			// Blank separators, comments and event/id/retry fields.
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		ev, err := event.Parse([]byte(payload))
		if err != nil {
			s.parseErrors.Add(1)
			s.log.Warn("dropping malformed stream message", "error", err)
			continue
		}

		select {
		case s.events <- ev:
		case <-s.ctx.Done():
			return
		}
	}

	if s.ctx.Err() != nil {
		// Closed locally; not an error.
		return
	}
	if err := scanner.Err(); err != nil {
		s.err = fmt.Errorf("stream read: %w", err)
		return
	}
	s.err = ErrStreamClosed
}
