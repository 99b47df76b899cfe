// Package service implements the console's feed session: backfill seeding,
// live subscription ownership, reconnection, and derived health state.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/anirudhk-tech/haggl-console/internal/adapter/agentapi"
	otelx "github.com/anirudhk-tech/haggl-console/internal/adapter/otel"
	"github.com/anirudhk-tech/haggl-console/internal/domain/event"
	"github.com/anirudhk-tech/haggl-console/internal/domain/stage"
	"github.com/anirudhk-tech/haggl-console/internal/port/broadcast"
	"github.com/anirudhk-tech/haggl-console/internal/port/mirror"
)

// Broadcast event types pushed to connected dashboard clients.
const (
	FeedEventType  = "feed.event"
	FeedStatusType = "feed.status"
)

// mirrorPublishTimeout bounds a single mirror publish so a slow JetStream
// server cannot stall the live feed.
const mirrorPublishTimeout = 2 * time.Second

// ErrSessionStopped is returned by operations on a stopped session.
var ErrSessionStopped = errors.New("session stopped")

// Config holds the session's backfill and reconnect policy.
type Config struct {
	RecentLimit    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxRetries     uint
}

// Session owns the dashboard feed for one operator session: the bounded
// event buffer, the stage tracker, and exactly one live subscription at a
// time. Only the session mutates the buffer and connection state; HTTP
// handlers and the WebSocket hub read snapshots.
type Session struct {
	client  *agentapi.Client
	buffer  *event.Buffer
	tracker *stage.Tracker
	cfg     Config
	log     *slog.Logger

	metrics     *otelx.Metrics
	mirror      mirror.Mirror
	broadcaster broadcast.Broadcaster

	// connMu serializes the close-then-open sequence in connect, so two
	// concurrent refreshes cannot both observe no subscription and each
	// leave a stream running.
	connMu sync.Mutex

	mu        sync.Mutex
	status    Status
	statusMsg string
	fetchErr  string
	sub       *agentapi.Subscription
	ctx       context.Context
	cancel    context.CancelFunc
	started   bool
	stopped   bool

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewSession creates a feed session. Mirror, broadcaster and metrics are
// optional and attached via the setters before Start.
func NewSession(client *agentapi.Client, cfg Config, log *slog.Logger) *Session {
	return &Session{
		client:  client,
		buffer:  event.NewBuffer(),
		tracker: stage.NewTracker(),
		cfg:     cfg,
		log:     log,
		status:  StatusConnecting,
	}
}

// SetMirror attaches an event mirror; every accepted live event is
// republished through it.
func (s *Session) SetMirror(m mirror.Mirror) { s.mirror = m }

// SetBroadcaster attaches the dashboard push channel.
func (s *Session) SetBroadcaster(b broadcast.Broadcaster) { s.broadcaster = b }

// SetMetrics attaches metric instruments.
func (s *Session) SetMetrics(m *otelx.Metrics) { s.metrics = m }

// Start seeds the buffer from the recent-events backfill and opens the live
// subscription, concurrently. Neither failure is fatal: a failed backfill
// leaves the buffer empty with a banner, a failed stream open degrades into
// the background reconnect path. Start must be called at most once.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("session already started")
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	var g errgroup.Group
	g.Go(func() error {
		// Backfill failure surfaces as a banner only.
		_ = s.seed(s.ctx)
		return nil
	})
	g.Go(func() error {
		if err := s.connect(s.ctx); err != nil && s.ctx.Err() == nil {
			s.setStatus(StatusError, connectionMessage(s.client.BaseURL(), err))
			s.spawnReconnect()
		}
		return nil
	})
	return g.Wait()
}

// Stop tears down the session: it cancels any in-flight reconnect, releases
// the live subscription, and waits for all session goroutines to exit.
// Idempotent; safe on every exit path.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		sub := s.sub
		s.sub = nil
		cancel := s.cancel
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if sub != nil {
			sub.Close()
		}
		s.wg.Wait()
		s.log.Info("feed session stopped")
	})
}

// Refresh re-runs the backfill and then restarts the live subscription, in
// that order. A failed backfill returns an error, leaves the buffer as it
// was, and does not touch the subscription.
func (s *Session) Refresh(ctx context.Context) error {
	ctx, span := otelx.StartRefreshSpan(ctx)
	defer span.End()

	s.mu.Lock()
	if s.stopped || s.ctx == nil {
		s.mu.Unlock()
		return ErrSessionStopped
	}
	sessionCtx := s.ctx
	s.mu.Unlock()

	if err := s.seed(ctx); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	if err := s.connect(sessionCtx); err != nil {
		if sessionCtx.Err() != nil {
			return ErrSessionStopped
		}
		s.setStatus(StatusError, connectionMessage(s.client.BaseURL(), err))
		s.spawnReconnect()
		return fmt.Errorf("refresh: reopen stream: %w", err)
	}
	return nil
}

// Events returns a snapshot of the feed buffer, newest first.
func (s *Session) Events() []event.AgentEvent {
	return s.buffer.Snapshot()
}

// CurrentStage returns the stage of the last live event, idle before any.
func (s *Session) CurrentStage() event.AgentStage {
	return s.tracker.Current()
}

// StageFor returns the latest stage observed for an order.
func (s *Session) StageFor(orderID string) event.AgentStage {
	return s.tracker.StageFor(orderID)
}

// Rail returns the milestone rail classified against the current stage.
func (s *Session) Rail() []stage.Milestone {
	return stage.Rail(s.tracker.Current())
}

// Health returns the status snapshot for the dashboard indicator.
func (s *Session) Health() Health {
	s.mu.Lock()
	status, msg, fetchErr := s.status, s.statusMsg, s.fetchErr
	s.mu.Unlock()

	return Health{
		Status:       status,
		Message:      msg,
		FetchError:   fetchErr,
		CurrentStage: s.tracker.Current(),
		Buffered:     s.buffer.Len(),
	}
}

// seed fetches the backlog and replaces the buffer wholesale. The agent
// returns oldest-first; the buffer wants newest-first. Backfilled events
// never touch the stage tracker.
func (s *Session) seed(ctx context.Context) error {
	ctx, span := otelx.StartBackfillSpan(ctx, s.cfg.RecentLimit)
	defer span.End()

	start := time.Now()
	events, err := s.client.RecentEvents(ctx, s.cfg.RecentLimit)
	if s.metrics != nil {
		s.metrics.RecordBackfill(ctx, time.Since(start), err)
	}
	if err != nil {
		s.log.Warn("backfill failed, keeping previous feed", "error", err)
		s.setFetchError(err)
		return err
	}

	reversed := make([]event.AgentEvent, len(events))
	for i, ev := range events {
		reversed[len(events)-1-i] = ev
	}
	s.buffer.ReplaceAll(reversed)
	s.clearFetchError()

	s.log.Info("feed seeded", "events", len(events))
	return nil
}

// connect enforces the single-subscription invariant: any open subscription
// is closed before a new one is opened. connMu is held across the whole
// close-open-install sequence, including the network call, so overlapping
// refresh and reconnect attempts are applied one at a time and the loser
// can never leave a second stream running.
func (s *Session) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrSessionStopped
	}
	old := s.sub
	s.sub = nil
	changed := s.updateStatusLocked(StatusConnecting, "")
	s.mu.Unlock()
	if changed {
		s.broadcastStatus(StatusConnecting, "")
	}

	if old != nil {
		old.Close()
	}

	sub, err := s.client.Subscribe(ctx, s.log)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		sub.Close()
		return ErrSessionStopped
	}
	s.sub = sub
	changed = s.updateStatusLocked(StatusLive, "")
	s.mu.Unlock()
	if changed {
		s.broadcastStatus(StatusLive, "")
	}

	s.log.Info("live subscription open", "subscription", sub.ID())

	s.wg.Add(1)
	go s.consume(sub)
	return nil
}

// consume drains one subscription until it ends. Buffer mutation and stage
// derivation are synchronous here, so the feed reflects events exactly in
// arrival order.
func (s *Session) consume(sub *agentapi.Subscription) {
	defer s.wg.Done()

	for ev := range sub.Events() {
		s.buffer.PushFront(ev)
		s.tracker.Observe(ev)

		if s.metrics != nil {
			s.metrics.EventReceived(s.ctx, string(ev.Stage))
		}
		if s.mirror != nil {
			pctx, cancel := context.WithTimeout(s.ctx, mirrorPublishTimeout)
			if err := s.mirror.Publish(pctx, ev); err != nil {
				s.log.Warn("event mirror publish failed", "error", err)
			}
			cancel()
		}
		if s.broadcaster != nil {
			s.broadcaster.BroadcastEvent(s.ctx, FeedEventType, ev)
		}
	}

	err := sub.Err()
	if err == nil || s.ctx.Err() != nil {
		// Replaced by a newer subscription or stopped locally.
		return
	}

	s.log.Warn("live subscription lost", "error", err)
	s.setStatus(StatusError, connectionMessage(s.client.BaseURL(), err))
	s.reconnect()
}

func (s *Session) spawnReconnect() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.reconnect()
	}()
}

// reconnect retries the subscription with exponential backoff and jitter.
// Exhausting the retry budget escalates to the persistent unavailable
// state; only a manual Refresh (or process restart) leaves it.
func (s *Session) reconnect() {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = s.cfg.InitialBackoff
	expo.MaxInterval = s.cfg.MaxBackoff

	op := func() (struct{}, error) {
		if s.metrics != nil {
			s.metrics.ReconnectAttempt(s.ctx)
		}
		return struct{}{}, s.connect(s.ctx)
	}

	_, err := backoff.Retry(s.ctx, op,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(s.cfg.MaxRetries),
	)
	if err == nil || s.ctx.Err() != nil {
		return
	}

	s.log.Error("reconnect budget exhausted", "attempts", s.cfg.MaxRetries, "error", err)
	s.setStatus(StatusUnavailable, connectionMessage(s.client.BaseURL(), err))
}

func connectionMessage(baseURL string, err error) string {
	return fmt.Sprintf("cannot connect to %s: %v", baseURL, err)
}

func (s *Session) setStatus(status Status, msg string) {
	s.mu.Lock()
	changed := s.updateStatusLocked(status, msg)
	s.mu.Unlock()

	if changed {
		s.broadcastStatus(status, msg)
	}
}

// updateStatusLocked must be called with s.mu held. It reports whether the
// status changed; the caller broadcasts after releasing the lock, so a slow
// dashboard write can never stall the session mutex.
func (s *Session) updateStatusLocked(status Status, msg string) bool {
	if s.status == status && s.statusMsg == msg {
		return false
	}
	s.status = status
	s.statusMsg = msg
	return true
}

func (s *Session) broadcastStatus(status Status, msg string) {
	s.mu.Lock()
	b, ctx := s.broadcaster, s.ctx
	s.mu.Unlock()

	if b == nil || ctx == nil {
		return
	}
	b.BroadcastEvent(ctx, FeedStatusType, Health{
		Status:  status,
		Message: msg,
	})
}

func (s *Session) setFetchError(err error) {
	s.mu.Lock()
	s.fetchErr = fmt.Sprintf("backfill failed: %v", err)
	s.mu.Unlock()
}

func (s *Session) clearFetchError() {
	s.mu.Lock()
	s.fetchErr = ""
	s.mu.Unlock()
}
