package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func waitForCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ConnectionCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d connections, have %d", want, hub.ConnectionCount())
}

func TestNewHub(t *testing.T) {
	hub := NewHub()
	if hub == nil {
		t.Fatal("expected non-nil hub")
	}
	if hub.ConnectionCount() != 0 {
		t.Fatalf("expected 0 connections, got %d", hub.ConnectionCount())
	}
}

func TestBroadcastEventNoConnections(t *testing.T) {
	hub := NewHub()

	// No connections should not panic or block.
	hub.BroadcastEvent(context.Background(), "feed.status", map[string]string{
		"status": "live",
	})
}

func TestBroadcastEventMarshalError(t *testing.T) {
	hub := NewHub()

	// A channel cannot be marshaled to JSON; should log and not panic.
	hub.BroadcastEvent(context.Background(), "bad", make(chan int))
}

func TestBroadcastEventDeliversEnvelope(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, srv.URL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close(websocket.StatusNormalClosure, "")

	waitForCount(t, hub, 1)

	hub.BroadcastEvent(ctx, "feed.event", map[string]string{
		"stage":   "sourcing",
		"message": "searching suppliers",
	})

	_, data, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var env struct {
		Type    string            `json:"type"`
		Payload map[string]string `json:"payload"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Type != "feed.event" {
		t.Errorf("expected type feed.event, got %s", env.Type)
	}
	if env.Payload["stage"] != "sourcing" {
		t.Errorf("expected sourcing payload, got %v", env.Payload)
	}
}

func TestBroadcastDropsDeadConnection(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, srv.URL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	waitForCount(t, hub, 1)

	_ = c.CloseNow()

	// Broadcast must return promptly and the dead tab must be dropped.
	start := time.Now()
	hub.BroadcastEvent(ctx, "feed.status", map[string]string{"status": "live"})
	if elapsed := time.Since(start); elapsed > writeTimeout+time.Second {
		t.Fatalf("broadcast blocked for %v", elapsed)
	}

	waitForCount(t, hub, 0)
}

func TestRemoveNonexistent(t *testing.T) {
	hub := NewHub()

	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &conn{ws: nil, cancel: cancel}
	hub.remove(c)
}
