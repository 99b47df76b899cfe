package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/anirudhk-tech/haggl-console/internal/domain/event"
	"github.com/anirudhk-tech/haggl-console/internal/domain/stage"
	"github.com/anirudhk-tech/haggl-console/internal/service"
)

// Handlers holds dependencies for the console API handlers.
type Handlers struct {
	Session *service.Session
	Log     *slog.Logger
}

// NewHandlers creates the handler set for the feed session.
func NewHandlers(session *service.Session, log *slog.Logger) *Handlers {
	return &Handlers{Session: session, Log: log}
}

type feedResponse struct {
	Events       []event.AgentEvent `json:"events"`
	CurrentStage event.AgentStage   `json:"current_stage"`
}

// GetFeed returns the buffered feed, newest first, plus the current stage.
func (h *Handlers) GetFeed(w http.ResponseWriter, r *http.Request) {
	events := h.Session.Events()
	if events == nil {
		events = []event.AgentEvent{}
	}
	writeJSON(w, http.StatusOK, feedResponse{
		Events:       events,
		CurrentStage: h.Session.CurrentStage(),
	})
}

type statusResponse struct {
	service.Health
	Milestones []stage.Milestone `json:"milestones"`
}

// GetFeedStatus returns the connection health snapshot and the milestone
// rail classified against the current stage.
func (h *Handlers) GetFeedStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Health:     h.Session.Health(),
		Milestones: h.Session.Rail(),
	})
}

// RefreshFeed re-runs the backfill and restarts the live subscription. A
// failed backfill leaves the feed untouched and reports a gateway error.
func (h *Handlers) RefreshFeed(w http.ResponseWriter, r *http.Request) {
	if err := h.Session.Refresh(r.Context()); err != nil {
		if errors.Is(err, service.ErrSessionStopped) {
			writeError(w, http.StatusConflict, "feed session is stopped")
			return
		}
		h.Log.Warn("manual refresh failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.Session.Health())
}

type orderStageResponse struct {
	OrderID string           `json:"order_id"`
	Stage   event.AgentStage `json:"stage"`
	Label   string           `json:"label"`
	Accent  string           `json:"accent"`
}

// GetOrderStage returns the latest stage observed for one order.
func (h *Handlers) GetOrderStage(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "order id is required")
		return
	}

	s := h.Session.StageFor(orderID)
	writeJSON(w, http.StatusOK, orderStageResponse{
		OrderID: orderID,
		Stage:   s,
		Label:   s.Label(),
		Accent:  s.Accent(),
	})
}

// Healthz reports process liveness and the feed connection state.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"feed":   h.Session.Health().Status,
	})
}
