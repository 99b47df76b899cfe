package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the console API routes on the given chi router.
// The WebSocket endpoint is mounted separately so it can skip the request
// timeout middleware.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Healthz)

	r.Route("/api", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		r.Get("/feed", h.GetFeed)
		r.Get("/feed/status", h.GetFeedStatus)
		r.Post("/feed/refresh", h.RefreshFeed)
		r.Get("/orders/{orderID}/stage", h.GetOrderStage)
	})
}
