package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/anirudhk-tech/haggl-console/internal/adapter/agentapi"
	consolehttp "github.com/anirudhk-tech/haggl-console/internal/adapter/http"
	hagglnats "github.com/anirudhk-tech/haggl-console/internal/adapter/nats"
	otelx "github.com/anirudhk-tech/haggl-console/internal/adapter/otel"
	"github.com/anirudhk-tech/haggl-console/internal/adapter/ristretto"
	"github.com/anirudhk-tech/haggl-console/internal/adapter/ws"
	"github.com/anirudhk-tech/haggl-console/internal/config"
	"github.com/anirudhk-tech/haggl-console/internal/logger"
	"github.com/anirudhk-tech/haggl-console/internal/resilience"
	"github.com/anirudhk-tech/haggl-console/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"agent_url", cfg.Agent.BaseURL,
		"log_level", cfg.Logging.Level,
	)

	ctx := context.Background()

	// --- Infrastructure ---

	cache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer cache.Close()

	// Event mirror is optional; an empty NATS URL disables it.
	var mirror *hagglnats.Mirror
	if cfg.NATS.URL != "" {
		mirror, err = hagglnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = mirror.Close() }()
	}

	// --- Agent client ---

	client := agentapi.NewClient(cfg.Agent.BaseURL, cfg.Agent.HTTPTimeout)
	client.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))
	client.SetCache(cache, cfg.Cache.RecentTTL)

	// --- Feed session ---

	hub := ws.NewHub()

	session := service.NewSession(client, service.Config{
		RecentLimit:    cfg.Agent.RecentLimit,
		InitialBackoff: cfg.Stream.InitialBackoff,
		MaxBackoff:     cfg.Stream.MaxBackoff,
		MaxRetries:     cfg.Stream.MaxRetries,
	}, log)
	session.SetBroadcaster(hub)
	if mirror != nil {
		session.SetMirror(mirror)
	}
	if metrics, err := otelx.NewMetrics(); err != nil {
		slog.Warn("metrics disabled", "error", err)
	} else {
		session.SetMetrics(metrics)
	}

	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("feed session: %w", err)
	}
	defer session.Stop()

	// --- HTTP ---

	handlers := consolehttp.NewHandlers(session, log)

	r := chi.NewRouter()

	r.Use(consolehttp.CORS(cfg.Server.CORSOrigin))
	r.Use(consolehttp.Logger)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(otelx.HTTPMiddleware(cfg.Logging.Service))

	// WebSocket endpoint stays outside the timeout group; connections are
	// long-lived.
	r.Get("/ws", hub.HandleWS)

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(30 * time.Second))
		consolehttp.MountRoutes(r, handlers)
	})

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
