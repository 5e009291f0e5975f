// Package router assembles the HTTP surface: call webhooks, the media
// websocket, health, and metrics.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/voiceline-ai/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/voiceline-ai/internal/http/middleware"
	"github.com/wolfman30/voiceline-ai/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger         *logging.Logger
	CallEvents     *handlers.CallEventsHandler
	MediaStream    http.Handler
	MetricsHandler http.Handler
}

// New creates the chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/healthz", handlers.Health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	if cfg.CallEvents != nil {
		r.Post("/webhooks/telephony/call", cfg.CallEvents.Handle)
	}
	if cfg.MediaStream != nil {
		r.Handle("/media-stream", cfg.MediaStream)
	}

	return r
}
