// Package api assembles the HTTP surface: /health, /metrics and the authenticated /v1 routes.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/clipmark/highlights/internal/api/handlers"
	"github.com/clipmark/highlights/internal/api/middleware"
	"github.com/clipmark/highlights/internal/observability"
)

// DefaultMaxBodyBytes caps JSON request bodies.
const DefaultMaxBodyBytes = 1 << 20

// RouterConfig holds the router's dependencies. MetricsHandler and HTTPMetrics are nil when metrics are off.
type RouterConfig struct {
	APIKey         string
	MaxBodyBytes   int64
	Health         *handlers.HealthHandler
	Chat           *handlers.ChatHandler
	Videos         *handlers.VideosHandler
	MetricsHandler http.Handler
	HTTPMetrics    observability.HTTPMetrics
	Logger         *slog.Logger
}

// NewRouter builds the chi router.
// Chain: RequestID -> Recoverer -> Logging -> Metrics; auth and the body limit apply to /v1 only.
func NewRouter(cfg RouterConfig) *chi.Mux {
	maxBody := cfg.MaxBodyBytes
	if maxBody == 0 {
		maxBody = DefaultMaxBodyBytes
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.Metrics(cfg.HTTPMetrics))

	r.Get("/health", cfg.Health.Check)

	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.APIKey))
		r.Use(middleware.MaxBody(maxBody))

		r.Post("/chat/query", cfg.Chat.Query)

		r.Post("/videos", cfg.Videos.Create)
		r.Get("/videos/{id}", cfg.Videos.Get)
		r.Delete("/videos/{id}", cfg.Videos.Delete)
	})

	return r
}
