package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ginchat/ginchat/frontend/internal/api/handlers"
	bridgemw "github.com/ginchat/ginchat/frontend/internal/api/middleware"
)

// RouterConfig defines the dependencies required to build the bridge routing tree.
type RouterConfig struct {
	AllowedOrigins []string
	HealthHandler  *handlers.HealthHandler
	SessionHandler *handlers.SessionHandler
	EventsHandler  *handlers.EventsHandler
	RateLimiter    *bridgemw.RateLimiter
	Gatherer       prometheus.Gatherer
	Logger         zerolog.Logger
}

// NewRouter constructs the chi multiplexer the local UI talks to.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// =========================================================================
	// 1. Global Middleware Pipeline
	// =========================================================================

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(bridgemw.StructuredLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", handlers.Live)

	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	// =========================================================================
	// 2. Bridge Routing Tree
	// =========================================================================

	r.Route("/bridge", func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Limit)
		}

		// Request/response routes get a deadline and a body cap.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.Use(bridgemw.MaxBytes(64 << 10))

			r.Get("/health", cfg.HealthHandler.Get)
			r.Post("/health/dismiss", cfg.HealthHandler.Dismiss)

			r.Get("/session", cfg.SessionHandler.Get)
			r.Post("/session", cfg.SessionHandler.Login)
			r.Delete("/session", cfg.SessionHandler.Logout)
		})

		// Long-lived streams.
		r.Get("/events", cfg.EventsHandler.Stream)
		r.Get("/ws", cfg.EventsHandler.WebSocket)
	})

	return r
}
