// Package server wires the Tasklens HTTP routes.
package server

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/Tasklens/internal/api"
	"github.com/MikeSquared-Agency/Tasklens/internal/config"
	"github.com/MikeSquared-Agency/Tasklens/internal/hermes"
	"github.com/MikeSquared-Agency/Tasklens/internal/metrics"
	"github.com/MikeSquared-Agency/Tasklens/internal/middleware"
	"github.com/MikeSquared-Agency/Tasklens/internal/search"
)

// Deps are the components the routes are served from.
type Deps struct {
	Store     api.HealthStore
	Indexer   *search.Indexer
	Engine    *search.Engine
	Hooks     api.TaskHooks
	Hermes    *hermes.Client    // may be nil
	Publisher *hermes.Publisher // may be nil
}

// Server holds the router and its configuration.
type Server struct {
	Router *chi.Mux
	Config *config.Config
	Logger *slog.Logger
}

// New creates a new Server with all routes configured.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogging(logger))

	var notifier api.SearchNotifier
	if deps.Publisher != nil {
		notifier = deps.Publisher
	}

	healthHandler := api.NewHealthHandler(deps.Store, deps.Hermes)
	searchHandler := api.NewSearchHandler(deps.Engine, notifier, logger)
	taskHandler := api.NewTaskHandler(deps.Hooks)
	adminHandler := api.NewAdminHandler(deps.Indexer, logger)

	searchRL := middleware.NewRateLimiter(cfg.SearchRateLimit, cfg.RateWindow)

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.ClientID)
		r.Use(middleware.TokenAuth(cfg.APIToken))

		r.Get("/health", healthHandler.Health)

		r.Route("/tasks", func(r chi.Router) {
			r.Use(chimw.Timeout(30 * time.Second))
			r.With(searchRL.Middleware).Get("/search", searchHandler.Search)
			r.Post("/{id}/index", taskHandler.Index)
			r.Delete("/{id}/index", taskHandler.Unindex)
		})

		// Backfill may run for minutes; no request timeout.
		r.Route("/admin/embeddings", func(r chi.Router) {
			r.Post("/backfill", adminHandler.Backfill)
			r.Get("/status", adminHandler.Status)
		})
	})

	return &Server{Router: r, Config: cfg, Logger: logger}
}
