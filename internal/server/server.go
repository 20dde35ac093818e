// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects handlers, middleware, and routes and decides
// which routes require authentication. It does not own any store: cmd/snippetd opens the
// primary store, the search client and the queue, builds the services and hands them in as Deps.
//
// ROUTES:
//
//	POST   /users                  → register, returns a token      (public)
//	GET    /health                 → primary store + cluster status (public)
//	GET    /metrics                → Prometheus exposition          (public)
//	POST   /api/snippets           → create                         (auth)
//	GET    /api/snippets           → list, newest first             (auth)
//	DELETE /api/snippets/{id}      → delete                         (auth)
//	GET    /api/search             → fuzzy search                   (auth)
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/snippet-search/internal/auth"
	"github.com/sakif/snippet-search/internal/handler"
	"github.com/sakif/snippet-search/internal/middleware"
)

// Config holds server configuration.
type Config struct {
	Addr            string
	RequestTimeout  time.Duration // per-request deadline, also bounds store calls
	ShutdownTimeout time.Duration // grace period for in-flight requests
	TokenTTL        time.Duration // lifetime of the cookie set on registration
}

// Deps are the collaborators the routes need. Every field is required.
type Deps struct {
	Snippets handler.SnippetService
	Users    handler.UserRegistrar
	Tokens   *auth.TokenService
	Store    handler.Pinger
	Index    handler.ClusterHealth
	Metrics  prometheus.Gatherer
}

type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
}

func New(cfg Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if deps.Snippets == nil || deps.Users == nil || deps.Tokens == nil ||
		deps.Store == nil || deps.Index == nil || deps.Metrics == nil {
		return nil, errors.New("server: missing dependency")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}
	s.setupRoutes(deps)
	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns a unique id to each request, the access log picks it up
// 2. RealIP: extracts the real client IP from proxy headers
// 3. Logger: logs each request with timing info
// 4. Recoverer: catches panics and returns 500 instead of crashing
// 5. Timeout: cancels the request context after RequestTimeout
func (s *Server) setupRoutes(deps Deps) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(chimiddleware.Timeout(s.config.RequestTimeout))

	s.router.NotFound(handler.NotFound)

	snippetHandler := handler.NewSnippetHandler(deps.Snippets, s.logger)
	userHandler := handler.NewUserHandler(deps.Users, s.config.TokenTTL, s.logger)
	healthHandler := handler.NewHealthHandler(deps.Store, deps.Index, s.logger)

	s.router.Post("/users", userHandler.HandleRegister)
	s.router.Get("/health", healthHandler.HandleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(deps.Tokens))
		r.NotFound(handler.NotFound)

		r.Get("/snippets", snippetHandler.HandleList)
		r.Post("/snippets", snippetHandler.HandleCreate)
		r.Delete("/snippets/{id}", snippetHandler.HandleDelete)
		r.Get("/search", snippetHandler.HandleSearch)
	})
}

// Handler exposes the router, tests drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully:
// 1. Stop accepting new HTTP connections
// 2. Wait up to ShutdownTimeout for in-flight requests to finish
//
// Closing the stores is the caller's job, after Start returns.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      s.config.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting", slog.String("addr", s.config.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
