// Package core provides the HTTP chassis for the railrisk API. It creates a
// chi router and enforces the cross-cutting concerns (panic recovery, request
// ids, logging, metrics, CORS, rate limiting and error rendering) before
// requests reach the domain handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"railrisk/internal/config"
)

// MetricsCollector records API request telemetry.
type MetricsCollector interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// Server holds every dependency of the API chassis so tests can inject
// fakes and environments can differ in configuration.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Metrics   MetricsCollector

	// MetricsHandler, when set, is mounted at the configured metrics path.
	MetricsHandler http.Handler

	// HealthProbes are checked by GET /health.
	HealthProbes []HealthProbe

	// RateLimiter throttles requests per client. Nil disables limiting.
	RateLimiter *RateLimiter

	// V1RouteRegistrars mount domain handlers under /v1. They are populated
	// by the entry point to keep core free of handler imports.
	V1RouteRegistrars []func(chi.Router)

	// Closers run on Shutdown in registration order.
	Closers []func() error

	router *chi.Mux
}

// NewServer initializes the server and its router. Routes are mounted by a
// separate MountRoutes call so tests can customize registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown stops background limiter work and runs the registered closers.
// The first closer error is returned after every closer has run.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown initiated")

	if s.RateLimiter != nil {
		s.RateLimiter.Stop()
	}

	var firstErr error
	for _, closeFn := range s.Closers {
		if err := closeFn(); err != nil {
			s.Logger.ErrorContext(ctx, "error closing resource", "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("closing resources: %w", err)
			}
		}
	}

	s.Logger.InfoContext(ctx, "server shutdown complete")
	return firstErr
}
