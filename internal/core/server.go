// Package core provides the HTTP chassis for the klose-3xpay relay service.
// It creates the chi router and enforces cross-cutting concerns -- panic
// recovery, request correlation, and structured request logging -- before
// requests reach the domain handlers.
package core

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"klose3xpay/internal/config"
)

// Server encapsulates all dependencies for the relay API, allowing for easy
// injection during testing and distinct configuration for different
// environments.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator

	// RouteRegistrars are populated by the application entry point (main.go).
	// This indirection avoids import cycles between core and handler packages.
	RouteRegistrars []func(chi.Router)

	// Internal router
	router *chi.Mux
}

// NewServer initializes dependencies and prepares the server for route
// mounting. The caller is responsible for mounting routes (via MountRoutes)
// after construction; this separation allows tests to customize route
// registration.
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

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}
