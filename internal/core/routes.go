package core

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"klose3xpay/internal/types"
)

// defaultRedactedHeaders lists header names whose values are masked in request
// logs to prevent accidental leakage of credentials or shared secrets.
var defaultRedactedHeaders = []string{
	"Authorization",
	"X-3xPay-Service-Secret",
	"X-Api-Key",
	"X-Api-Secret",
}

// MountRoutes defines the routing hierarchy. It registers the global
// middleware chain, the health check, a JSON 405 handler, and the domain
// handler routes supplied by the entry point.
func (s *Server) MountRoutes() {
	// Global Middleware Registration (strict order matters).
	s.registerGlobalMiddleware()

	s.router.MethodNotAllowed(s.HandleMethodNotAllowed)

	s.router.Get("/health", s.HandleHealth)

	for _, registrar := range s.RouteRegistrars {
		registrar(s.router)
	}
}

// registerGlobalMiddleware applies middleware in strict order.
//
// Ordering Rationale:
//  1. Recoverer     - Catches panics; outermost to catch all failures.
//  2. RequestID     - Generates/propagates correlation ID for tracing.
//  3. RequestLogger - Structured logging (redacted headers).
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
}

// HandleMethodNotAllowed writes the JSON 405 response for methods chi does
// not match on a registered route. The webhook provider retries on 5xx only,
// so a 405 never triggers provider-side retries.
func (s *Server) HandleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusMethodNotAllowed, APIErrorResponse{
		Error: ErrorDetail{
			Code:      string(types.ErrCodeMethodNotAllowed),
			Message:   "Method not allowed",
			RequestID: types.GetRequestID(r.Context()),
		},
	})
}

// RequestIDMiddleware generates or propagates a unique request ID for
// correlation across logs. If the incoming request contains an X-Request-Id
// header, that value is reused; otherwise, a new random ID is generated.
//
// The request ID is stored in the context via types.WithRequestID and set as
// the X-Request-Id response header for client correlation.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := types.WithRequestID(r.Context(), requestID)

		w.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// generateRequestID produces a cryptographically random hex string suitable
// for use as a request correlation ID.
func generateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// If crypto/rand fails we still need a non-empty ID for correlation.
		return "fallback-" + hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(b)
}
