package core

import (
	"net/http"
	"time"
)

// healthResponse is the JSON response body for the health check endpoint.
type healthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}

// HandleHealth reports service liveness. The service holds no persistent
// state and no always-on upstream connections, so there are no subsystem
// probes; reaching the handler is the health signal.
//
// This endpoint is public and is mounted at GET /health.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, healthResponse{
		Status:    "ok",
		Service:   s.Config.Service,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
