package handler

import (
	"context"
	"net/http"

	"github.com/birdtrack/support-platform/internal/bus"
)

// Pinger verifies connectivity to the durable store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	busClient *bus.Client
	store     Pinger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(busClient *bus.Client, store Pinger) *HealthHandler {
	return &HealthHandler{
		busClient: busClient,
		store:     store,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.busClient == nil || !h.busClient.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "NATS not connected",
		})
		return
	}

	if err := h.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "database not reachable",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
