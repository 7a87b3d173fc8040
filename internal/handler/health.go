package handler

import (
	"net/http"

	"github.com/NerfedJinwoo/byte-buddy-talk/internal/live"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/store"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store      store.Store
	liveClient *live.Client
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(st store.Store, liveClient *live.Client) *HealthHandler {
	return &HealthHandler{
		store:      st,
		liveClient: liveClient,
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
	if err := h.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "store unreachable",
		})
		return
	}

	if h.liveClient != nil && !h.liveClient.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "NATS not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
