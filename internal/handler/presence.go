package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/NerfedJinwoo/byte-buddy-talk/internal/auth"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/middleware"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/model"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/service"
	"github.com/NerfedJinwoo/byte-buddy-talk/pkg/logger"
)

const beaconWriteTimeout = 5 * time.Second

// PresenceHandler handles presence endpoints.
type PresenceHandler struct {
	presenceService *service.PresenceService
	sessions        middleware.SessionValidator
	jwtSecret       string
	logger          *logger.Logger
}

// NewPresenceHandler creates a new presence handler.
func NewPresenceHandler(presSvc *service.PresenceService, sessions middleware.SessionValidator, jwtSecret string, log *logger.Logger) *PresenceHandler {
	return &PresenceHandler{
		presenceService: presSvc,
		sessions:        sessions,
		jwtSecret:       jwtSecret,
		logger:          log,
	}
}

// Update handles PUT /api/v1/presence
// Driven by page-visibility changes: hidden flips offline, visible flips
// back online. The write is best effort, so the response is always 204.
func (h *PresenceHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.UpdatePresenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.presenceService.Set(ctx, userID, req.Online)
	w.WriteHeader(http.StatusNoContent)
}

// Offline handles POST /api/v1/presence/offline?token=...
// The page-unload beacon cannot set headers, so the token rides in the query
// string. The write runs detached from the request context: the browser
// aborts the request the instant the page is gone, and the offline mark must
// land anyway.
func (h *PresenceHandler) Offline(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}

	userID, sessionID, err := auth.Parse(h.jwtSecret, token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	sessionUser, err := h.sessions.ValidateSession(r.Context(), sessionID)
	if err != nil || sessionUser != userID {
		writeError(w, http.StatusUnauthorized, "session expired or revoked")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), beaconWriteTimeout)
		defer cancel()
		h.presenceService.Set(ctx, userID, false)
	}()

	w.WriteHeader(http.StatusAccepted)
}
