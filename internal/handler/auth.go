package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/NerfedJinwoo/byte-buddy-talk/internal/middleware"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/model"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/service"
	"github.com/NerfedJinwoo/byte-buddy-talk/pkg/logger"
)

// AuthHandler handles registration, login, logout and session restore.
type AuthHandler struct {
	sessionService *service.SessionService
	logger         *logger.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(sessSvc *service.SessionService, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		sessionService: sessSvc,
		logger:         log,
	}
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateEmail(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidatePassword(req.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.sessionService.Register(r.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		h.logger.Error("registration failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.sessionService.Login(r.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to sign in")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	sessionID := middleware.GetSessionID(ctx)

	if err := h.sessionService.SignOut(ctx, userID, sessionID); err != nil {
		h.logger.Error("sign-out failed",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to sign out")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Session handles GET /api/v1/session
// Restores an existing session: re-marks the user online and returns their
// profile, so a page reload lands back in a fully hydrated state.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	sessionID := middleware.GetSessionID(ctx)

	resp, err := h.sessionService.Restore(ctx, userID, sessionID)
	if err != nil {
		if errors.Is(err, service.ErrSessionExpired) {
			writeError(w, http.StatusUnauthorized, "session expired or revoked")
			return
		}
		h.logger.Error("session restore failed",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to restore session")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
