package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/NerfedJinwoo/byte-buddy-talk/internal/middleware"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/model"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/store"
	"github.com/NerfedJinwoo/byte-buddy-talk/pkg/logger"
)

// UserHandler handles the user directory endpoint.
type UserHandler struct {
	store  store.Store
	logger *logger.Logger
}

// NewUserHandler creates a new user handler.
func NewUserHandler(st store.Store, log *logger.Logger) *UserHandler {
	return &UserHandler{store: st, logger: log}
}

// ListUsersResponse is the response for the user directory.
type ListUsersResponse struct {
	Users []model.Profile `json:"users"`
	Total int             `json:"total"`
}

// List handles GET /api/v1/users
// Returns every profile except the caller's own, for starting new chats.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	selfID := middleware.GetUserID(ctx)

	profiles, err := h.store.ListProfiles(ctx)
	if err != nil {
		h.logger.Error("failed to list profiles", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	users := make([]model.Profile, 0, len(profiles))
	for _, p := range profiles {
		if p.UserID == selfID {
			continue
		}
		users = append(users, p)
	}

	writeJSON(w, http.StatusOK, &ListUsersResponse{
		Users: users,
		Total: len(users),
	})
}
