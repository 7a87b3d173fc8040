package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NerfedJinwoo/byte-buddy-talk/internal/middleware"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/model"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/service"
	"github.com/NerfedJinwoo/byte-buddy-talk/pkg/logger"
)

// RoomHandler handles conversation directory endpoints.
type RoomHandler struct {
	roomService *service.RoomService
	logger      *logger.Logger
}

// NewRoomHandler creates a new room handler.
func NewRoomHandler(roomSvc *service.RoomService, log *logger.Logger) *RoomHandler {
	return &RoomHandler{
		roomService: roomSvc,
		logger:      log,
	}
}

// List handles GET /api/v1/rooms
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	rooms, err := h.roomService.ListRooms(ctx, userID)
	if err != nil {
		h.logger.Error("failed to list rooms",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to list rooms")
		return
	}

	writeJSON(w, http.StatusOK, &model.ListRoomsResponse{
		Rooms: rooms,
		Total: len(rooms),
	})
}

// ResolveDirect handles POST /api/v1/rooms/direct
// Returns 200 with the room whether it was just created or already existed;
// the caller does not care which side won the race.
func (h *RoomHandler) ResolveDirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.ResolveDirectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OtherUserID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "other_user_id is required")
		return
	}

	room, err := h.roomService.ResolveDirect(ctx, userID, req.OtherUserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSelfChat):
			writeError(w, http.StatusBadRequest, "cannot open a direct chat with yourself")
		case errors.Is(err, service.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		default:
			h.logger.Error("failed to resolve direct room",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
			writeError(w, http.StatusInternalServerError, "failed to resolve direct room")
		}
		return
	}

	writeJSON(w, http.StatusOK, room)
}

// CreateGroup handles POST /api/v1/rooms/group
func (h *RoomHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateGroupName(req.Name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	room, err := h.roomService.CreateGroup(ctx, userID, &req)
	if err != nil {
		h.logger.Error("failed to create group room",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to create group")
		return
	}

	writeJSON(w, http.StatusCreated, room)
}
