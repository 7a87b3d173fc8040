package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NerfedJinwoo/byte-buddy-talk/internal/middleware"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/model"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/service"
	"github.com/NerfedJinwoo/byte-buddy-talk/pkg/logger"
)

// MessageHandler handles message endpoints.
type MessageHandler struct {
	messageService *service.MessageService
	logger         *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(msgSvc *service.MessageService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		messageService: msgSvc,
		logger:         log,
	}
}

// List handles GET /api/v1/rooms/:id/messages
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	roomIDStr := chi.URLParam(r, "id")

	if err := middleware.ValidateRoomID(roomIDStr); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	roomID := uuid.MustParse(roomIDStr)

	views, err := h.messageService.List(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, service.ErrNotParticipant) {
			writeError(w, http.StatusForbidden, "not a participant of this room")
			return
		}
		h.logger.Error("failed to list messages",
			zap.String("room_id", roomIDStr),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}

	writeJSON(w, http.StatusOK, &model.ListMessagesResponse{
		Messages: views,
		Total:    len(views),
	})
}

// Send handles POST /api/v1/rooms/:id/messages
// A whitespace-only body is acknowledged with 204 and discarded.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	roomIDStr := chi.URLParam(r, "id")

	if err := middleware.ValidateRoomID(roomIDStr); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	roomID := uuid.MustParse(roomIDStr)

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := h.messageService.Send(ctx, roomID, userID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyMessage):
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, service.ErrNotParticipant):
			writeError(w, http.StatusForbidden, "not a participant of this room")
		default:
			h.logger.Error("failed to send message",
				zap.String("room_id", roomIDStr),
				zap.Error(err),
			)
			writeError(w, http.StatusInternalServerError, "failed to send message")
		}
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}
