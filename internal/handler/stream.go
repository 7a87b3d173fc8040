package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NerfedJinwoo/byte-buddy-talk/internal/live"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/middleware"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/store"
	"github.com/NerfedJinwoo/byte-buddy-talk/pkg/logger"
	"github.com/NerfedJinwoo/byte-buddy-talk/pkg/metrics"
)

const heartbeatInterval = 30 * time.Second

// StreamHandler handles SSE streaming endpoints. Each open stream holds one
// live subscription that is torn down when the client disconnects, so a user
// switching between conversations never accumulates stale listeners.
type StreamHandler struct {
	store      store.Store
	subscriber live.Subscriber
	logger     *logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(st store.Store, sub live.Subscriber, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		store:      st,
		subscriber: sub,
		logger:     log,
	}
}

// HeartbeatEvent keeps idle SSE connections alive through proxies.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// Room handles GET /api/v1/rooms/:id/stream
// Streams message and activity events for one room as SSE. Only
// participants may attach.
func (h *StreamHandler) Room(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	roomIDStr := chi.URLParam(r, "id")

	if err := middleware.ValidateRoomID(roomIDStr); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	roomID := uuid.MustParse(roomIDStr)

	ok, err := h.store.IsParticipant(ctx, roomID, userID)
	if err != nil {
		h.logger.Error("failed to check room membership", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to open stream")
		return
	}
	if !ok {
		writeError(w, http.StatusForbidden, "not a participant of this room")
		return
	}

	sub, err := h.subscriber.Subscribe(live.RoomSubject(roomID))
	if err != nil {
		h.logger.Error("failed to subscribe to room subject",
			zap.String("room_id", roomIDStr),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to open stream")
		return
	}
	defer sub.Close()

	h.serve(w, r, sub, map[string]string{"room_id": roomIDStr})
}

// Directory handles GET /api/v1/rooms/stream
// Streams the caller's directory feed: activity in any of their rooms plus
// presence transitions of their direct-chat counterparts. Consumers refetch
// the room list on each event rather than patching state from the payload.
//
// The presence subject set is fixed when the stream opens. A counterpart
// gained mid-stream still surfaces through room.activity (the refetch
// carries their current presence flag), but their later transitions only
// stream once the client reconnects.
func (h *StreamHandler) Directory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	subjects := []string{live.UserSubject(userID)}
	listings, err := h.store.ListRooms(ctx, userID)
	if err != nil {
		h.logger.Error("failed to list rooms for directory stream", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to open stream")
		return
	}
	for _, l := range listings {
		if l.Counterpart != nil {
			subjects = append(subjects, live.PresenceSubject(l.Counterpart.UserID))
		}
	}

	sub, err := h.subscriber.Subscribe(subjects...)
	if err != nil {
		h.logger.Error("failed to subscribe to directory subjects", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to open stream")
		return
	}
	defer sub.Close()

	h.serve(w, r, sub, map[string]string{"user_id": userID.String()})
}

// serve runs the shared SSE loop: headers, connected event, then events and
// heartbeats until the client goes away.
func (h *StreamHandler) serve(w http.ResponseWriter, r *http.Request, sub *live.Subscription, hello map[string]string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// The server-wide write timeout would cut long-lived streams; lift it
	// for this connection only.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Warn("failed to clear stream write deadline", zap.Error(err))
	}

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	sendSSEEvent(w, flusher, "connected", hello)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	done := r.Context().Done()
	for {
		select {
		case <-done:
			return

		case ev := <-sub.C:
			sendSSEEvent(w, flusher, string(ev.Type), ev)

		case <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", &HeartbeatEvent{Timestamp: time.Now()})
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()

	return nil
}
