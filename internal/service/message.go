package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NerfedJinwoo/byte-buddy-talk/internal/live"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/model"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/store"
	"github.com/NerfedJinwoo/byte-buddy-talk/pkg/logger"
	"github.com/NerfedJinwoo/byte-buddy-talk/pkg/metrics"
)

// MessageService appends messages to rooms and reads them back with sender
// profiles joined. Sends also fan activity notifications out to every
// participant's user subject so directory previews update live.
type MessageService struct {
	store     store.Store
	publisher live.Publisher
	logger    *logger.Logger
}

// NewMessageService creates a new message service.
func NewMessageService(st store.Store, pub live.Publisher, log *logger.Logger) *MessageService {
	return &MessageService{
		store:     st,
		publisher: pub,
		logger:    log,
	}
}

// List returns a room's messages oldest first, each joined with its sender's
// profile. Callers must be participants of the room.
func (s *MessageService) List(ctx context.Context, roomID, userID uuid.UUID) ([]model.MessageView, error) {
	ok, err := s.store.IsParticipant(ctx, roomID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check room membership: %w", err)
	}
	if !ok {
		return nil, ErrNotParticipant
	}

	msgs, err := s.store.ListMessages(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	senderIDs := make([]uuid.UUID, 0, 4)
	seen := make(map[uuid.UUID]bool, 4)
	for _, m := range msgs {
		if !seen[m.SenderID] {
			seen[m.SenderID] = true
			senderIDs = append(senderIDs, m.SenderID)
		}
	}

	profiles, err := s.store.GetProfilesByUserIDs(ctx, senderIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load sender profiles: %w", err)
	}

	views := make([]model.MessageView, 0, len(msgs))
	for _, m := range msgs {
		view := model.MessageView{Message: m}
		if p, ok := profiles[m.SenderID]; ok {
			sender := p
			view.Sender = &sender
		}
		views = append(views, view)
	}
	return views, nil
}

// Send appends a message to a room and notifies the room's live subscribers
// plus every participant's directory stream. Blank content is a silent
// no-op; the store rejects senders who are not participants. Notification
// failures are logged and dropped, the message is already durable.
func (s *MessageService) Send(ctx context.Context, roomID, senderID uuid.UUID, content string) (*model.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}

	msg, err := s.store.InsertMessage(ctx, roomID, senderID, content, model.MessageTypeText)
	if err != nil {
		if errors.Is(err, store.ErrNotParticipant) {
			return nil, ErrNotParticipant
		}
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	metrics.MessagesTotal.WithLabelValues(string(msg.Type)).Inc()

	s.notify(ctx, msg)
	return msg, nil
}

// notify pushes the message event to the room subject and a room-activity
// event to each participant's user subject. Fan-out happens at publish time
// so directory streams only ever watch a single per-user subject.
func (s *MessageService) notify(ctx context.Context, msg *model.Message) {
	now := time.Now()
	roomID := msg.RoomID
	msgID := msg.ID
	senderID := msg.SenderID

	ev := model.Event{
		Type:      model.EventMessageCreated,
		RoomID:    &roomID,
		MessageID: &msgID,
		SenderID:  &senderID,
		At:        now,
	}
	if err := s.publisher.Publish(ctx, live.RoomSubject(roomID), ev); err != nil {
		s.logger.Warn("failed to publish message event",
			zap.String("room_id", roomID.String()),
			zap.Error(err),
		)
	} else {
		metrics.LiveEventsPublished.WithLabelValues(string(model.EventMessageCreated)).Inc()
	}

	participants, err := s.store.RoomParticipantIDs(ctx, roomID)
	if err != nil {
		s.logger.Warn("failed to load participants for activity fan-out",
			zap.String("room_id", roomID.String()),
			zap.Error(err),
		)
		return
	}

	activity := model.Event{
		Type:     model.EventRoomActivity,
		RoomID:   &roomID,
		SenderID: &senderID,
		At:       now,
	}
	for _, pid := range participants {
		if err := s.publisher.Publish(ctx, live.UserSubject(pid), activity); err != nil {
			s.logger.Warn("failed to publish room activity event",
				zap.String("user_id", pid.String()),
				zap.Error(err),
			)
			continue
		}
		metrics.LiveEventsPublished.WithLabelValues(string(model.EventRoomActivity)).Inc()
	}
}
