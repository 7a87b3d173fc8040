package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NerfedJinwoo/byte-buddy-talk/internal/model"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/store"
	"github.com/NerfedJinwoo/byte-buddy-talk/pkg/logger"
	"github.com/NerfedJinwoo/byte-buddy-talk/pkg/metrics"
)

// RoomService manages the conversation directory: resolving direct rooms,
// creating groups and listing a user's rooms with display fields filled in.
type RoomService struct {
	store  store.Store
	logger *logger.Logger
}

// NewRoomService creates a new room service.
func NewRoomService(st store.Store, log *logger.Logger) *RoomService {
	return &RoomService{store: st, logger: log}
}

// ResolveDirect returns the single direct room between the caller and another
// user, creating it when none exists. Resolution is symmetric and idempotent:
// both users resolving concurrently converge on the same room, because the
// store rejects a second insert for the pair and the loser re-reads the
// winner's row.
func (s *RoomService) ResolveDirect(ctx context.Context, selfID, otherID uuid.UUID) (*model.Room, error) {
	if selfID == otherID {
		return nil, ErrSelfChat
	}

	if _, err := s.store.GetProfileByUserID(ctx, otherID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up counterpart: %w", err)
	}

	room, err := s.store.CreateDirectRoom(ctx, selfID, otherID)
	if err == nil {
		metrics.DirectChatResolutions.WithLabelValues("created").Inc()
		s.logger.Info("direct room created",
			zap.String("room_id", room.ID.String()),
			zap.String("user_id", selfID.String()),
			zap.String("other_user_id", otherID.String()),
		)
		return room, nil
	}
	if !errors.Is(err, store.ErrPairExists) {
		return nil, fmt.Errorf("failed to create direct room: %w", err)
	}

	room, err = s.store.GetDirectRoom(ctx, selfID, otherID)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing direct room: %w", err)
	}
	metrics.DirectChatResolutions.WithLabelValues("existing").Inc()
	return room, nil
}

// CreateGroup creates a named group room. The creator is always a member,
// whether or not they appear in the member list.
func (s *RoomService) CreateGroup(ctx context.Context, creatorID uuid.UUID, req *model.CreateGroupRequest) (*model.Room, error) {
	room, err := s.store.CreateGroupRoom(ctx, creatorID, req.Name, req.MemberIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create group room: %w", err)
	}
	s.logger.Info("group room created",
		zap.String("room_id", room.ID.String()),
		zap.String("user_id", creatorID.String()),
		zap.Int("members", len(req.MemberIDs)),
	)
	return room, nil
}

// ListRooms returns the caller's conversation directory, most recently
// active first.
func (s *RoomService) ListRooms(ctx context.Context, userID uuid.UUID) ([]model.RoomSummary, error) {
	listings, err := s.store.ListRooms(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	summaries := make([]model.RoomSummary, 0, len(listings))
	for _, l := range listings {
		summaries = append(summaries, summarize(l))
	}
	return summaries, nil
}

// summarize derives the directory display fields for one room. Group rooms
// show their own name; direct rooms show the counterpart's display name with
// presence attached. A direct room whose counterpart profile is missing
// still renders, with a placeholder name.
func summarize(l model.RoomListing) model.RoomSummary {
	sum := model.RoomSummary{
		ID:          l.Room.ID,
		IsGroup:     l.Room.IsGroup,
		LastMessage: l.LastMessage,
		UpdatedAt:   l.Room.UpdatedAt,
	}

	if l.Room.IsGroup {
		sum.DisplayName = "Group Chat"
		if l.Room.Name != nil && *l.Room.Name != "" {
			sum.DisplayName = *l.Room.Name
		}
		return sum
	}

	if l.Counterpart == nil {
		sum.DisplayName = "Unknown User"
		return sum
	}

	sum.DisplayName = l.Counterpart.DisplayName
	if sum.DisplayName == "" {
		sum.DisplayName = l.Counterpart.Username
	}
	sum.AvatarURL = l.Counterpart.AvatarURL
	otherID := l.Counterpart.UserID
	sum.OtherUserID = &otherID
	online := l.Counterpart.IsOnline
	sum.IsOnline = &online
	sum.LastSeen = l.Counterpart.LastSeen
	return sum
}
