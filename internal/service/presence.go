package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NerfedJinwoo/byte-buddy-talk/internal/live"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/model"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/store"
	"github.com/NerfedJinwoo/byte-buddy-talk/pkg/logger"
	"github.com/NerfedJinwoo/byte-buddy-talk/pkg/metrics"
)

// PresenceService maintains a user's online flag and last-seen timestamp.
// Presence is a side channel: writes are best effort, single attempt, and
// never surface errors to the operations that trigger them.
type PresenceService struct {
	store     store.Store
	publisher live.Publisher
	logger    *logger.Logger
}

// NewPresenceService creates a new presence service.
func NewPresenceService(st store.Store, pub live.Publisher, log *logger.Logger) *PresenceService {
	return &PresenceService{
		store:     st,
		publisher: pub,
		logger:    log,
	}
}

// Set writes a user's presence flag and publishes the transition. The store
// advances last_seen only on writes to offline, so the record keeps meaning
// "when last online". Setting the same value twice is harmless; callers on
// both the sign-in path and the session-restore path may race to mark a
// user online without coordination.
func (s *PresenceService) Set(ctx context.Context, userID uuid.UUID, online bool) {
	if err := s.store.SetPresence(ctx, userID, online); err != nil {
		metrics.PresenceWriteFailures.Inc()
		s.logger.Warn("presence write failed",
			zap.String("user_id", userID.String()),
			zap.Bool("online", online),
			zap.Error(err),
		)
		return
	}
	metrics.RecordPresence(online)

	ev := model.Event{
		Type:   model.EventPresenceChanged,
		UserID: &userID,
		Online: &online,
		At:     time.Now(),
	}
	if err := s.publisher.Publish(ctx, live.PresenceSubject(userID), ev); err != nil {
		s.logger.Warn("failed to publish presence event",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return
	}
	metrics.LiveEventsPublished.WithLabelValues(string(model.EventPresenceChanged)).Inc()
}
