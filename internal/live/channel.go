package live

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/NerfedJinwoo/byte-buddy-talk/internal/model"
	"github.com/NerfedJinwoo/byte-buddy-talk/pkg/logger"
)

const subjectPrefix = "chat"

// RoomSubject is the subject carrying message notifications for one room.
func RoomSubject(roomID uuid.UUID) string {
	return fmt.Sprintf("%s.room.%s", subjectPrefix, roomID)
}

// UserSubject is the per-user subject carrying activity for any of the
// user's rooms, driving live directory previews.
func UserSubject(userID uuid.UUID) string {
	return fmt.Sprintf("%s.user.%s", subjectPrefix, userID)
}

// PresenceSubject carries presence transitions for one user.
func PresenceSubject(userID uuid.UUID) string {
	return fmt.Sprintf("%s.presence.%s", subjectPrefix, userID)
}

// Publisher is the sending half of the live channel, split out so services
// can be tested against a recording fake.
type Publisher interface {
	Publish(ctx context.Context, subject string, ev model.Event) error
}

// Subscriber is the receiving half, split out for the same reason.
type Subscriber interface {
	Subscribe(subjects ...string) (*Subscription, error)
}

// NewSubscription builds a subscription around a caller-owned event channel,
// detached from any broker. Test doubles push events straight into C.
func NewSubscription(buf int) *Subscription {
	return &Subscription{C: make(chan model.Event, buf)}
}

// Channel publishes and subscribes to live update events over NATS.
type Channel struct {
	client *Client
	logger *logger.Logger
}

// NewChannel creates a channel over an established NATS connection.
func NewChannel(client *Client, log *logger.Logger) *Channel {
	return &Channel{client: client, logger: log}
}

// Publish sends an event on a subject. Delivery is best effort fan-out;
// the durable record already lives in the store by the time this is called.
func (c *Channel) Publish(ctx context.Context, subject string, ev model.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := c.client.Conn().Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscription is a cancellable live update subscription. Events arrive on
// C; Close is idempotent and must be called exactly once per viewer when the
// view is torn down, so listeners never leak across conversation switches.
type Subscription struct {
	C chan model.Event

	subs   []*nats.Subscription
	once   sync.Once
	logger *logger.Logger
}

// Subscribe opens one subscription delivering events from all the given
// subjects into a single channel. Slow consumers drop events rather than
// block the delivery goroutine; dropped notifications are safe because
// consumers refetch state on every event anyway.
func (c *Channel) Subscribe(subjects ...string) (*Subscription, error) {
	sub := &Subscription{
		C:      make(chan model.Event, 64),
		logger: c.logger,
	}

	for _, subject := range subjects {
		ns, err := c.client.Conn().Subscribe(subject, func(msg *nats.Msg) {
			var ev model.Event
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				c.logger.Warn("dropping malformed live event", zap.String("subject", msg.Subject))
				return
			}
			select {
			case sub.C <- ev:
			default:
				c.logger.Warn("live subscriber lagging, event dropped", zap.String("subject", msg.Subject))
			}
		})
		if err != nil {
			sub.Close()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		sub.subs = append(sub.subs, ns)
	}

	return sub, nil
}

// Close unsubscribes from all subjects. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		for _, ns := range s.subs {
			if err := ns.Unsubscribe(); err != nil {
				s.logger.Warn("failed to unsubscribe live listener", zap.Error(err))
			}
		}
	})
}
