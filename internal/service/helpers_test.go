package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/NerfedJinwoo/byte-buddy-talk/internal/auth"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/model"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/store"
)

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	fail   bool
	events []publishedEvent
}

type publishedEvent struct {
	Subject string
	Event   model.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, subject string, ev model.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("publish failed")
	}
	p.events = append(p.events, publishedEvent{Subject: subject, Event: ev})
	return nil
}

func (p *recordingPublisher) published() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publishedEvent, len(p.events))
	copy(out, p.events)
	return out
}

func (p *recordingPublisher) bySubject(subject string) []model.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []model.Event
	for _, pe := range p.events {
		if pe.Subject == subject {
			out = append(out, pe.Event)
		}
	}
	return out
}

// parseToken extracts the identity a service-issued token carries.
func parseToken(_ *SessionService, token string) (uuid.UUID, uuid.UUID, error) {
	return auth.Parse("test-secret", token)
}

// failingPresenceStore rejects every presence write, everything else passes
// through.
type failingPresenceStore struct {
	store.Store
}

func (failingPresenceStore) SetPresence(ctx context.Context, userID uuid.UUID, online bool) error {
	return errors.New("presence write failed")
}

// flakyAccountStore fails the first account creations with a transient
// error, everything else passes through.
type flakyAccountStore struct {
	*store.MemoryStore
	failures int
}

func (s *flakyAccountStore) CreateUserWithProfile(ctx context.Context, email, passwordHash, username, displayName string) (*model.User, *model.Profile, error) {
	if s.failures > 0 {
		s.failures--
		return nil, nil, errors.New("connection reset by peer")
	}
	return s.MemoryStore.CreateUserWithProfile(ctx, email, passwordHash, username, displayName)
}
