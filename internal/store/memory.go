package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NerfedJinwoo/byte-buddy-talk/internal/model"
)

// MemoryStore is an in-memory Store for development and tests. It enforces
// the same invariants as PostgresStore: unique emails and usernames, one
// direct room per pair, unique participants and participant-only message
// inserts.
type MemoryStore struct {
	mu           sync.RWMutex
	users        map[uuid.UUID]model.User
	usersByEmail map[string]uuid.UUID
	sessions     map[uuid.UUID]model.Session
	profiles     map[uuid.UUID]model.Profile // keyed by user id
	usernames    map[string]struct{}
	rooms        map[uuid.UUID]model.Room
	pairKeys     map[string]uuid.UUID
	participants map[uuid.UUID][]model.Participant // keyed by room id
	messages     map[uuid.UUID][]model.Message     // keyed by room id, append order
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[uuid.UUID]model.User),
		usersByEmail: make(map[string]uuid.UUID),
		sessions:     make(map[uuid.UUID]model.Session),
		profiles:     make(map[uuid.UUID]model.Profile),
		usernames:    make(map[string]struct{}),
		rooms:        make(map[uuid.UUID]model.Room),
		pairKeys:     make(map[string]uuid.UUID),
		participants: make(map[uuid.UUID][]model.Participant),
		messages:     make(map[uuid.UUID][]model.Message),
	}
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() {}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) CreateUser(ctx context.Context, email, passwordHash string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByEmail[email]; exists {
		return nil, ErrEmailTaken
	}
	user := model.User{
		ID:           uuid.Must(uuid.NewV7()),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	s.users[user.ID] = user
	s.usersByEmail[email] = user.ID
	out := user
	return &out, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	user := s.users[id]
	return &user, nil
}

func (s *MemoryStore) CreateSession(ctx context.Context, userID uuid.UUID, expiresAt time.Time) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := model.Session{
		ID:        uuid.Must(uuid.NewV7()),
		UserID:    userID,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}
	s.sessions[sess.ID] = sess
	out := sess
	return &out, nil
}

func (s *MemoryStore) GetSession(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := sess
	return &out, nil
}

func (s *MemoryStore) RevokeSession(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || sess.RevokedAt != nil {
		return nil
	}
	now := time.Now()
	sess.RevokedAt = &now
	s.sessions[id] = sess
	return nil
}

func (s *MemoryStore) CreateUserWithProfile(ctx context.Context, email, passwordHash, username, displayName string) (*model.User, *model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Both checks run before either write, mirroring the all-or-nothing
	// transaction of the Postgres store.
	if _, exists := s.usersByEmail[email]; exists {
		return nil, nil, ErrEmailTaken
	}
	if _, taken := s.usernames[username]; taken {
		return nil, nil, ErrUsernameTaken
	}

	now := time.Now()
	user := model.User{
		ID:           uuid.Must(uuid.NewV7()),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}
	p := model.Profile{
		ID:          uuid.Must(uuid.NewV7()),
		UserID:      user.ID,
		Username:    username,
		DisplayName: displayName,
		IsOnline:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.users[user.ID] = user
	s.usersByEmail[email] = user.ID
	s.profiles[user.ID] = p
	s.usernames[username] = struct{}{}
	uOut, pOut := user, p
	return &uOut, &pOut, nil
}

func (s *MemoryStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, taken := s.usernames[username]
	return taken, nil
}

func (s *MemoryStore) GetProfileByUserID(ctx context.Context, userID uuid.UUID) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	out := p
	return &out, nil
}

func (s *MemoryStore) GetProfilesByUserIDs(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[uuid.UUID]model.Profile, len(userIDs))
	for _, id := range userIDs {
		if p, ok := s.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *MemoryStore) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profiles := make([]model.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].Username < profiles[j].Username
	})
	return profiles, nil
}

func (s *MemoryStore) SetPresence(ctx context.Context, userID uuid.UUID, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return ErrNotFound
	}
	p.IsOnline = online
	if !online {
		now := time.Now()
		p.LastSeen = &now
	}
	p.UpdatedAt = time.Now()
	s.profiles[userID] = p
	return nil
}

func (s *MemoryStore) CreateDirectRoom(ctx context.Context, selfID, otherID uuid.UUID) (*model.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := DirectPairKey(selfID, otherID)
	if _, exists := s.pairKeys[key]; exists {
		return nil, ErrPairExists
	}

	now := time.Now()
	pairKey := key
	room := model.Room{
		ID:        uuid.Must(uuid.NewV7()),
		IsGroup:   false,
		PairKey:   &pairKey,
		CreatedBy: selfID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.rooms[room.ID] = room
	s.pairKeys[key] = room.ID
	for _, userID := range []uuid.UUID{selfID, otherID} {
		s.participants[room.ID] = append(s.participants[room.ID], model.Participant{
			ID:       uuid.Must(uuid.NewV7()),
			RoomID:   room.ID,
			UserID:   userID,
			JoinedAt: now,
		})
	}
	out := room
	return &out, nil
}

func (s *MemoryStore) GetDirectRoom(ctx context.Context, a, b uuid.UUID) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roomID, ok := s.pairKeys[DirectPairKey(a, b)]
	if !ok {
		return nil, ErrNotFound
	}
	room := s.rooms[roomID]
	return &room, nil
}

func (s *MemoryStore) CreateGroupRoom(ctx context.Context, creatorID uuid.UUID, name string, memberIDs []uuid.UUID) (*model.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	roomName := name
	room := model.Room{
		ID:        uuid.Must(uuid.NewV7()),
		Name:      &roomName,
		IsGroup:   true,
		CreatedBy: creatorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.rooms[room.ID] = room

	seen := map[uuid.UUID]struct{}{}
	for _, userID := range append([]uuid.UUID{creatorID}, memberIDs...) {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		s.participants[room.ID] = append(s.participants[room.ID], model.Participant{
			ID:       uuid.Must(uuid.NewV7()),
			RoomID:   room.ID,
			UserID:   userID,
			JoinedAt: now,
		})
	}
	out := room
	return &out, nil
}

func (s *MemoryStore) ListRooms(ctx context.Context, userID uuid.UUID) ([]model.RoomListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var listings []model.RoomListing
	for roomID, room := range s.rooms {
		if !s.isParticipantLocked(roomID, userID) {
			continue
		}
		l := model.RoomListing{Room: room}
		if !room.IsGroup {
			for _, part := range s.participants[roomID] {
				if part.UserID == userID {
					continue
				}
				if p, ok := s.profiles[part.UserID]; ok {
					other := p
					l.Counterpart = &other
				}
				break
			}
		}
		if msgs := s.messages[roomID]; len(msgs) > 0 {
			last := msgs[len(msgs)-1]
			l.LastMessage = &model.MessagePreview{
				Content:   last.Content,
				SenderID:  last.SenderID,
				CreatedAt: last.CreatedAt,
			}
		}
		listings = append(listings, l)
	}

	sort.SliceStable(listings, func(i, j int) bool {
		return listings[i].Room.UpdatedAt.After(listings[j].Room.UpdatedAt)
	})
	return listings, nil
}

func (s *MemoryStore) RoomParticipantIDs(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	parts := s.participants[roomID]
	ids := make([]uuid.UUID, 0, len(parts))
	for _, p := range parts {
		ids = append(ids, p.UserID)
	}
	return ids, nil
}

func (s *MemoryStore) IsParticipant(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.isParticipantLocked(roomID, userID), nil
}

func (s *MemoryStore) isParticipantLocked(roomID, userID uuid.UUID) bool {
	for _, p := range s.participants[roomID] {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func (s *MemoryStore) InsertMessage(ctx context.Context, roomID, senderID uuid.UUID, content string, msgType model.MessageType) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isParticipantLocked(roomID, senderID) {
		return nil, ErrNotParticipant
	}

	now := time.Now()
	msg := model.Message{
		ID:        uuid.Must(uuid.NewV7()),
		RoomID:    roomID,
		SenderID:  senderID,
		Content:   content,
		Type:      msgType,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.messages[roomID] = append(s.messages[roomID], msg)

	room := s.rooms[roomID]
	room.UpdatedAt = now
	s.rooms[roomID] = room

	out := msg
	return &out, nil
}

func (s *MemoryStore) ListMessages(ctx context.Context, roomID uuid.UUID) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[roomID]
	out := make([]model.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}
