// Package store provides persistent storage for users, profiles, rooms and
// messages. PostgresStore and MemoryStore both implement the Store interface;
// the authoritative invariants (username uniqueness, direct-room pair
// uniqueness, participant uniqueness, message authorization) are enforced
// here rather than in caller logic, since check-then-act is racy under
// concurrent sessions.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/NerfedJinwoo/byte-buddy-talk/internal/model"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrEmailTaken is returned when the email is already registered.
	ErrEmailTaken = errors.New("store: email already registered")
	// ErrUsernameTaken is returned when the username is already claimed.
	ErrUsernameTaken = errors.New("store: username already taken")
	// ErrPairExists is returned when a direct room already exists for the
	// unordered user pair. Callers re-query and use the winner.
	ErrPairExists = errors.New("store: direct room already exists for pair")
	// ErrNotParticipant is returned when a write is attempted by a user who
	// is not a participant of the target room.
	ErrNotParticipant = errors.New("store: user is not a participant of room")
)

// Store is the persistence interface for the messaging core.
type Store interface {
	// Users and sessions. CreateUserWithProfile inserts both rows in one
	// transaction so a failed profile insert leaves no user row behind.
	CreateUser(ctx context.Context, email, passwordHash string) (*model.User, error)
	CreateUserWithProfile(ctx context.Context, email, passwordHash, username, displayName string) (*model.User, *model.Profile, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateSession(ctx context.Context, userID uuid.UUID, expiresAt time.Time) (*model.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*model.Session, error)
	RevokeSession(ctx context.Context, id uuid.UUID) error

	// Profiles and presence
	UsernameExists(ctx context.Context, username string) (bool, error)
	GetProfileByUserID(ctx context.Context, userID uuid.UUID) (*model.Profile, error)
	GetProfilesByUserIDs(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]model.Profile, error)
	ListProfiles(ctx context.Context) ([]model.Profile, error)
	SetPresence(ctx context.Context, userID uuid.UUID, online bool) error

	// Rooms and participants
	CreateDirectRoom(ctx context.Context, selfID, otherID uuid.UUID) (*model.Room, error)
	GetDirectRoom(ctx context.Context, a, b uuid.UUID) (*model.Room, error)
	CreateGroupRoom(ctx context.Context, creatorID uuid.UUID, name string, memberIDs []uuid.UUID) (*model.Room, error)
	ListRooms(ctx context.Context, userID uuid.UUID) ([]model.RoomListing, error)
	RoomParticipantIDs(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error)
	IsParticipant(ctx context.Context, roomID, userID uuid.UUID) (bool, error)

	// Messages
	InsertMessage(ctx context.Context, roomID, senderID uuid.UUID, content string, msgType model.MessageType) (*model.Message, error)
	ListMessages(ctx context.Context, roomID uuid.UUID) ([]model.Message, error)

	Ping(ctx context.Context) error
	Close()
}

// DirectPairKey returns the canonical key for a direct room between two
// users: the lexicographically lower id first. The key is order-independent,
// so a UNIQUE constraint on it removes the check-then-insert race between
// two users opening a chat with each other concurrently.
func DirectPairKey(a, b uuid.UUID) string {
	as, bs := a.String(), b.String()
	if as > bs {
		as, bs = bs, as
	}
	return as + ":" + bs
}
