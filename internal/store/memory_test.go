package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/NerfedJinwoo/byte-buddy-talk/internal/model"
)

func newUserWithProfile(t *testing.T, s *MemoryStore, email, username string) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	user, _, err := s.CreateUserWithProfile(ctx, email, "hash", username, username)
	require.NoError(t, err)
	return user.ID
}

func TestMemoryStore_Uniqueness(t *testing.T) {
	ctx := context.Background()

	t.Run("should reject a duplicate email", func(t *testing.T) {
		req := require.New(t)
		s := NewMemoryStore()

		_, err := s.CreateUser(ctx, "a@example.com", "h1")
		req.NoError(err)
		_, err = s.CreateUser(ctx, "a@example.com", "h2")
		req.ErrorIs(err, ErrEmailTaken)
	})

	t.Run("should reject a duplicate username without leaving a user row", func(t *testing.T) {
		req := require.New(t)
		s := NewMemoryStore()

		_, _, err := s.CreateUserWithProfile(ctx, "a@example.com", "h", "alice", "Alice")
		req.NoError(err)
		_, _, err = s.CreateUserWithProfile(ctx, "b@example.com", "h", "alice", "Alice Too")
		req.ErrorIs(err, ErrUsernameTaken)

		// The rejected registration must be fully rolled back: the email
		// stays free and a later attempt with a fresh username succeeds.
		_, err = s.GetUserByEmail(ctx, "b@example.com")
		req.ErrorIs(err, ErrNotFound)
		_, _, err = s.CreateUserWithProfile(ctx, "b@example.com", "h", "alice2", "Alice Too")
		req.NoError(err)
	})

	t.Run("should reject a second direct room for the same pair in either order", func(t *testing.T) {
		req := require.New(t)
		s := NewMemoryStore()
		a := newUserWithProfile(t, s, "a@example.com", "alice")
		b := newUserWithProfile(t, s, "b@example.com", "bob")

		room, err := s.CreateDirectRoom(ctx, a, b)
		req.NoError(err)

		_, err = s.CreateDirectRoom(ctx, a, b)
		req.ErrorIs(err, ErrPairExists)
		_, err = s.CreateDirectRoom(ctx, b, a)
		req.ErrorIs(err, ErrPairExists)

		got, err := s.GetDirectRoom(ctx, b, a)
		req.NoError(err)
		req.Equal(room.ID, got.ID)
	})
}

func TestMemoryStore_Presence(t *testing.T) {
	ctx := context.Background()

	t.Run("should leave last_seen unset while user stays online", func(t *testing.T) {
		req := require.New(t)
		s := NewMemoryStore()
		a := newUserWithProfile(t, s, "a@example.com", "alice")

		req.NoError(s.SetPresence(ctx, a, true))
		p, err := s.GetProfileByUserID(ctx, a)
		req.NoError(err)
		req.True(p.IsOnline)
		req.Nil(p.LastSeen)
	})

	t.Run("should stamp last_seen on going offline and keep it on later online writes", func(t *testing.T) {
		req := require.New(t)
		s := NewMemoryStore()
		a := newUserWithProfile(t, s, "a@example.com", "alice")

		req.NoError(s.SetPresence(ctx, a, false))
		p, err := s.GetProfileByUserID(ctx, a)
		req.NoError(err)
		req.False(p.IsOnline)
		req.NotNil(p.LastSeen)
		offlineAt := *p.LastSeen

		req.NoError(s.SetPresence(ctx, a, true))
		p, err = s.GetProfileByUserID(ctx, a)
		req.NoError(err)
		req.True(p.IsOnline)
		req.NotNil(p.LastSeen)
		req.Equal(offlineAt, *p.LastSeen)
	})

	t.Run("should fail for a user without a profile", func(t *testing.T) {
		req := require.New(t)
		s := NewMemoryStore()

		err := s.SetPresence(ctx, uuid.Must(uuid.NewV7()), true)
		req.ErrorIs(err, ErrNotFound)
	})
}

func TestMemoryStore_Messages(t *testing.T) {
	ctx := context.Background()

	t.Run("should reject inserts from non-participants", func(t *testing.T) {
		req := require.New(t)
		s := NewMemoryStore()
		a := newUserWithProfile(t, s, "a@example.com", "alice")
		b := newUserWithProfile(t, s, "b@example.com", "bob")
		c := newUserWithProfile(t, s, "c@example.com", "carol")

		room, err := s.CreateDirectRoom(ctx, a, b)
		req.NoError(err)

		_, err = s.InsertMessage(ctx, room.ID, c, "hi", model.MessageTypeText)
		req.ErrorIs(err, ErrNotParticipant)

		msgs, err := s.ListMessages(ctx, room.ID)
		req.NoError(err)
		req.Empty(msgs)
	})

	t.Run("should list messages in insertion order and bump room activity", func(t *testing.T) {
		req := require.New(t)
		s := NewMemoryStore()
		a := newUserWithProfile(t, s, "a@example.com", "alice")
		b := newUserWithProfile(t, s, "b@example.com", "bob")

		room, err := s.CreateDirectRoom(ctx, a, b)
		req.NoError(err)
		before := room.UpdatedAt

		for _, content := range []string{"one", "two", "three"} {
			_, err := s.InsertMessage(ctx, room.ID, a, content, model.MessageTypeText)
			req.NoError(err)
		}

		msgs, err := s.ListMessages(ctx, room.ID)
		req.NoError(err)
		req.Len(msgs, 3)
		req.Equal("one", msgs[0].Content)
		req.Equal("two", msgs[1].Content)
		req.Equal("three", msgs[2].Content)

		got, err := s.GetDirectRoom(ctx, a, b)
		req.NoError(err)
		req.False(got.UpdatedAt.Before(before))
	})
}

func TestMemoryStore_ListRooms(t *testing.T) {
	ctx := context.Background()

	t.Run("should attach counterpart and last message for direct rooms", func(t *testing.T) {
		req := require.New(t)
		s := NewMemoryStore()
		a := newUserWithProfile(t, s, "a@example.com", "alice")
		b := newUserWithProfile(t, s, "b@example.com", "bob")

		room, err := s.CreateDirectRoom(ctx, a, b)
		req.NoError(err)
		_, err = s.InsertMessage(ctx, room.ID, b, "hello", model.MessageTypeText)
		req.NoError(err)

		listings, err := s.ListRooms(ctx, a)
		req.NoError(err)
		req.Len(listings, 1)
		req.NotNil(listings[0].Counterpart)
		req.Equal(b, listings[0].Counterpart.UserID)
		req.NotNil(listings[0].LastMessage)
		req.Equal("hello", listings[0].LastMessage.Content)
	})

	t.Run("should order rooms by recent activity", func(t *testing.T) {
		req := require.New(t)
		s := NewMemoryStore()
		a := newUserWithProfile(t, s, "a@example.com", "alice")
		b := newUserWithProfile(t, s, "b@example.com", "bob")
		c := newUserWithProfile(t, s, "c@example.com", "carol")

		first, err := s.CreateDirectRoom(ctx, a, b)
		req.NoError(err)
		second, err := s.CreateDirectRoom(ctx, a, c)
		req.NoError(err)

		// A message in the older room moves it back to the top.
		_, err = s.InsertMessage(ctx, first.ID, b, "ping", model.MessageTypeText)
		req.NoError(err)

		listings, err := s.ListRooms(ctx, a)
		req.NoError(err)
		req.Len(listings, 2)
		req.Equal(first.ID, listings[0].Room.ID)
		req.Equal(second.ID, listings[1].Room.ID)
	})

	t.Run("should exclude rooms the user does not belong to", func(t *testing.T) {
		req := require.New(t)
		s := NewMemoryStore()
		a := newUserWithProfile(t, s, "a@example.com", "alice")
		b := newUserWithProfile(t, s, "b@example.com", "bob")
		c := newUserWithProfile(t, s, "c@example.com", "carol")

		_, err := s.CreateDirectRoom(ctx, a, b)
		req.NoError(err)

		listings, err := s.ListRooms(ctx, c)
		req.NoError(err)
		req.Empty(listings)
	})

	t.Run("should include group rooms with the creator as participant", func(t *testing.T) {
		req := require.New(t)
		s := NewMemoryStore()
		a := newUserWithProfile(t, s, "a@example.com", "alice")
		b := newUserWithProfile(t, s, "b@example.com", "bob")

		room, err := s.CreateGroupRoom(ctx, a, "Weekend Plans", []uuid.UUID{b})
		req.NoError(err)

		ids, err := s.RoomParticipantIDs(ctx, room.ID)
		req.NoError(err)
		req.ElementsMatch([]uuid.UUID{a, b}, ids)

		listings, err := s.ListRooms(ctx, a)
		req.NoError(err)
		req.Len(listings, 1)
		req.True(listings[0].Room.IsGroup)
		req.Nil(listings[0].Counterpart)
	})
}
