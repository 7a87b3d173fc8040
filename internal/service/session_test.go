package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/NerfedJinwoo/byte-buddy-talk/internal/model"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/store"
	"github.com/NerfedJinwoo/byte-buddy-talk/pkg/logger"
)

func newSessionService(st store.Store) (*SessionService, *recordingPublisher) {
	log := logger.NewNop()
	pub := &recordingPublisher{}
	presence := NewPresenceService(st, pub, log)
	return NewSessionService(st, presence, "test-secret", 24*time.Hour, log), pub
}

func TestSessionService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("should create user, profile and a usable token", func(t *testing.T) {
		req := require.New(t)
		st := store.NewMemoryStore()
		svc, _ := newSessionService(st)

		resp, err := svc.Register(ctx, &model.RegisterRequest{
			Email:    "alice@example.com",
			Password: "supersecret",
		})
		req.NoError(err)
		req.NotEmpty(resp.Token)
		req.NotNil(resp.Profile)
		req.Equal("alice", resp.Profile.Username)
		req.True(resp.Profile.IsOnline)
	})

	t.Run("should reject a duplicate email", func(t *testing.T) {
		req := require.New(t)
		st := store.NewMemoryStore()
		svc, _ := newSessionService(st)

		_, err := svc.Register(ctx, &model.RegisterRequest{Email: "a@example.com", Password: "supersecret"})
		req.NoError(err)
		_, err = svc.Register(ctx, &model.RegisterRequest{Email: "a@example.com", Password: "supersecret"})
		req.ErrorIs(err, ErrEmailTaken)
	})

	t.Run("should suffix colliding usernames", func(t *testing.T) {
		req := require.New(t)
		st := store.NewMemoryStore()
		svc, _ := newSessionService(st)

		first, err := svc.Register(ctx, &model.RegisterRequest{Email: "alice@one.com", Password: "supersecret"})
		req.NoError(err)
		second, err := svc.Register(ctx, &model.RegisterRequest{Email: "alice@two.com", Password: "supersecret"})
		req.NoError(err)
		third, err := svc.Register(ctx, &model.RegisterRequest{Email: "alice@three.com", Password: "supersecret"})
		req.NoError(err)

		req.Equal("alice", first.Profile.Username)
		req.Equal("alice1", second.Profile.Username)
		req.Equal("alice2", third.Profile.Username)
	})

	t.Run("should skip over previously suffixed usernames", func(t *testing.T) {
		req := require.New(t)
		st := store.NewMemoryStore()
		svc, _ := newSessionService(st)

		// Someone already took both the base and the first suffix by hint.
		_, err := svc.Register(ctx, &model.RegisterRequest{Email: "x@example.com", Password: "supersecret", Username: "bob"})
		req.NoError(err)
		_, err = svc.Register(ctx, &model.RegisterRequest{Email: "y@example.com", Password: "supersecret", Username: "bob1"})
		req.NoError(err)

		resp, err := svc.Register(ctx, &model.RegisterRequest{Email: "bob@example.com", Password: "supersecret"})
		req.NoError(err)
		req.Equal("bob2", resp.Profile.Username)
	})

	t.Run("should leave the email free when account creation fails", func(t *testing.T) {
		req := require.New(t)
		st := &flakyAccountStore{MemoryStore: store.NewMemoryStore(), failures: 1}
		svc, _ := newSessionService(st)

		_, err := svc.Register(ctx, &model.RegisterRequest{Email: "a@example.com", Password: "supersecret"})
		req.Error(err)

		// No orphaned user row: the email is still unregistered and a
		// retry completes normally instead of hitting ErrEmailTaken.
		_, err = st.GetUserByEmail(ctx, "a@example.com")
		req.ErrorIs(err, store.ErrNotFound)

		resp, err := svc.Register(ctx, &model.RegisterRequest{Email: "a@example.com", Password: "supersecret"})
		req.NoError(err)
		req.Equal("a", resp.Profile.Username)
	})

	t.Run("should sanitize the username hint", func(t *testing.T) {
		req := require.New(t)
		st := store.NewMemoryStore()
		svc, _ := newSessionService(st)

		resp, err := svc.Register(ctx, &model.RegisterRequest{
			Email:    "z@example.com",
			Password: "supersecret",
			Username: "  Zoe Smith!  ",
		})
		req.NoError(err)
		req.Equal("zoesmith", resp.Profile.Username)
	})
}

func TestSessionService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("should sign in with correct credentials and mark online", func(t *testing.T) {
		req := require.New(t)
		st := store.NewMemoryStore()
		svc, pub := newSessionService(st)

		reg, err := svc.Register(ctx, &model.RegisterRequest{Email: "a@example.com", Password: "supersecret"})
		req.NoError(err)

		resp, err := svc.Login(ctx, &model.LoginRequest{Email: "a@example.com", Password: "supersecret"})
		req.NoError(err)
		req.NotEmpty(resp.Token)
		req.Equal(reg.Profile.UserID, resp.Profile.UserID)
		req.True(resp.Profile.IsOnline)
		req.NotEmpty(pub.published())
	})

	t.Run("should reject a wrong password", func(t *testing.T) {
		req := require.New(t)
		st := store.NewMemoryStore()
		svc, _ := newSessionService(st)

		_, err := svc.Register(ctx, &model.RegisterRequest{Email: "a@example.com", Password: "supersecret"})
		req.NoError(err)

		_, err = svc.Login(ctx, &model.LoginRequest{Email: "a@example.com", Password: "wrongpassword"})
		req.ErrorIs(err, ErrInvalidCredentials)
	})

	t.Run("should reject an unknown email with the same error", func(t *testing.T) {
		req := require.New(t)
		st := store.NewMemoryStore()
		svc, _ := newSessionService(st)

		_, err := svc.Login(ctx, &model.LoginRequest{Email: "nobody@example.com", Password: "supersecret"})
		req.ErrorIs(err, ErrInvalidCredentials)
	})
}

func TestSessionService_SignOut(t *testing.T) {
	ctx := context.Background()

	register := func(t *testing.T, svc *SessionService) (*model.AuthResponse, *model.Session) {
		t.Helper()
		resp, err := svc.Register(ctx, &model.RegisterRequest{Email: "a@example.com", Password: "supersecret"})
		require.NoError(t, err)
		userID, sessionID, err := parseToken(svc, resp.Token)
		require.NoError(t, err)
		return resp, &model.Session{ID: sessionID, UserID: userID}
	}

	t.Run("should flip offline and revoke the session", func(t *testing.T) {
		req := require.New(t)
		st := store.NewMemoryStore()
		svc, _ := newSessionService(st)
		resp, sess := register(t, svc)

		req.NoError(svc.SignOut(ctx, sess.UserID, sess.ID))

		p, err := st.GetProfileByUserID(ctx, resp.Profile.UserID)
		req.NoError(err)
		req.False(p.IsOnline)
		req.NotNil(p.LastSeen)

		_, err = svc.ValidateSession(ctx, sess.ID)
		req.ErrorIs(err, ErrSessionExpired)
	})

	t.Run("should revoke even when the presence write fails", func(t *testing.T) {
		req := require.New(t)
		st := store.NewMemoryStore()
		log := logger.NewNop()
		presence := NewPresenceService(failingPresenceStore{st}, &recordingPublisher{}, log)
		svc := NewSessionService(st, presence, "test-secret", 24*time.Hour, log)

		resp, err := svc.Register(ctx, &model.RegisterRequest{Email: "a@example.com", Password: "supersecret"})
		req.NoError(err)
		userID, sessionID, err := parseToken(svc, resp.Token)
		req.NoError(err)

		req.NoError(svc.SignOut(ctx, userID, sessionID))
		_, err = svc.ValidateSession(ctx, sessionID)
		req.ErrorIs(err, ErrSessionExpired)
	})
}

func TestSessionService_ValidateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("should accept a live session", func(t *testing.T) {
		req := require.New(t)
		st := store.NewMemoryStore()
		svc, _ := newSessionService(st)

		resp, err := svc.Register(ctx, &model.RegisterRequest{Email: "a@example.com", Password: "supersecret"})
		req.NoError(err)
		userID, sessionID, err := parseToken(svc, resp.Token)
		req.NoError(err)

		got, err := svc.ValidateSession(ctx, sessionID)
		req.NoError(err)
		req.Equal(userID, got)
	})

	t.Run("should reject an expired session", func(t *testing.T) {
		req := require.New(t)
		st := store.NewMemoryStore()
		log := logger.NewNop()
		presence := NewPresenceService(st, &recordingPublisher{}, log)
		svc := NewSessionService(st, presence, "test-secret", -time.Minute, log)

		user, err := st.CreateUser(ctx, "a@example.com", "h")
		req.NoError(err)
		sess, err := st.CreateSession(ctx, user.ID, time.Now().Add(-time.Minute))
		req.NoError(err)

		_, err = svc.ValidateSession(ctx, sess.ID)
		req.ErrorIs(err, ErrSessionExpired)
	})

	t.Run("should reject an unknown session", func(t *testing.T) {
		req := require.New(t)
		st := store.NewMemoryStore()
		svc, _ := newSessionService(st)

		user, err := st.CreateUser(ctx, "a@example.com", "h")
		req.NoError(err)
		sess, err := st.CreateSession(ctx, user.ID, time.Now().Add(time.Hour))
		req.NoError(err)
		req.NoError(st.RevokeSession(ctx, sess.ID))

		_, err = svc.ValidateSession(ctx, sess.ID)
		req.ErrorIs(err, ErrSessionExpired)
	})
}

func TestSessionService_Restore(t *testing.T) {
	ctx := context.Background()

	t.Run("should mark online again and return the profile", func(t *testing.T) {
		req := require.New(t)
		st := store.NewMemoryStore()
		svc, _ := newSessionService(st)

		resp, err := svc.Register(ctx, &model.RegisterRequest{Email: "a@example.com", Password: "supersecret"})
		req.NoError(err)
		userID, sessionID, err := parseToken(svc, resp.Token)
		req.NoError(err)

		req.NoError(st.SetPresence(ctx, userID, false))

		restored, err := svc.Restore(ctx, userID, sessionID)
		req.NoError(err)
		req.NotNil(restored.Profile)
		req.True(restored.Profile.IsOnline)
	})
}
