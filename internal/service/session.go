package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/NerfedJinwoo/byte-buddy-talk/internal/auth"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/model"
	"github.com/NerfedJinwoo/byte-buddy-talk/internal/store"
	"github.com/NerfedJinwoo/byte-buddy-talk/pkg/logger"
)

// SessionService owns the authenticated identity lifecycle: registration,
// login, session restore and sign-out. All paths that establish an identity
// converge on the same presence transition, so racing establishment events
// (login response vs. restore call) settle on the same state.
type SessionService struct {
	store      store.Store
	presence   *PresenceService
	logger     *logger.Logger
	jwtSecret  string
	sessionTTL time.Duration
}

// NewSessionService creates a new session service.
func NewSessionService(st store.Store, presence *PresenceService, jwtSecret string, sessionTTL time.Duration, log *logger.Logger) *SessionService {
	return &SessionService{
		store:      st,
		presence:   presence,
		logger:     log,
		jwtSecret:  jwtSecret,
		sessionTTL: sessionTTL,
	}
}

// Register creates the user and profile in a single store transaction and
// opens a session. The profile's username comes from the request hint or the
// email local part, with an incrementing numeric suffix appended until
// unique.
func (s *SessionService) Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResponse, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	base := DeriveUsername(req.Username, req.Email)
	displayName := req.DisplayName
	if displayName == "" {
		displayName = base
	}

	user, profile, err := s.createAccount(ctx, req.Email, string(hash), base, displayName)
	if err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	resp, err := s.openSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	resp.Profile = profile
	s.logger.Info("user registered",
		zap.String("user_id", user.ID.String()),
		zap.String("username", profile.Username),
	)
	return resp, nil
}

// createAccount inserts the user and profile under the first free username
// candidate: base, base1, base2, ... Each attempt is one atomic store write,
// so a lost creation race (another session claiming the candidate between
// the existence check and the insert) rolls back cleanly and advances to the
// next suffix. Any other failure leaves no user row behind.
func (s *SessionService) createAccount(ctx context.Context, email, passwordHash, base, displayName string) (*model.User, *model.Profile, error) {
	for i := 0; ; i++ {
		candidate := base
		if i > 0 {
			candidate = base + strconv.Itoa(i)
		}

		taken, err := s.store.UsernameExists(ctx, candidate)
		if err != nil {
			return nil, nil, err
		}
		if taken {
			continue
		}

		user, profile, err := s.store.CreateUserWithProfile(ctx, email, passwordHash, candidate, displayName)
		if errors.Is(err, store.ErrUsernameTaken) {
			continue
		}
		return user, profile, err
	}
}

// Login verifies credentials and opens a session, marking the user online.
func (s *SessionService) Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResponse, error) {
	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	resp, err := s.openSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	profile, err := s.store.GetProfileByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	resp.Profile = profile
	return resp, nil
}

// openSession inserts the session row, issues the token and marks the user
// online. Presence failures never block session establishment.
func (s *SessionService) openSession(ctx context.Context, userID uuid.UUID) (*model.AuthResponse, error) {
	sess, err := s.store.CreateSession(ctx, userID, time.Now().Add(s.sessionTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	token, err := auth.Sign(s.jwtSecret, userID, sess.ID, sess.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	s.presence.Set(ctx, userID, true)

	return &model.AuthResponse{
		Token:     token,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

// Restore resolves an existing session back into an identity, re-marking
// the user online. Restore may run concurrently with a login on another
// tab; both perform the same idempotent presence write.
func (s *SessionService) Restore(ctx context.Context, userID, sessionID uuid.UUID) (*model.AuthResponse, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	s.presence.Set(ctx, userID, true)

	profile, err := s.store.GetProfileByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	return &model.AuthResponse{
		ExpiresAt: sess.ExpiresAt,
		Profile:   profile,
	}, nil
}

// SignOut flips the user offline and then revokes the session. The order is
// a hard requirement: the presence write is issued before auth teardown so
// the user is not stranded "online". A failed presence write is logged
// inside the presence service and never prevents revocation.
func (s *SessionService) SignOut(ctx context.Context, userID, sessionID uuid.UUID) error {
	s.presence.Set(ctx, userID, false)

	if err := s.store.RevokeSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	s.logger.Info("user signed out", zap.String("user_id", userID.String()))
	return nil
}

// ValidateSession checks that a session is live and returns its owner. It
// backs the auth middleware.
func (s *SessionService) ValidateSession(ctx context.Context, sessionID uuid.UUID) (uuid.UUID, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return uuid.Nil, ErrSessionExpired
		}
		return uuid.Nil, err
	}
	if sess.RevokedAt != nil || time.Now().After(sess.ExpiresAt) {
		return uuid.Nil, ErrSessionExpired
	}
	return sess.UserID, nil
}
