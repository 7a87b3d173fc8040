// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/NerfedJinwoo/byte-buddy-talk/internal/auth"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// UserIDKey is the context key for the authenticated user id.
	UserIDKey ContextKey = "user_id"
	// SessionIDKey is the context key for the session id (jti).
	SessionIDKey ContextKey = "session_id"
)

// SessionValidator checks that a session is still live (not revoked, not
// expired) and returns the owning user. SessionService implements it.
type SessionValidator interface {
	ValidateSession(ctx context.Context, sessionID uuid.UUID) (uuid.UUID, error)
}

// Auth creates JWT authentication middleware. A syntactically valid token
// is not enough: the session it names must still be live, so sign-out
// takes effect immediately.
func Auth(jwtSecret string, sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				http.Error(w, `{"error":"invalid authorization header format"}`, http.StatusUnauthorized)
				return
			}

			userID, sessionID, err := auth.Parse(jwtSecret, parts[1])
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			sessionUser, err := sessions.ValidateSession(r.Context(), sessionID)
			if err != nil || sessionUser != userID {
				http.Error(w, `{"error":"session expired or revoked"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), userID, sessionID)))
		})
	}
}

// WithIdentity attaches the authenticated identity to a context. It also
// reports the user to the logging middleware's identity slot when one is
// present, since the derived context never propagates back up the chain.
func WithIdentity(ctx context.Context, userID, sessionID uuid.UUID) context.Context {
	if slot, ok := ctx.Value(identitySlotKey).(*identitySlot); ok {
		slot.userID = userID
	}
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// GetUserID gets the authenticated user id from context.
func GetUserID(ctx context.Context) uuid.UUID {
	if v, ok := ctx.Value(UserIDKey).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// GetSessionID gets the session id from context.
func GetSessionID(ctx context.Context) uuid.UUID {
	if v, ok := ctx.Value(SessionIDKey).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}
