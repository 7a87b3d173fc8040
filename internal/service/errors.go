// Package service provides business logic for the messaging platform.
package service

import "errors"

var (
	// ErrInvalidCredentials is returned for unknown emails or bad passwords.
	// The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken is returned when registering an already-used email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrSessionExpired is returned for revoked or expired sessions.
	ErrSessionExpired = errors.New("session expired or revoked")
	// ErrNotFound is returned when a referenced user or room does not exist.
	ErrNotFound = errors.New("not found")
	// ErrSelfChat is returned when a user opens a direct chat with themselves.
	ErrSelfChat = errors.New("cannot open a direct chat with yourself")
	// ErrNotParticipant is returned when the caller does not belong to the
	// room they are reading or writing.
	ErrNotParticipant = errors.New("not a participant of this room")
	// ErrEmptyMessage marks a whitespace-only send. It is a silent no-op,
	// not a user-facing failure: nothing is persisted and nothing changes.
	ErrEmptyMessage = errors.New("message content is empty")
)
