package store

import (
	"context"
	"fmt"
)

// schema is applied at startup. Statements are idempotent so repeated boots
// against the same database are safe.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id         UUID PRIMARY KEY,
		user_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		expires_at TIMESTAMPTZ NOT NULL,
		revoked_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS profiles (
		id           UUID PRIMARY KEY,
		user_id      UUID NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
		username     TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		avatar_url   TEXT,
		status       TEXT NOT NULL DEFAULT '',
		is_online    BOOLEAN NOT NULL DEFAULT FALSE,
		last_seen    TIMESTAMPTZ,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS chat_rooms (
		id         UUID PRIMARY KEY,
		name       TEXT,
		is_group   BOOLEAN NOT NULL DEFAULT FALSE,
		pair_key   TEXT UNIQUE,
		created_by UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS chat_participants (
		id           UUID PRIMARY KEY,
		chat_room_id UUID NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
		user_id      UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		joined_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (chat_room_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id           UUID PRIMARY KEY,
		chat_room_id UUID NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
		sender_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		content      TEXT NOT NULL,
		message_type TEXT NOT NULL DEFAULT 'text',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_room_created
		ON messages (chat_room_id, created_at, id)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_participants_user
		ON chat_participants (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_rooms_updated
		ON chat_rooms (updated_at DESC)`,
}

// Migrate applies the schema to the connected database.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
