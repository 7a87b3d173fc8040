package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NerfedJinwoo/byte-buddy-talk/internal/model"
)

// PostgresStore is the production Store backed by a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to PostgreSQL and verifies the connection.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// mapUniqueViolation translates unique-constraint violations into sentinel
// errors by constraint name. Anything else passes through unchanged.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "users_email_key":
			return ErrEmailTaken
		case "profiles_username_key":
			return ErrUsernameTaken
		case "chat_rooms_pair_key_key":
			return ErrPairExists
		}
	}
	return err
}

// CreateUser inserts a new authentication identity.
func (s *PostgresStore) CreateUser(ctx context.Context, email, passwordHash string) (*model.User, error) {
	user := &model.User{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, email, password_hash, created_at
	`, uuid.Must(uuid.NewV7()), email, passwordHash).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt,
	)
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	user := &model.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, created_at
		FROM users WHERE email = $1
	`, email).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// CreateSession inserts a new login session.
func (s *PostgresStore) CreateSession(ctx context.Context, userID uuid.UUID, expiresAt time.Time) (*model.Session, error) {
	sess := &model.Session{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO sessions (id, user_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, created_at, expires_at, revoked_at
	`, uuid.Must(uuid.NewV7()), userID, expiresAt).Scan(
		&sess.ID, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt, &sess.RevokedAt,
	)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// GetSession retrieves a session by id.
func (s *PostgresStore) GetSession(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	sess := &model.Session{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, created_at, expires_at, revoked_at
		FROM sessions WHERE id = $1
	`, id).Scan(&sess.ID, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt, &sess.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// RevokeSession marks a session revoked. Revoking twice is a no-op.
func (s *PostgresStore) RevokeSession(ctx context.Context, id uuid.UUID) error {
	// A session that is already revoked or never existed is equally dead,
	// so zero affected rows is not an error.
	_, err := s.pool.Exec(ctx, `
		UPDATE sessions SET revoked_at = now()
		WHERE id = $1 AND revoked_at IS NULL
	`, id)
	return err
}

// CreateUserWithProfile inserts the user and its profile in one transaction.
// A failure on either insert rolls back both rows. New profiles start
// online, matching the behavior of signing in for the first time.
func (s *PostgresStore) CreateUserWithProfile(ctx context.Context, email, passwordHash, username, displayName string) (*model.User, *model.Profile, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	user := &model.User{}
	err = tx.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, email, password_hash, created_at
	`, uuid.Must(uuid.NewV7()), email, passwordHash).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt,
	)
	if err != nil {
		return nil, nil, mapUniqueViolation(err)
	}

	p := &model.Profile{}
	err = tx.QueryRow(ctx, `
		INSERT INTO profiles (id, user_id, username, display_name, is_online)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id, user_id, username, display_name, avatar_url, status,
		          is_online, last_seen, created_at, updated_at
	`, uuid.Must(uuid.NewV7()), user.ID, username, displayName).Scan(
		&p.ID, &p.UserID, &p.Username, &p.DisplayName, &p.AvatarURL, &p.Status,
		&p.IsOnline, &p.LastSeen, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, nil, mapUniqueViolation(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, mapUniqueViolation(err)
	}
	return user, p, nil
}

// UsernameExists reports whether the username is already claimed.
func (s *PostgresStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM profiles WHERE username = $1)`, username,
	).Scan(&exists)
	return exists, err
}

// GetProfileByUserID retrieves the profile owned by a user.
func (s *PostgresStore) GetProfileByUserID(ctx context.Context, userID uuid.UUID) (*model.Profile, error) {
	p := &model.Profile{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, username, display_name, avatar_url, status,
		       is_online, last_seen, created_at, updated_at
		FROM profiles WHERE user_id = $1
	`, userID).Scan(
		&p.ID, &p.UserID, &p.Username, &p.DisplayName, &p.AvatarURL, &p.Status,
		&p.IsOnline, &p.LastSeen, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// GetProfilesByUserIDs retrieves profiles for a set of users in one query,
// keyed by user id. Missing profiles are simply absent from the map.
func (s *PostgresStore) GetProfilesByUserIDs(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]model.Profile, error) {
	out := make(map[uuid.UUID]model.Profile, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, username, display_name, avatar_url, status,
		       is_online, last_seen, created_at, updated_at
		FROM profiles WHERE user_id = ANY($1)
	`, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p model.Profile
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.Username, &p.DisplayName, &p.AvatarURL, &p.Status,
			&p.IsOnline, &p.LastSeen, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out[p.UserID] = p
	}
	return out, rows.Err()
}

// ListProfiles returns all profiles ordered by username.
func (s *PostgresStore) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, username, display_name, avatar_url, status,
		       is_online, last_seen, created_at, updated_at
		FROM profiles ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []model.Profile
	for rows.Next() {
		var p model.Profile
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.Username, &p.DisplayName, &p.AvatarURL, &p.Status,
			&p.IsOnline, &p.LastSeen, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// SetPresence sets the online flag. last_seen advances only on the
// transition to offline so it keeps recording "when last online" rather
// than being overwritten while the user is still connected.
func (s *PostgresStore) SetPresence(ctx context.Context, userID uuid.UUID, online bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE profiles
		SET is_online  = $2,
		    last_seen  = CASE WHEN NOT $2 THEN now() ELSE last_seen END,
		    updated_at = now()
		WHERE user_id = $1
	`, userID, online)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateDirectRoom creates a direct room between two users together with
// both participant rows in one transaction. The UNIQUE pair_key constraint
// makes concurrent creation race-safe: the loser gets ErrPairExists and
// should re-query with GetDirectRoom.
func (s *PostgresStore) CreateDirectRoom(ctx context.Context, selfID, otherID uuid.UUID) (*model.Room, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	room := &model.Room{}
	err = tx.QueryRow(ctx, `
		INSERT INTO chat_rooms (id, is_group, pair_key, created_by)
		VALUES ($1, FALSE, $2, $3)
		RETURNING id, name, is_group, pair_key, created_by, created_at, updated_at
	`, uuid.Must(uuid.NewV7()), DirectPairKey(selfID, otherID), selfID).Scan(
		&room.ID, &room.Name, &room.IsGroup, &room.PairKey, &room.CreatedBy,
		&room.CreatedAt, &room.UpdatedAt,
	)
	if err != nil {
		return nil, mapUniqueViolation(err)
	}

	for _, userID := range []uuid.UUID{selfID, otherID} {
		if _, err := tx.Exec(ctx, `
			INSERT INTO chat_participants (id, chat_room_id, user_id)
			VALUES ($1, $2, $3)
		`, uuid.Must(uuid.NewV7()), room.ID, userID); err != nil {
			return nil, fmt.Errorf("failed to add participant: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapUniqueViolation(err)
	}
	return room, nil
}

// GetDirectRoom retrieves the direct room for an unordered user pair.
func (s *PostgresStore) GetDirectRoom(ctx context.Context, a, b uuid.UUID) (*model.Room, error) {
	room := &model.Room{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, is_group, pair_key, created_by, created_at, updated_at
		FROM chat_rooms WHERE pair_key = $1
	`, DirectPairKey(a, b)).Scan(
		&room.ID, &room.Name, &room.IsGroup, &room.PairKey, &room.CreatedBy,
		&room.CreatedAt, &room.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return room, nil
}

// CreateGroupRoom creates a named group room with the creator and the given
// members as initial participants, all in one transaction. Duplicate member
// ids are tolerated via the participant uniqueness constraint.
func (s *PostgresStore) CreateGroupRoom(ctx context.Context, creatorID uuid.UUID, name string, memberIDs []uuid.UUID) (*model.Room, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	room := &model.Room{}
	err = tx.QueryRow(ctx, `
		INSERT INTO chat_rooms (id, name, is_group, created_by)
		VALUES ($1, $2, TRUE, $3)
		RETURNING id, name, is_group, pair_key, created_by, created_at, updated_at
	`, uuid.Must(uuid.NewV7()), name, creatorID).Scan(
		&room.ID, &room.Name, &room.IsGroup, &room.PairKey, &room.CreatedBy,
		&room.CreatedAt, &room.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	members := append([]uuid.UUID{creatorID}, memberIDs...)
	for _, userID := range members {
		if _, err := tx.Exec(ctx, `
			INSERT INTO chat_participants (id, chat_room_id, user_id)
			VALUES ($1, $2, $3)
			ON CONFLICT (chat_room_id, user_id) DO NOTHING
		`, uuid.Must(uuid.NewV7()), room.ID, userID); err != nil {
			return nil, fmt.Errorf("failed to add participant: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return room, nil
}

// ListRooms returns the rooms a user participates in, most recently active
// first, each with the counterpart profile (direct rooms only) and the
// latest message. A direct room whose counterpart profile is missing still
// lists, with a nil Counterpart.
func (s *PostgresStore) ListRooms(ctx context.Context, userID uuid.UUID) ([]model.RoomListing, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.id, r.name, r.is_group, r.pair_key, r.created_by, r.created_at, r.updated_at,
		       op.id, op.user_id, op.username, op.display_name, op.avatar_url,
		       op.status, op.is_online, op.last_seen, op.created_at, op.updated_at,
		       lm.content, lm.sender_id, lm.created_at
		FROM chat_rooms r
		JOIN chat_participants me
		  ON me.chat_room_id = r.id AND me.user_id = $1
		LEFT JOIN LATERAL (
			SELECT p.id, p.user_id, p.username, p.display_name, p.avatar_url,
			       p.status, p.is_online, p.last_seen, p.created_at, p.updated_at
			FROM chat_participants cp
			JOIN profiles p ON p.user_id = cp.user_id
			WHERE cp.chat_room_id = r.id AND cp.user_id <> $1
			ORDER BY cp.joined_at
			LIMIT 1
		) op ON NOT r.is_group
		LEFT JOIN LATERAL (
			SELECT m.content, m.sender_id, m.created_at
			FROM messages m
			WHERE m.chat_room_id = r.id
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT 1
		) lm ON TRUE
		ORDER BY r.updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []model.RoomListing
	for rows.Next() {
		var l model.RoomListing
		var (
			opID, opUserID                      *uuid.UUID
			opUsername, opDisplayName, opStatus *string
			opAvatar                            *string
			opOnline                            *bool
			opLastSeen                          *time.Time
			opCreatedAt, opUpdatedAt            *time.Time
			lmContent                           *string
			lmSenderID                          *uuid.UUID
			lmCreatedAt                         *time.Time
		)
		if err := rows.Scan(
			&l.Room.ID, &l.Room.Name, &l.Room.IsGroup, &l.Room.PairKey,
			&l.Room.CreatedBy, &l.Room.CreatedAt, &l.Room.UpdatedAt,
			&opID, &opUserID, &opUsername, &opDisplayName, &opAvatar,
			&opStatus, &opOnline, &opLastSeen, &opCreatedAt, &opUpdatedAt,
			&lmContent, &lmSenderID, &lmCreatedAt,
		); err != nil {
			return nil, err
		}
		if opID != nil {
			l.Counterpart = &model.Profile{
				ID:          *opID,
				UserID:      *opUserID,
				Username:    *opUsername,
				DisplayName: *opDisplayName,
				AvatarURL:   opAvatar,
				Status:      *opStatus,
				IsOnline:    *opOnline,
				LastSeen:    opLastSeen,
				CreatedAt:   *opCreatedAt,
				UpdatedAt:   *opUpdatedAt,
			}
		}
		if lmContent != nil {
			l.LastMessage = &model.MessagePreview{
				Content:   *lmContent,
				SenderID:  *lmSenderID,
				CreatedAt: *lmCreatedAt,
			}
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// RoomParticipantIDs returns the user ids of a room's participants.
func (s *PostgresStore) RoomParticipantIDs(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id FROM chat_participants
		WHERE chat_room_id = $1 ORDER BY joined_at
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// IsParticipant reports whether the user belongs to the room.
func (s *PostgresStore) IsParticipant(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM chat_participants
			WHERE chat_room_id = $1 AND user_id = $2
		)
	`, roomID, userID).Scan(&exists)
	return exists, err
}

// InsertMessage appends a message and bumps the room's updated_at in one
// transaction. The insert is conditional on the sender being a participant,
// so authorization lives in the same statement as the write.
func (s *PostgresStore) InsertMessage(ctx context.Context, roomID, senderID uuid.UUID, content string, msgType model.MessageType) (*model.Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	msg := &model.Message{}
	err = tx.QueryRow(ctx, `
		INSERT INTO messages (id, chat_room_id, sender_id, content, message_type)
		SELECT $1, $2, $3, $4, $5
		WHERE EXISTS (
			SELECT 1 FROM chat_participants
			WHERE chat_room_id = $2 AND user_id = $3
		)
		RETURNING id, chat_room_id, sender_id, content, message_type, created_at, updated_at
	`, uuid.Must(uuid.NewV7()), roomID, senderID, content, msgType).Scan(
		&msg.ID, &msg.RoomID, &msg.SenderID, &msg.Content, &msg.Type,
		&msg.CreatedAt, &msg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotParticipant
		}
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE chat_rooms SET updated_at = now() WHERE id = $1`, roomID,
	); err != nil {
		return nil, fmt.Errorf("failed to bump room activity: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages returns a room's messages ascending by creation time, ties
// broken by id.
func (s *PostgresStore) ListMessages(ctx context.Context, roomID uuid.UUID) ([]model.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, chat_room_id, sender_id, content, message_type, created_at, updated_at
		FROM messages
		WHERE chat_room_id = $1
		ORDER BY created_at, id
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(
			&m.ID, &m.RoomID, &m.SenderID, &m.Content, &m.Type,
			&m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
