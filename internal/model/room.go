package model

import (
	"time"

	"github.com/google/uuid"
)

// Room is a conversation container: either a two-party direct chat or a
// named group. Direct rooms carry a canonical pair key so the store can
// enforce at most one direct room per unordered user pair.
type Room struct {
	ID        uuid.UUID `json:"id"`
	Name      *string   `json:"name,omitempty"`
	IsGroup   bool      `json:"is_group"`
	PairKey   *string   `json:"-"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Participant links one user to one room. The (room, user) pair is unique.
type Participant struct {
	ID       uuid.UUID `json:"id"`
	RoomID   uuid.UUID `json:"chat_room_id"`
	UserID   uuid.UUID `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// MessagePreview is the most recent message of a room, shown in the
// conversation directory.
type MessagePreview struct {
	Content   string    `json:"content"`
	SenderID  uuid.UUID `json:"sender_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RoomListing is the raw per-room row the store returns for the directory:
// the room itself, the counterpart profile for direct rooms (nil for groups
// or when the counterpart profile is missing) and the latest message.
type RoomListing struct {
	Room        Room
	Counterpart *Profile
	LastMessage *MessagePreview
}

// RoomSummary is a directory entry with display fields resolved: group name
// or counterpart display name, counterpart avatar and presence.
type RoomSummary struct {
	ID          uuid.UUID       `json:"id"`
	IsGroup     bool            `json:"is_group"`
	DisplayName string          `json:"display_name"`
	AvatarURL   *string         `json:"avatar_url,omitempty"`
	OtherUserID *uuid.UUID      `json:"other_user_id,omitempty"`
	IsOnline    *bool           `json:"is_online,omitempty"`
	LastSeen    *time.Time      `json:"last_seen,omitempty"`
	LastMessage *MessagePreview `json:"last_message,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ResolveDirectRequest asks for the direct room shared with another user,
// creating it if it does not exist yet.
type ResolveDirectRequest struct {
	OtherUserID uuid.UUID `json:"other_user_id"`
}

// CreateGroupRequest creates a named group room with an initial member set.
type CreateGroupRequest struct {
	Name      string      `json:"name"`
	MemberIDs []uuid.UUID `json:"member_ids"`
}

// ListRoomsResponse is the response for the conversation directory.
type ListRoomsResponse struct {
	Rooms []RoomSummary `json:"rooms"`
	Total int           `json:"total"`
}
