package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a live update notification kind.
type EventType string

const (
	// EventMessageCreated fires when a message lands in a room. The payload
	// carries ids only; subscribers refetch to pick up sender details.
	EventMessageCreated EventType = "message.created"
	// EventPresenceChanged fires when a user's presence flag flips.
	EventPresenceChanged EventType = "presence.changed"
	// EventRoomActivity fires on a user-scoped subject whenever one of the
	// user's rooms changes, driving directory preview refreshes.
	EventRoomActivity EventType = "room.activity"
)

// Event is a live update pushed to subscribers of a room, user or presence
// subject.
type Event struct {
	Type      EventType  `json:"type"`
	RoomID    *uuid.UUID `json:"room_id,omitempty"`
	MessageID *uuid.UUID `json:"message_id,omitempty"`
	SenderID  *uuid.UUID `json:"sender_id,omitempty"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	Online    *bool      `json:"online,omitempty"`
	At        time.Time  `json:"at"`
}
