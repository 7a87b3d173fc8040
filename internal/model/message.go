package model

import (
	"time"

	"github.com/google/uuid"
)

// MessageType tags a message payload kind. Only text messages exist today.
type MessageType string

const (
	MessageTypeText MessageType = "text"
)

// Message is an immutable, append-only record in a room. Ordering within a
// room is by creation time ascending; ties fall back to id order, which
// matches insertion order because ids are UUIDv7.
type Message struct {
	ID        uuid.UUID   `json:"id"`
	RoomID    uuid.UUID   `json:"chat_room_id"`
	SenderID  uuid.UUID   `json:"sender_id"`
	Content   string      `json:"content"`
	Type      MessageType `json:"message_type"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// MessageView is a message joined with its sender's profile. The profile is
// re-joined on every list because pushed notifications carry ids only.
type MessageView struct {
	Message
	Sender *Profile `json:"sender,omitempty"`
}

// SendMessageRequest is the request to append a message to a room.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// ListMessagesResponse is the response for listing a room's messages.
type ListMessagesResponse struct {
	Messages []MessageView `json:"messages"`
	Total    int           `json:"total"`
}
