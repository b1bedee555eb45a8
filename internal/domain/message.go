package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is a one-to-one chat message. The JSON field names are part of
// the realtime wire contract (the full record is the newMessage payload),
// so they stay camelCase even though the REST models use snake_case.
type Message struct {
	ID         uuid.UUID `json:"id"`
	SenderID   uuid.UUID `json:"senderId"`
	ReceiverID uuid.UUID `json:"receiverId"`
	Text       *string   `json:"text,omitempty"`
	ImageURL   *string   `json:"image,omitempty"`
	IsRead     bool      `json:"isRead"`
	CreatedAt  time.Time `json:"createdAt"`
}
