package ws

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Event names - Client → Server
const (
	EventTyping     = "typing"
	EventStopTyping = "stopTyping"
)

// Event names - Server → Client
const (
	EventNewMessage        = "newMessage"
	EventMessagesRead      = "messagesRead"
	EventGetOnlineUsers    = "getOnlineUsers"
	EventUserStatusChanged = "userStatusChanged"
	EventUserTyping        = "userTyping"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Event is the envelope for everything on the wire. The event names and
// payload shapes are the compatibility surface for clients, so they never
// change without versioning the protocol.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// --- Client → Server payloads ---

type TypingPayload struct {
	ReceiverID uuid.UUID `json:"receiverId"`
}

// --- Server → Client payloads ---

type UserTypingPayload struct {
	SenderID uuid.UUID `json:"senderId"`
	IsTyping bool      `json:"isTyping"`
}

type StatusPayload struct {
	UserID uuid.UUID `json:"userId"`
	Status string    `json:"status"` // "online" | "offline"
}

type MessagesReadPayload struct {
	ReadBy uuid.UUID `json:"readBy"`
}

// NewEvent wraps a payload in the wire envelope.
func NewEvent(name string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{Name: name, Data: data}, nil
}
