package events

import (
	"time"

	"VolunteerHub/server/internal/models"
)

// Routing keys and versioned event types for the chat subsystem.
const (
	KeyChatCreated   = "chat.created"
	KeyNewMessage    = "chat.message.new"
	KeyMessagesRead  = "chat.messages.read"
	TypeChatCreated  = "chat.created.v1"
	TypeNewMessage   = "chat.message.new.v1"
	TypeMessagesRead = "chat.messages.read.v1"
)

type Meta struct {
	// Trace / request correlation ID
	CorrelationID *string `json:"correlation_id,omitempty"`
	// Unique event ID
	ID string `json:"id"`
	// Emitting service
	Producer string `json:"producer,omitempty"`
	// Timestamp when the event was emitted
	Time time.Time `json:"time"`
	// Event name and version, e.g. chat.message.new.v1
	Type string `json:"type"`
}

type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

type ChatCreatedData struct {
	ChatID         int    `json:"chat_id"`
	UserID         int    `json:"user_id"`
	InitialMessage string `json:"initial_message,omitempty"`
}

type NewMessageData struct {
	ChatID  int            `json:"chat_id"`
	Message models.Message `json:"message"`
}

type MessagesReadData struct {
	ChatID     int         `json:"chat_id"`
	ReaderRole models.Role `json:"reader_role"`
	ReadAt     time.Time   `json:"read_at"`
	Count      int64       `json:"count"`
}
