package models

import (
	"time"
)

type ChatStatus string

const (
	ChatPending ChatStatus = "pending"
	ChatActive  ChatStatus = "active"
	ChatEnded   ChatStatus = "ended"
)

// CanTransitionTo reports whether the status machine allows moving to next.
// Ended is terminal.
func (s ChatStatus) CanTransitionTo(next ChatStatus) bool {
	switch s {
	case ChatPending:
		return next == ChatActive
	case ChatActive:
		return next == ChatEnded
	default:
		return false
	}
}

type Chat struct {
	ID           int           `json:"id" db:"id"`
	UserID       int           `json:"user_id" db:"user_id"`
	AdminID      *int          `json:"admin_id,omitempty" db:"admin_id"`
	Status       ChatStatus    `json:"status" db:"status"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
	Participants []Participant `json:"participants,omitempty"`
	Messages     []Message     `json:"messages,omitempty"`
}

// Participant binds either a user or an admin to a chat, never both.
type Participant struct {
	ID       int       `json:"id" db:"id"`
	ChatID   int       `json:"chat_id" db:"chat_id"`
	UserID   *int      `json:"user_id,omitempty" db:"user_id"`
	AdminID  *int      `json:"admin_id,omitempty" db:"admin_id"`
	JoinedAt time.Time `json:"joined_at" db:"joined_at"`
}

// Actor returns the membership as an Actor value.
func (p Participant) Actor() Actor {
	if p.AdminID != nil {
		return Actor{Role: RoleAdmin, ID: *p.AdminID}
	}
	if p.UserID != nil {
		return Actor{Role: RoleUser, ID: *p.UserID}
	}
	return Actor{}
}

type ChatSummary struct {
	Chat
	LastMessageContent *string    `json:"last_message_content,omitempty" db:"last_message_content"`
	LastMessageSentAt  *time.Time `json:"last_message_sent_at,omitempty" db:"last_message_sent_at"`
	UnreadCount        int        `json:"unread_count"`
}
