package models

import (
	"time"
)

type Message struct {
	ID         int        `json:"id" db:"id"`
	ChatID     int        `json:"chat_id" db:"chat_id"`
	SenderRole Role       `json:"sender_role" db:"sender_role"`
	SenderID   *int       `json:"sender_id,omitempty" db:"sender_id"`
	Username   string     `json:"username,omitempty" db:"username"`
	Content    string     `json:"content" db:"content"`
	ReplyTo    *int       `json:"reply_to,omitempty" db:"reply_to"`
	IsSystem   bool       `json:"is_system" db:"is_system"`
	TempID     *string    `json:"temp_id,omitempty" db:"temp_id"`
	SentAt     time.Time  `json:"sent_at" db:"sent_at"`
	ReadAt     *time.Time `json:"read_at,omitempty" db:"read_at"`
}
