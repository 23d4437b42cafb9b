package chat

import (
	"time"
)

const (
	MaxContentLen = 2000
	DefaultLimit  = 100
)

type Message struct {
	ID         string    `json:"id" db:"id"`
	GroupID    string    `json:"group_id" db:"group_id"`
	SenderID   string    `json:"sender_id" db:"sender_id"`
	SenderName string    `json:"sender_name" db:"sender_name"`
	Content    string    `json:"content" db:"content"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"` // UTC
}
