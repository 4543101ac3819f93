package models

import (
	"time"

	"github.com/google/uuid"
)

// Message represents a direct message inside a conversation.
type Message struct {
	ID             uuid.UUID `db:"id" json:"id"`
	ConversationID uuid.UUID `db:"conversation_id" json:"conversation_id"`
	SenderID       uuid.UUID `db:"sender_id" json:"sender_id"`
	RecipientID    uuid.UUID `db:"recipient_id" json:"recipient_id"`
	Content        string    `db:"content" json:"content"`
	IsRead         bool      `db:"is_read" json:"is_read"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// MessageReceipt describes one message that flipped to read.
type MessageReceipt struct {
	MessageID      uuid.UUID `db:"id" json:"message_id"`
	ConversationID uuid.UUID `db:"conversation_id" json:"conversation_id"`
	SenderID       uuid.UUID `db:"sender_id" json:"-"`
	ReadAt         time.Time `db:"updated_at" json:"read_at"`
}
