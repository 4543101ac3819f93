package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is the persistent pairing of two users. ParticipantA started it.
type Conversation struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	ParticipantA  uuid.UUID  `db:"participant_a" json:"participant_a"`
	ParticipantB  uuid.UUID  `db:"participant_b" json:"participant_b"`
	LastMessageAt *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

// OtherParticipant returns the participant that is not userID.
func (c Conversation) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// PublicProfile is the display information the user directory exposes.
type PublicProfile struct {
	ID             uuid.UUID `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Headline       string    `json:"headline,omitempty"`
	ProfilePicture string    `json:"profile_picture,omitempty"`
	Location       string    `json:"location,omitempty"`
}

// ConversationSummary provides an API-friendly view of a conversation for one user.
type ConversationSummary struct {
	ID            uuid.UUID     `json:"id"`
	OtherUser     PublicProfile `json:"other_user"`
	LastMessage   *Message      `json:"last_message,omitempty"`
	LastMessageAt *time.Time    `json:"last_message_at,omitempty"`
	UnreadCount   int           `json:"unread_count"`
}
