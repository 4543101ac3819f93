package models

import (
	"time"

	"github.com/google/uuid"
)

// Channel names the logical stream a realtime event belongs to.
type Channel string

const (
	ChannelMessages      Channel = "messages"
	ChannelNotifications Channel = "notifications"
	ChannelSystem        Channel = "system"
)

// Realtime event names pushed to connected clients.
const (
	EventReceiveMessage       = "ReceiveMessage"
	EventMessageSent          = "MessageSent"
	EventMessageRead          = "MessageRead"
	EventUserTyping           = "UserTyping"
	EventUnreadCount          = "UnreadCount"
	EventReceiveNotification  = "ReceiveNotification"
	EventNotificationRead     = "NotificationRead"
	EventAllNotificationsRead = "AllNotificationsRead"
	EventError                = "Error"
)

// RealtimeEvent is the frame written to websocket clients.
type RealtimeEvent struct {
	Channel Channel `json:"channel"`
	Event   string  `json:"event"`
	Data    any     `json:"data"`
}

// MessageReadPayload is the data of a MessageRead event.
type MessageReadPayload struct {
	MessageID      uuid.UUID `json:"message_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	ReadAt         time.Time `json:"read_at"`
}

// UserTypingPayload is the data of a UserTyping event.
type UserTypingPayload struct {
	UserID    uuid.UUID `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// UnreadCountPayload is the data of an UnreadCount event.
type UnreadCountPayload struct {
	Count int `json:"count"`
}

// NotificationReadPayload is the data of a NotificationRead event.
type NotificationReadPayload struct {
	NotificationID uuid.UUID `json:"notification_id"`
}

// ErrorPayload is the data of an Error event answering a failed invocation.
type ErrorPayload struct {
	RequestID string `json:"request_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}
