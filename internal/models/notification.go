package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationType enumerates the features that can notify a user.
type NotificationType string

const (
	NotificationLike               NotificationType = "like"
	NotificationComment            NotificationType = "comment"
	NotificationConnectionRequest  NotificationType = "connection_request"
	NotificationConnectionAccepted NotificationType = "connection_accepted"
	NotificationMessage            NotificationType = "message"
	NotificationJobApplication     NotificationType = "job_application"
)

var notificationTypes = map[NotificationType]struct{}{
	NotificationLike:               {},
	NotificationComment:            {},
	NotificationConnectionRequest:  {},
	NotificationConnectionAccepted: {},
	NotificationMessage:            {},
	NotificationJobApplication:     {},
}

// ParseNotificationType returns the type for s or an error when s is not a known type.
func ParseNotificationType(s string) (NotificationType, error) {
	t := NotificationType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown notification type %q", s)
	}
	return t, nil
}

// Valid reports whether t is one of the declared types.
func (t NotificationType) Valid() bool {
	_, ok := notificationTypes[t]
	return ok
}

// Value implements driver.Valuer.
func (t NotificationType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown notification type %q", string(t))
	}
	return string(t), nil
}

// Scan implements sql.Scanner.
func (t *NotificationType) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into NotificationType", src)
	}
	parsed, err := ParseNotificationType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Notification is a per-user notification record.
type Notification struct {
	ID          uuid.UUID        `db:"id" json:"id"`
	UserID      uuid.UUID        `db:"user_id" json:"user_id"`
	Type        NotificationType `db:"type" json:"type"`
	SenderID    *uuid.UUID       `db:"sender_id" json:"sender_id,omitempty"`
	ReferenceID *uuid.UUID       `db:"reference_id" json:"reference_id,omitempty"`
	Content     string           `db:"content" json:"content"`
	IsRead      bool             `db:"is_read" json:"is_read"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}

// CreateNotificationInput is what triggering features hand to the notification service.
type CreateNotificationInput struct {
	UserIDs     []uuid.UUID      `json:"user_ids"`
	Type        NotificationType `json:"type"`
	SenderID    *uuid.UUID       `json:"sender_id,omitempty"`
	ReferenceID *uuid.UUID       `json:"reference_id,omitempty"`
	Content     string           `json:"content"`
}
