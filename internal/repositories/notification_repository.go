package repositories

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
)

const (
	MaxNotificationLength = 500
	// MaxNotificationPage caps every notification listing.
	MaxNotificationPage = 50
)

// NotificationRepository defines persistence for per-user notifications.
type NotificationRepository interface {
	Add(ctx context.Context, n models.Notification) (models.Notification, error)
	ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, notificationID uuid.UUID, userID uuid.UUID) (bool, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// NotificationRepo is a sqlx-backed repository.
type NotificationRepo struct {
	db *sqlx.DB
}

// NewNotificationRepo constructs NotificationRepo.
func NewNotificationRepo(db *sqlx.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

const notificationColumns = `id, user_id, type, sender_id, reference_id, content, is_read, created_at`

// ValidateNotification checks a notification before it is stored.
func ValidateNotification(n models.Notification) error {
	if n.UserID == uuid.Nil {
		return apperrors.Validationf("notification user is required")
	}
	if !n.Type.Valid() {
		return apperrors.Validationf("unknown notification type %q", string(n.Type))
	}
	if strings.TrimSpace(n.Content) == "" {
		return apperrors.Validationf("notification content cannot be empty")
	}
	if utf8.RuneCountInString(n.Content) > MaxNotificationLength {
		return apperrors.Validationf("notification content exceeds %d characters", MaxNotificationLength)
	}
	return nil
}

// Add stores an unread notification.
func (r *NotificationRepo) Add(ctx context.Context, n models.Notification) (models.Notification, error) {
	if err := ValidateNotification(n); err != nil {
		return models.Notification{}, err
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	var stored models.Notification
	err := r.db.GetContext(ctx, &stored, `INSERT INTO notifications (id, user_id, type, sender_id, reference_id, content)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+notificationColumns,
		n.ID, n.UserID, n.Type, n.SenderID, n.ReferenceID, n.Content)
	return stored, err
}

// ListForUser returns the newest notifications of a user.
func (r *NotificationRepo) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > MaxNotificationPage {
		limit = MaxNotificationPage
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id=$1`
	if unreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC LIMIT $2`

	list := []models.Notification{}
	err := r.db.SelectContext(ctx, &list, query, userID, limit)
	return list, err
}

// MarkRead marks one notification read. It reports false both when the notification
// does not exist and when it belongs to somebody else.
func (r *NotificationRepo) MarkRead(ctx context.Context, notificationID uuid.UUID, userID uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id=$1 AND user_id=$2`, notificationID, userID)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkAllRead marks every unread notification of the user and returns how many changed.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id=$1 AND is_read = FALSE`, userID)
	if err != nil {
		return 0, err
	}
	count, err := res.RowsAffected()
	return int(count), err
}

// CountUnread counts the user's unread notifications.
func (r *NotificationRepo) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM notifications WHERE user_id=$1 AND is_read = FALSE`, userID)
	return count, err
}
