package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
)

// NotificationService stores notifications and pushes them to their owners.
type NotificationService struct {
	notifications repositories.NotificationRepository
	pusher        Pusher
	events        EventPublisher
	logger        *logrus.Logger
}

func NewNotificationService(notifications repositories.NotificationRepository, pusher Pusher, events EventPublisher, logger *logrus.Logger) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		pusher:        pusher,
		events:        eventsOrNoop(events),
		logger:        logger,
	}
}

// Notify stores one notification and pushes it with the owner's new unread count.
func (s *NotificationService) Notify(ctx context.Context, n models.Notification) (models.Notification, error) {
	ctx, span := tracer.Start(ctx, "notifications.Notify")
	defer span.End()

	stored, err := s.notifications.Add(ctx, n)
	if err != nil {
		return models.Notification{}, fmt.Errorf("store notification: %w", err)
	}
	observability.IncNotificationCreated(string(stored.Type))

	s.pusher.Push(stored.UserID, models.ChannelNotifications, models.EventReceiveNotification, stored)
	s.pushUnread(ctx, stored.UserID)

	s.events.Emit(ctx, telemetry.EventNotificationCreated, stored.UserID, map[string]any{
		"notification_id": stored.ID,
		"type":            stored.Type,
	})
	return stored, nil
}

// NotifyMany fans one notification out to every distinct user in the input. The input
// is validated as a whole before anything is stored.
func (s *NotificationService) NotifyMany(ctx context.Context, in models.CreateNotificationInput) ([]models.Notification, error) {
	if len(in.UserIDs) == 0 {
		return nil, apperrors.Validationf("user_ids cannot be empty")
	}

	seen := make(map[uuid.UUID]struct{}, len(in.UserIDs))
	drafts := make([]models.Notification, 0, len(in.UserIDs))
	for _, userID := range in.UserIDs {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		draft := models.Notification{
			UserID:      userID,
			Type:        in.Type,
			SenderID:    in.SenderID,
			ReferenceID: in.ReferenceID,
			Content:     in.Content,
		}
		if err := repositories.ValidateNotification(draft); err != nil {
			return nil, err
		}
		drafts = append(drafts, draft)
	}

	created := make([]models.Notification, 0, len(drafts))
	for _, draft := range drafts {
		stored, err := s.Notify(ctx, draft)
		if err != nil {
			return created, err
		}
		created = append(created, stored)
	}
	return created, nil
}

// List returns the user's newest notifications.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]models.Notification, error) {
	list, err := s.notifications.ListForUser(ctx, userID, unreadOnly, repositories.MaxNotificationPage)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return list, nil
}

// MarkRead marks one of the user's notifications read. Notifications owned by anybody
// else are reported as not found.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "notifications.MarkRead")
	defer span.End()

	ok, err := s.notifications.MarkRead(ctx, notificationID, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if !ok {
		return apperrors.NotFoundf("notification %s not found", notificationID)
	}

	s.pushUnread(ctx, userID)
	s.pusher.Push(userID, models.ChannelNotifications, models.EventNotificationRead, models.NotificationReadPayload{NotificationID: notificationID})
	return nil
}

// MarkAllRead marks every notification of the user read and returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error) {
	ctx, span := tracer.Start(ctx, "notifications.MarkAllRead")
	defer span.End()

	count, err := s.notifications.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}

	s.pushUnread(ctx, userID)
	s.pusher.Push(userID, models.ChannelNotifications, models.EventAllNotificationsRead, struct{}{})
	if count > 0 {
		s.events.Emit(ctx, telemetry.EventNotificationsReadAll, userID, map[string]any{"marked_read": count})
	}
	return count, nil
}

// UnreadCount counts the user's unread notifications.
func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	count, err := s.notifications.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

func (s *NotificationService) pushUnread(ctx context.Context, userID uuid.UUID) {
	count, err := s.notifications.CountUnread(ctx, userID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("failed to count unread notifications")
		return
	}
	s.pusher.Push(userID, models.ChannelNotifications, models.EventUnreadCount, models.UnreadCountPayload{Count: count})
}
