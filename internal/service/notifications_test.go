package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
)

func newNotificationFixture() (*NotificationService, *memNotifications, *recordingPusher) {
	store := &memNotifications{}
	pusher := &recordingPusher{}
	return NewNotificationService(store, pusher, nil, quietLogger()), store, pusher
}

func TestNotifyPushesNotificationAndCount(t *testing.T) {
	svc, _, pusher := newNotificationFixture()
	user, sender := uuid.New(), uuid.New()

	n, err := svc.Notify(context.Background(), models.Notification{
		UserID:   user,
		Type:     models.NotificationLike,
		SenderID: &sender,
		Content:  "Bob liked your post",
	})
	require.NoError(t, err)
	assert.False(t, n.IsRead)

	received := pusher.find(user, models.EventReceiveNotification)
	require.Len(t, received, 1)
	assert.Equal(t, models.ChannelNotifications, received[0].Channel)
	assert.Equal(t, n.ID, received[0].Data.(models.Notification).ID)

	counts := pusher.find(user, models.EventUnreadCount)
	require.Len(t, counts, 1)
	assert.Equal(t, models.ChannelNotifications, counts[0].Channel)
	assert.Equal(t, models.UnreadCountPayload{Count: 1}, counts[0].Data)
}

func TestNotifyValidation(t *testing.T) {
	svc, store, _ := newNotificationFixture()
	ctx := context.Background()
	user := uuid.New()

	_, err := svc.Notify(ctx, models.Notification{UserID: user, Type: "poke", Content: "hey"})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	_, err = svc.Notify(ctx, models.Notification{UserID: user, Type: models.NotificationComment, Content: strings.Repeat("x", 501)})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	_, err = svc.Notify(ctx, models.Notification{UserID: user, Type: models.NotificationComment})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	assert.Empty(t, store.rows)
}

func TestNotifyManyFansOutDistinctUsers(t *testing.T) {
	svc, _, pusher := newNotificationFixture()
	a, b := uuid.New(), uuid.New()

	created, err := svc.NotifyMany(context.Background(), models.CreateNotificationInput{
		UserIDs: []uuid.UUID{a, b, a},
		Type:    models.NotificationConnectionAccepted,
		Content: "You are now connected",
	})
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Len(t, pusher.find(a, models.EventReceiveNotification), 1)
	assert.Len(t, pusher.find(b, models.EventReceiveNotification), 1)
}

func TestNotifyManyRejectsInvalidInputAtomically(t *testing.T) {
	svc, store, _ := newNotificationFixture()

	_, err := svc.NotifyMany(context.Background(), models.CreateNotificationInput{
		UserIDs: []uuid.UUID{uuid.New(), uuid.Nil},
		Type:    models.NotificationMessage,
		Content: "New message",
	})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
	assert.Empty(t, store.rows)

	_, err = svc.NotifyMany(context.Background(), models.CreateNotificationInput{Type: models.NotificationMessage, Content: "x"})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestNotificationMarkReadOwnership(t *testing.T) {
	svc, store, pusher := newNotificationFixture()
	ctx := context.Background()
	owner, stranger := uuid.New(), uuid.New()

	n, err := svc.Notify(ctx, models.Notification{UserID: owner, Type: models.NotificationComment, Content: "New comment"})
	require.NoError(t, err)

	err = svc.MarkRead(ctx, n.ID, stranger)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.False(t, store.get(n.ID).IsRead)
	assert.Empty(t, pusher.find(stranger, models.EventNotificationRead))

	require.NoError(t, svc.MarkRead(ctx, n.ID, owner))
	assert.True(t, store.get(n.ID).IsRead)
	reads := pusher.find(owner, models.EventNotificationRead)
	require.Len(t, reads, 1)
	assert.Equal(t, models.NotificationReadPayload{NotificationID: n.ID}, reads[0].Data)

	err = svc.MarkRead(ctx, uuid.New(), owner)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestNotificationMarkAllRead(t *testing.T) {
	svc, _, pusher := newNotificationFixture()
	ctx := context.Background()
	user := uuid.New()

	for i := 0; i < 3; i++ {
		_, err := svc.Notify(ctx, models.Notification{UserID: user, Type: models.NotificationLike, Content: "like"})
		require.NoError(t, err)
	}

	pusher.reset()
	changed, err := svc.MarkAllRead(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 3, changed)
	assert.Len(t, pusher.find(user, models.EventAllNotificationsRead), 1)

	counts := pusher.find(user, models.EventUnreadCount)
	require.Len(t, counts, 1)
	assert.Equal(t, models.UnreadCountPayload{Count: 0}, counts[0].Data)

	unread, err := svc.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestNotificationListNewestFirstCapped(t *testing.T) {
	svc, _, _ := newNotificationFixture()
	ctx := context.Background()
	user := uuid.New()

	var last models.Notification
	for i := 0; i < 55; i++ {
		n, err := svc.Notify(ctx, models.Notification{UserID: user, Type: models.NotificationLike, Content: "like"})
		require.NoError(t, err)
		last = n
	}
	require.NoError(t, svc.MarkRead(ctx, last.ID, user))

	list, err := svc.List(ctx, user, false)
	require.NoError(t, err)
	require.Len(t, list, 50)
	assert.Equal(t, last.ID, list[0].ID)

	unread, err := svc.List(ctx, user, true)
	require.NoError(t, err)
	require.Len(t, unread, 50)
	assert.NotEqual(t, last.ID, unread[0].ID)
	for _, n := range unread {
		assert.False(t, n.IsRead)
	}
}
