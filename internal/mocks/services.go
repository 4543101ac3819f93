package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"messaging-service/internal/models"
	"messaging-service/internal/service"
)

type MessagingServiceMock struct {
	mock.Mock
}

func (m *MessagingServiceMock) SendMessage(ctx context.Context, senderID, recipientID uuid.UUID, content string) (models.Message, error) {
	args := m.Called(ctx, senderID, recipientID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessagingServiceMock) GetConversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ConversationSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ConversationSummary)
	}
	return list, args.Error(1)
}

func (m *MessagingServiceMock) GetConversationMessages(ctx context.Context, conversationID, requesterID uuid.UUID) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, requesterID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessagingServiceMock) MarkConversationRead(ctx context.Context, conversationID, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Int(0), args.Error(1)
}

func (m *MessagingServiceMock) MarkMessageRead(ctx context.Context, messageID, userID uuid.UUID) error {
	args := m.Called(ctx, messageID, userID)
	return args.Error(0)
}

func (m *MessagingServiceMock) NotifyTyping(senderID, recipientID uuid.UUID) {
	m.Called(senderID, recipientID)
}

func (m *MessagingServiceMock) UnreadMessageCount(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type NotificationServiceMock struct {
	mock.Mock
}

func (m *NotificationServiceMock) Notify(ctx context.Context, n models.Notification) (models.Notification, error) {
	args := m.Called(ctx, n)
	var stored models.Notification
	if val := args.Get(0); val != nil {
		stored = val.(models.Notification)
	}
	return stored, args.Error(1)
}

func (m *NotificationServiceMock) NotifyMany(ctx context.Context, in models.CreateNotificationInput) ([]models.Notification, error) {
	args := m.Called(ctx, in)
	var list []models.Notification
	if val := args.Get(0); val != nil {
		list = val.([]models.Notification)
	}
	return list, args.Error(1)
}

func (m *NotificationServiceMock) List(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]models.Notification, error) {
	args := m.Called(ctx, userID, unreadOnly)
	var list []models.Notification
	if val := args.Get(0); val != nil {
		list = val.([]models.Notification)
	}
	return list, args.Error(1)
}

func (m *NotificationServiceMock) MarkRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	args := m.Called(ctx, notificationID, userID)
	return args.Error(0)
}

func (m *NotificationServiceMock) MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *NotificationServiceMock) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type messagingService interface {
	SendMessage(context.Context, uuid.UUID, uuid.UUID, string) (models.Message, error)
	GetConversations(context.Context, uuid.UUID) ([]models.ConversationSummary, error)
	GetConversationMessages(context.Context, uuid.UUID, uuid.UUID) ([]models.Message, error)
	MarkConversationRead(context.Context, uuid.UUID, uuid.UUID) (int, error)
	MarkMessageRead(context.Context, uuid.UUID, uuid.UUID) error
	NotifyTyping(uuid.UUID, uuid.UUID)
	UnreadMessageCount(context.Context, uuid.UUID) (int, error)
}

type notificationService interface {
	Notify(context.Context, models.Notification) (models.Notification, error)
	NotifyMany(context.Context, models.CreateNotificationInput) ([]models.Notification, error)
	List(context.Context, uuid.UUID, bool) ([]models.Notification, error)
	MarkRead(context.Context, uuid.UUID, uuid.UUID) error
	MarkAllRead(context.Context, uuid.UUID) (int, error)
	UnreadCount(context.Context, uuid.UUID) (int, error)
}

var _ messagingService = (*service.MessagingService)(nil)
var _ messagingService = (*MessagingServiceMock)(nil)
var _ notificationService = (*service.NotificationService)(nil)
var _ notificationService = (*NotificationServiceMock)(nil)
