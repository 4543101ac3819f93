package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
)

// MessagingService coordinates conversations, messages and their realtime delivery.
type MessagingService struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	directory     UserDirectory
	pusher        Pusher
	events        EventPublisher
	logger        *logrus.Logger
	maxLength     int
}

func NewMessagingService(
	conversations repositories.ConversationRepository,
	messages repositories.MessageRepository,
	directory UserDirectory,
	pusher Pusher,
	events EventPublisher,
	logger *logrus.Logger,
	maxLength int,
) *MessagingService {
	return &MessagingService{
		conversations: conversations,
		messages:      messages,
		directory:     directory,
		pusher:        pusher,
		events:        eventsOrNoop(events),
		logger:        logger,
		maxLength:     maxLength,
	}
}

// SendMessage stores a message from senderID to recipientID, creating their
// conversation on first contact, and pushes it to both parties.
func (s *MessagingService) SendMessage(ctx context.Context, senderID, recipientID uuid.UUID, content string) (models.Message, error) {
	ctx, span := tracer.Start(ctx, "messaging.SendMessage")
	defer span.End()

	if senderID == recipientID {
		return models.Message{}, apperrors.Validationf("cannot send a message to yourself")
	}
	if recipientID == uuid.Nil {
		return models.Message{}, apperrors.Validationf("recipient_id is required")
	}
	if err := repositories.ValidateContent(content, s.maxLength); err != nil {
		return models.Message{}, err
	}

	users, err := s.directory.GetUsers(ctx, []uuid.UUID{recipientID})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user directory")
		return models.Message{}, apperrors.Unavailable("user directory", err)
	}
	if _, ok := users[recipientID]; !ok {
		return models.Message{}, apperrors.NotFoundf("recipient %s not found", recipientID)
	}

	conv, err := s.findOrCreateConversation(ctx, senderID, recipientID)
	if err != nil {
		span.RecordError(err)
		return models.Message{}, fmt.Errorf("resolve conversation: %w", err)
	}
	span.SetAttributes(attribute.String("conversation.id", conv.ID.String()))

	msg, err := s.messages.Add(ctx, models.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		RecipientID:    recipientID,
		Content:        content,
	})
	if err != nil {
		span.RecordError(err)
		return models.Message{}, fmt.Errorf("store message: %w", err)
	}
	observability.IncMessagesSent()

	if err := s.conversations.Touch(ctx, conv.ID, msg.CreatedAt); err != nil {
		s.logger.WithError(err).WithField("conversation_id", conv.ID).Warn("failed to touch conversation")
	}

	s.pusher.Push(recipientID, models.ChannelMessages, models.EventReceiveMessage, msg)
	s.pusher.Push(senderID, models.ChannelMessages, models.EventMessageSent, msg)
	s.pushUnreadMessages(ctx, recipientID)

	s.events.Emit(ctx, telemetry.EventMessageSent, senderID, map[string]any{
		"message_id":      msg.ID,
		"conversation_id": msg.ConversationID,
		"recipient_id":    msg.RecipientID,
	})
	return msg, nil
}

// findOrCreateConversation relies on the pair's unique index. Losing the insert race
// means the winner's row is read back.
func (s *MessagingService) findOrCreateConversation(ctx context.Context, initiator, recipient uuid.UUID) (models.Conversation, error) {
	existing, err := s.conversations.FindByParticipants(ctx, initiator, recipient)
	if err != nil {
		return models.Conversation{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	created, err := s.conversations.Create(ctx, initiator, recipient)
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, repositories.ErrConversationConflict) {
		return models.Conversation{}, err
	}

	s.logger.WithFields(logrus.Fields{"initiator": initiator, "recipient": recipient}).Debug("conversation create lost race, re-reading")
	existing, err = s.conversations.FindByParticipants(ctx, initiator, recipient)
	if err != nil {
		return models.Conversation{}, err
	}
	if existing == nil {
		return models.Conversation{}, errors.New("conversation missing after conflict")
	}
	return *existing, nil
}

// GetConversations lists the user's conversations, most recently active first.
func (s *MessagingService) GetConversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	ctx, span := tracer.Start(ctx, "messaging.GetConversations")
	defer span.End()

	convs, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	summaries := make([]models.ConversationSummary, 0, len(convs))
	if len(convs) == 0 {
		return summaries, nil
	}

	others := make([]uuid.UUID, 0, len(convs))
	for _, conv := range convs {
		others = append(others, conv.OtherParticipant(userID))
	}
	profiles, err := s.directory.GetUsers(ctx, others)
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Unavailable("user directory", err)
	}

	for _, conv := range convs {
		profile, ok := profiles[conv.OtherParticipant(userID)]
		if !ok {
			continue
		}
		last, err := s.messages.LastInConversation(ctx, conv.ID)
		if err != nil {
			return nil, fmt.Errorf("last message: %w", err)
		}
		unread, err := s.messages.CountUnread(ctx, conv.ID, userID)
		if err != nil {
			return nil, fmt.Errorf("count unread: %w", err)
		}
		summaries = append(summaries, models.ConversationSummary{
			ID:            conv.ID,
			OtherUser:     profile,
			LastMessage:   last,
			LastMessageAt: conv.LastMessageAt,
			UnreadCount:   unread,
		})
	}

	slices.SortStableFunc(summaries, func(a, b models.ConversationSummary) int {
		return compareActivity(a.LastMessageAt, b.LastMessageAt)
	})
	return summaries, nil
}

// compareActivity orders newer timestamps first and nil last.
func compareActivity(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return b.Compare(*a)
	}
}

// GetConversationMessages returns the conversation history, or an empty list when the
// conversation does not exist or requesterID is not part of it.
func (s *MessagingService) GetConversationMessages(ctx context.Context, conversationID, requesterID uuid.UUID) ([]models.Message, error) {
	ctx, span := tracer.Start(ctx, "messaging.GetConversationMessages")
	defer span.End()

	conv, err := s.conversations.GetByID(ctx, conversationID)
	if errors.Is(err, repositories.ErrConversationNotFound) {
		return []models.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if !conv.HasParticipant(requesterID) {
		return []models.Message{}, nil
	}

	msgs, err := s.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// MarkConversationRead marks every message addressed to userID in the conversation as
// read and returns how many changed.
func (s *MessagingService) MarkConversationRead(ctx context.Context, conversationID, userID uuid.UUID) (int, error) {
	ctx, span := tracer.Start(ctx, "messaging.MarkConversationRead")
	defer span.End()

	conv, err := s.conversations.GetByID(ctx, conversationID)
	if errors.Is(err, repositories.ErrConversationNotFound) {
		return 0, apperrors.NotFoundf("conversation %s not found", conversationID)
	}
	if err != nil {
		return 0, fmt.Errorf("get conversation: %w", err)
	}
	if !conv.HasParticipant(userID) {
		return 0, apperrors.NotFoundf("conversation %s not found", conversationID)
	}

	receipts, err := s.messages.MarkRead(ctx, conversationID, userID)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	for _, receipt := range receipts {
		s.pushReceipt(receipt)
	}
	s.pushUnreadMessages(ctx, userID)

	if len(receipts) > 0 {
		s.events.Emit(ctx, telemetry.EventConversationRead, userID, map[string]any{
			"conversation_id": conversationID,
			"marked_read":     len(receipts),
		})
	}
	return len(receipts), nil
}

// MarkMessageRead marks one message read. Only its recipient may do so; anybody else
// gets a not found error. Marking an already read message succeeds without pushes.
func (s *MessagingService) MarkMessageRead(ctx context.Context, messageID, userID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "messaging.MarkMessageRead")
	defer span.End()

	msg, err := s.messages.GetByID(ctx, messageID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return apperrors.NotFoundf("message %s not found", messageID)
	}
	if err != nil {
		return fmt.Errorf("get message: %w", err)
	}
	if msg.RecipientID != userID {
		return apperrors.NotFoundf("message %s not found", messageID)
	}

	receipt, changed, err := s.messages.MarkOneRead(ctx, messageID, userID)
	if err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	if !changed {
		return nil
	}
	s.pushReceipt(receipt)
	s.pushUnreadMessages(ctx, userID)
	return nil
}

// NotifyTyping tells the recipient that senderID is typing. Offline recipients are skipped.
func (s *MessagingService) NotifyTyping(senderID, recipientID uuid.UUID) {
	if senderID == recipientID {
		return
	}
	s.pusher.Push(recipientID, models.ChannelMessages, models.EventUserTyping, models.UserTypingPayload{
		UserID:    senderID,
		Timestamp: time.Now().UTC(),
	})
}

// UnreadMessageCount counts unread messages addressed to userID across conversations.
func (s *MessagingService) UnreadMessageCount(ctx context.Context, userID uuid.UUID) (int, error) {
	count, err := s.messages.CountUnreadForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count unread messages: %w", err)
	}
	return count, nil
}

func (s *MessagingService) pushReceipt(receipt models.MessageReceipt) {
	s.pusher.Push(receipt.SenderID, models.ChannelMessages, models.EventMessageRead, models.MessageReadPayload{
		MessageID:      receipt.MessageID,
		ConversationID: receipt.ConversationID,
		ReadAt:         receipt.ReadAt,
	})
}

func (s *MessagingService) pushUnreadMessages(ctx context.Context, userID uuid.UUID) {
	count, err := s.messages.CountUnreadForUser(ctx, userID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("failed to count unread messages")
		return
	}
	s.pusher.Push(userID, models.ChannelMessages, models.EventUnreadCount, models.UnreadCountPayload{Count: count})
}
