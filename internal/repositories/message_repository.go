package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines persistence for direct messages.
type MessageRepository interface {
	Add(ctx context.Context, msg models.Message) (models.Message, error)
	GetByID(ctx context.Context, messageID uuid.UUID) (models.Message, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)
	LastInConversation(ctx context.Context, conversationID uuid.UUID) (*models.Message, error)
	MarkRead(ctx context.Context, conversationID uuid.UUID, readerID uuid.UUID) ([]models.MessageReceipt, error)
	MarkOneRead(ctx context.Context, messageID uuid.UUID, readerID uuid.UUID) (models.MessageReceipt, bool, error)
	CountUnread(ctx context.Context, conversationID uuid.UUID, userID uuid.UUID) (int, error)
	CountUnreadForUser(ctx context.Context, userID uuid.UUID) (int, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db        *sqlx.DB
	maxLength int
}

// NewMessageRepo constructs MessageRepo. Content longer than maxLength runes is rejected.
func NewMessageRepo(db *sqlx.DB, maxLength int) *MessageRepo {
	return &MessageRepo{db: db, maxLength: maxLength}
}

const messageColumns = `id, conversation_id, sender_id, recipient_id, content, is_read, created_at, updated_at`

// ValidateContent checks the content rules shared by every write path.
func ValidateContent(content string, maxLength int) error {
	if strings.TrimSpace(content) == "" {
		return apperrors.Validationf("message content cannot be empty")
	}
	if n := utf8.RuneCountInString(content); n > maxLength {
		return apperrors.Validationf("message content exceeds %d characters", maxLength)
	}
	return nil
}

// Add stores a message. Messages are always inserted unread.
func (r *MessageRepo) Add(ctx context.Context, msg models.Message) (models.Message, error) {
	if err := ValidateContent(msg.Content, r.maxLength); err != nil {
		return models.Message{}, err
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	var stored models.Message
	err := r.db.GetContext(ctx, &stored, `INSERT INTO messages (id, conversation_id, sender_id, recipient_id, content)
        VALUES ($1, $2, $3, $4, $5) RETURNING `+messageColumns,
		msg.ID, msg.ConversationID, msg.SenderID, msg.RecipientID, msg.Content)
	return stored, err
}

// GetByID retrieves a single message.
func (r *MessageRepo) GetByID(ctx context.Context, messageID uuid.UUID) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListByConversation returns the conversation's messages in insertion order.
func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
        WHERE conversation_id=$1
        ORDER BY created_at ASC, seq ASC`, conversationID)
	return msgs, err
}

// LastInConversation returns the newest message, or nil for an empty conversation.
func (r *MessageRepo) LastInConversation(ctx context.Context, conversationID uuid.UUID) (*models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages
        WHERE conversation_id=$1
        ORDER BY created_at DESC, seq DESC LIMIT 1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkRead flips every unread message addressed to readerID in the conversation and
// returns one receipt per changed row.
func (r *MessageRepo) MarkRead(ctx context.Context, conversationID uuid.UUID, readerID uuid.UUID) ([]models.MessageReceipt, error) {
	receipts := []models.MessageReceipt{}
	err := r.db.SelectContext(ctx, &receipts, `UPDATE messages SET is_read = TRUE, updated_at = NOW()
        WHERE conversation_id=$1 AND recipient_id=$2 AND is_read = FALSE
        RETURNING id, conversation_id, sender_id, updated_at`, conversationID, readerID)
	return receipts, err
}

// MarkOneRead flips a single message addressed to readerID. The bool is false when
// the message was already read.
func (r *MessageRepo) MarkOneRead(ctx context.Context, messageID uuid.UUID, readerID uuid.UUID) (models.MessageReceipt, bool, error) {
	var receipt models.MessageReceipt
	err := r.db.GetContext(ctx, &receipt, `UPDATE messages SET is_read = TRUE, updated_at = NOW()
        WHERE id=$1 AND recipient_id=$2 AND is_read = FALSE
        RETURNING id, conversation_id, sender_id, updated_at`, messageID, readerID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.MessageReceipt{}, false, nil
	}
	if err != nil {
		return models.MessageReceipt{}, false, err
	}
	return receipt, true, nil
}

// CountUnread counts unread messages addressed to userID in one conversation.
func (r *MessageRepo) CountUnread(ctx context.Context, conversationID uuid.UUID, userID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages
        WHERE conversation_id=$1 AND recipient_id=$2 AND is_read = FALSE`, conversationID, userID)
	return count, err
}

// CountUnreadForUser counts unread messages addressed to userID across conversations.
func (r *MessageRepo) CountUnreadForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages
        WHERE recipient_id=$1 AND is_read = FALSE`, userID)
	return count, err
}
