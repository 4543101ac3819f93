package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messaging-service/internal/models"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrConversationConflict means another writer created the pair first.
	ErrConversationConflict = errors.New("conversation already exists for participants")
)

const uniqueViolation = "23505"

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	FindByParticipants(ctx context.Context, userA, userB uuid.UUID) (*models.Conversation, error)
	Create(ctx context.Context, userA, userB uuid.UUID) (models.Conversation, error)
	Touch(ctx context.Context, conversationID uuid.UUID, at time.Time) error
	GetByID(ctx context.Context, conversationID uuid.UUID) (models.Conversation, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

const conversationColumns = `id, participant_a, participant_b, last_message_at, created_at, updated_at`

// FindByParticipants returns the conversation of the pair in either order, or nil.
func (r *ConversationRepo) FindByParticipants(ctx context.Context, userA, userB uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations
        WHERE (participant_a=$1 AND participant_b=$2) OR (participant_a=$2 AND participant_b=$1)`, userA, userB)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// Create inserts a conversation started by userA. It returns ErrConversationConflict
// when the pair already has one.
func (r *ConversationRepo) Create(ctx context.Context, userA, userB uuid.UUID) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `INSERT INTO conversations (id, participant_a, participant_b, last_message_at)
        VALUES ($1, $2, $3, NOW()) RETURNING `+conversationColumns, uuid.New(), userA, userB)
	if isUniqueViolation(err) {
		return models.Conversation{}, ErrConversationConflict
	}
	return conv, err
}

// Touch moves last_message_at forward; it never moves it back.
func (r *ConversationRepo) Touch(ctx context.Context, conversationID uuid.UUID, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE conversations
        SET last_message_at = GREATEST(COALESCE(last_message_at, $2), $2), updated_at = NOW()
        WHERE id=$1`, conversationID, at)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// GetByID fetches a conversation by id.
func (r *ConversationRepo) GetByID(ctx context.Context, conversationID uuid.UUID) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// ListForUser returns the user's conversations, most recently active first.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	convs := []models.Conversation{}
	err := r.db.SelectContext(ctx, &convs, `SELECT `+conversationColumns+` FROM conversations
        WHERE participant_a=$1 OR participant_b=$1
        ORDER BY last_message_at DESC NULLS LAST, created_at DESC`, userID)
	return convs, err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
