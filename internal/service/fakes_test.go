package service

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type memConversations struct {
	mu           sync.Mutex
	byID         map[uuid.UUID]models.Conversation
	beforeCreate func()
}

func newMemConversations() *memConversations {
	return &memConversations{byID: map[uuid.UUID]models.Conversation{}}
}

func (m *memConversations) FindByParticipants(ctx context.Context, userA, userB uuid.UUID) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findLocked(userA, userB), nil
}

func (m *memConversations) findLocked(userA, userB uuid.UUID) *models.Conversation {
	for _, conv := range m.byID {
		if conv.HasParticipant(userA) && conv.HasParticipant(userB) {
			c := conv
			return &c
		}
	}
	return nil
}

func (m *memConversations) Create(ctx context.Context, userA, userB uuid.UUID) (models.Conversation, error) {
	m.mu.Lock()
	hook := m.beforeCreate
	m.beforeCreate = nil
	m.mu.Unlock()
	if hook != nil {
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findLocked(userA, userB) != nil {
		return models.Conversation{}, repositories.ErrConversationConflict
	}
	conv := m.insertLocked(userA, userB)
	return conv, nil
}

func (m *memConversations) insertLocked(userA, userB uuid.UUID) models.Conversation {
	now := time.Now().UTC()
	conv := models.Conversation{
		ID:           uuid.New(),
		ParticipantA: userA,
		ParticipantB: userB,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.byID[conv.ID] = conv
	return conv
}

// seed inserts a conversation directly, bypassing the uniqueness check.
func (m *memConversations) seed(userA, userB uuid.UUID) models.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(userA, userB)
}

func (m *memConversations) Touch(ctx context.Context, conversationID uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.byID[conversationID]
	if !ok {
		return repositories.ErrConversationNotFound
	}
	if conv.LastMessageAt == nil || at.After(*conv.LastMessageAt) {
		t := at
		conv.LastMessageAt = &t
	}
	m.byID[conversationID] = conv
	return nil
}

func (m *memConversations) GetByID(ctx context.Context, conversationID uuid.UUID) (models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.byID[conversationID]
	if !ok {
		return models.Conversation{}, repositories.ErrConversationNotFound
	}
	return conv, nil
}

func (m *memConversations) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Conversation{}
	for _, conv := range m.byID {
		if conv.HasParticipant(userID) {
			out = append(out, conv)
		}
	}
	return out, nil
}

func (m *memConversations) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

type memMessages struct {
	mu        sync.Mutex
	rows      []models.Message
	maxLength int
}

func newMemMessages(maxLength int) *memMessages {
	return &memMessages{maxLength: maxLength}
}

func (m *memMessages) Add(ctx context.Context, msg models.Message) (models.Message, error) {
	if err := repositories.ValidateContent(msg.Content, m.maxLength); err != nil {
		return models.Message{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = uuid.New()
	msg.IsRead = false
	msg.CreatedAt = baseTime.Add(time.Duration(len(m.rows)) * time.Second)
	msg.UpdatedAt = msg.CreatedAt
	m.rows = append(m.rows, msg)
	return msg, nil
}

func (m *memMessages) GetByID(ctx context.Context, messageID uuid.UUID) (models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.rows {
		if msg.ID == messageID {
			return msg, nil
		}
	}
	return models.Message{}, repositories.ErrMessageNotFound
}

func (m *memMessages) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Message{}
	for _, msg := range m.rows {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memMessages) LastInConversation(ctx context.Context, conversationID uuid.UUID) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].ConversationID == conversationID {
			msg := m.rows[i]
			return &msg, nil
		}
	}
	return nil, nil
}

func (m *memMessages) MarkRead(ctx context.Context, conversationID uuid.UUID, readerID uuid.UUID) ([]models.MessageReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	receipts := []models.MessageReceipt{}
	for i := range m.rows {
		msg := &m.rows[i]
		if msg.ConversationID == conversationID && msg.RecipientID == readerID && !msg.IsRead {
			msg.IsRead = true
			msg.UpdatedAt = time.Now().UTC()
			receipts = append(receipts, models.MessageReceipt{
				MessageID:      msg.ID,
				ConversationID: msg.ConversationID,
				SenderID:       msg.SenderID,
				ReadAt:         msg.UpdatedAt,
			})
		}
	}
	return receipts, nil
}

func (m *memMessages) MarkOneRead(ctx context.Context, messageID uuid.UUID, readerID uuid.UUID) (models.MessageReceipt, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		msg := &m.rows[i]
		if msg.ID == messageID && msg.RecipientID == readerID && !msg.IsRead {
			msg.IsRead = true
			msg.UpdatedAt = time.Now().UTC()
			return models.MessageReceipt{
				MessageID:      msg.ID,
				ConversationID: msg.ConversationID,
				SenderID:       msg.SenderID,
				ReadAt:         msg.UpdatedAt,
			}, true, nil
		}
	}
	return models.MessageReceipt{}, false, nil
}

func (m *memMessages) CountUnread(ctx context.Context, conversationID uuid.UUID, userID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, msg := range m.rows {
		if msg.ConversationID == conversationID && msg.RecipientID == userID && !msg.IsRead {
			count++
		}
	}
	return count, nil
}

func (m *memMessages) CountUnreadForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, msg := range m.rows {
		if msg.RecipientID == userID && !msg.IsRead {
			count++
		}
	}
	return count, nil
}

type memNotifications struct {
	mu   sync.Mutex
	rows []models.Notification
}

func (m *memNotifications) Add(ctx context.Context, n models.Notification) (models.Notification, error) {
	if err := repositories.ValidateNotification(n); err != nil {
		return models.Notification{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = uuid.New()
	n.IsRead = false
	n.CreatedAt = baseTime.Add(time.Duration(len(m.rows)) * time.Second)
	m.rows = append(m.rows, n)
	return n, nil
}

func (m *memNotifications) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Notification{}
	for _, n := range m.rows {
		if n.UserID == userID && (!unreadOnly || !n.IsRead) {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memNotifications) MarkRead(ctx context.Context, notificationID uuid.UUID, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == notificationID && m.rows[i].UserID == userID {
			m.rows[i].IsRead = true
			return true, nil
		}
	}
	return false, nil
}

func (m *memNotifications) MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for i := range m.rows {
		if m.rows[i].UserID == userID && !m.rows[i].IsRead {
			m.rows[i].IsRead = true
			count++
		}
	}
	return count, nil
}

func (m *memNotifications) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.rows {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (m *memNotifications) get(id uuid.UUID) models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.rows {
		if n.ID == id {
			return n
		}
	}
	return models.Notification{}
}

type fakeDirectory struct {
	users map[uuid.UUID]models.PublicProfile
	err   error

	mu    sync.Mutex
	calls int
}

func newFakeDirectory(ids ...uuid.UUID) *fakeDirectory {
	d := &fakeDirectory{users: map[uuid.UUID]models.PublicProfile{}}
	for i, id := range ids {
		d.users[id] = models.PublicProfile{ID: id, FirstName: "User", LastName: string(rune('A' + i))}
	}
	return d
}

func (d *fakeDirectory) GetUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.PublicProfile, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	out := map[uuid.UUID]models.PublicProfile{}
	for _, id := range ids {
		if p, ok := d.users[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (d *fakeDirectory) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type pushed struct {
	UserID  uuid.UUID
	Channel models.Channel
	Event   string
	Data    any
}

type recordingPusher struct {
	mu     sync.Mutex
	pushes []pushed
}

func (p *recordingPusher) Push(userID uuid.UUID, channel models.Channel, event string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = append(p.pushes, pushed{UserID: userID, Channel: channel, Event: event, Data: data})
}

func (p *recordingPusher) find(userID uuid.UUID, event string) []pushed {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []pushed
	for _, push := range p.pushes {
		if push.UserID == userID && push.Event == event {
			out = append(out, push)
		}
	}
	return out
}

func (p *recordingPusher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = nil
}

type recordingEvents struct {
	mu    sync.Mutex
	types []string
}

func (e *recordingEvents) Emit(ctx context.Context, eventType string, userID uuid.UUID, payload any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.types = append(e.types, eventType)
}
