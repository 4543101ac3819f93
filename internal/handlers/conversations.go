package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"messaging-service/internal/models"
)

// MessagingService is the messaging use cases exposed over HTTP.
type MessagingService interface {
	SendMessage(ctx context.Context, senderID, recipientID uuid.UUID, content string) (models.Message, error)
	GetConversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error)
	GetConversationMessages(ctx context.Context, conversationID, requesterID uuid.UUID) ([]models.Message, error)
	MarkConversationRead(ctx context.Context, conversationID, userID uuid.UUID) (int, error)
	UnreadMessageCount(ctx context.Context, userID uuid.UUID) (int, error)
}

// ConversationHandler serves conversation and message endpoints.
type ConversationHandler struct {
	messaging MessagingService
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(messaging MessagingService) *ConversationHandler {
	return &ConversationHandler{messaging: messaging}
}

// ListConversations returns the caller's conversations, most recent activity first.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	conversations, err := h.messaging.GetConversations(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if conversations == nil {
		conversations = []models.ConversationSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// GetMessages returns a conversation's messages oldest first.
func (h *ConversationHandler) GetMessages(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	conversationID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}

	messages, err := h.messaging.GetConversationMessages(c.Request.Context(), conversationID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// SendMessage stores a direct message and pushes it to both participants.
func (h *ConversationHandler) SendMessage(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req struct {
		RecipientID string `json:"recipient_id" binding:"required"`
		Content     string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	recipientID, err := uuid.Parse(req.RecipientID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipient_id"})
		return
	}

	msg, err := h.messaging.SendMessage(c.Request.Context(), userID, recipientID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// MarkRead marks every message addressed to the caller in a conversation as read.
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	conversationID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}

	n, err := h.messaging.MarkConversationRead(c.Request.Context(), conversationID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked_read": n})
}

func (h *ConversationHandler) UnreadCount(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	count, err := h.messaging.UnreadMessageCount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.UnreadCountPayload{Count: count})
}
