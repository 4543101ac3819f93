package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"messaging-service/internal/auth"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

// MessagingService is the messaging use cases reachable from the gateway.
type MessagingService interface {
	SendMessage(ctx context.Context, senderID, recipientID uuid.UUID, content string) (models.Message, error)
	MarkMessageRead(ctx context.Context, messageID, userID uuid.UUID) error
	NotifyTyping(senderID, recipientID uuid.UUID)
	UnreadMessageCount(ctx context.Context, userID uuid.UUID) (int, error)
}

// NotificationService is the notification use cases reachable from the gateway.
type NotificationService interface {
	MarkRead(ctx context.Context, notificationID, userID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
}

type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// Gateway upgrades authenticated requests to realtime connections.
type Gateway struct {
	hub           *Hub
	messaging     MessagingService
	notifications NotificationService
	verifier      TokenVerifier
	logger        *logrus.Logger
	upgrader      websocket.Upgrader
	opTimeout     time.Duration
}

// NewGateway constructs a Gateway.
func NewGateway(hub *Hub, messaging MessagingService, notifications NotificationService, verifier TokenVerifier, logger *logrus.Logger, allowedOrigins []string) *Gateway {
	return &Gateway{
		hub:           hub,
		messaging:     messaging,
		notifications: notifications,
		verifier:      verifier,
		logger:        logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		opTimeout: 10 * time.Second,
	}
}

// Handle authenticates the handshake, upgrades the connection and runs it until it closes.
func (g *Gateway) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messaging-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	identity, err := g.verifier.Verify(observability.BearerToken(c.Request))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	span.SetAttributes(attribute.String("user.id", identity.UserID.String()))

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.WithError(err).Debug("websocket upgrade failed")
		return
	}

	traceID := span.SpanContext().TraceID().String()
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      identity.UserID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	client := newClient(g.hub, conn, info, identity)
	g.hub.Join(client)

	observability.IncWSActive()
	publishWSEvent(ctx, info, "ws_connect", "")
	g.logger.WithFields(logrus.Fields{"conn_id": info.ConnID, "user_id": info.UserID}).Info("websocket connected")

	g.sendUnreadCounts(client)

	go client.writePump()
	go func() {
		reason := client.readPump(g)
		g.hub.Leave(client)
		client.closeSend()
		observability.DecWSActive()
		publishWSEvent(context.Background(), info, "ws_disconnect", reason)
		g.logger.WithFields(logrus.Fields{"conn_id": info.ConnID, "user_id": info.UserID, "reason": reason}).Info("websocket disconnected")
	}()
}

// sendUnreadCounts writes the caller's current counts on both channels to one connection.
func (g *Gateway) sendUnreadCounts(c *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), g.opTimeout)
	defer cancel()

	if count, err := g.messaging.UnreadMessageCount(ctx, c.info.UserID); err == nil {
		c.sendEvent(models.ChannelMessages, models.EventUnreadCount, models.UnreadCountPayload{Count: count})
	} else {
		g.logger.WithError(err).WithField("user_id", c.info.UserID).Warn("failed to load unread messages")
	}
	if count, err := g.notifications.UnreadCount(ctx, c.info.UserID); err == nil {
		c.sendEvent(models.ChannelNotifications, models.EventUnreadCount, models.UnreadCountPayload{Count: count})
	} else {
		g.logger.WithError(err).WithField("user_id", c.info.UserID).Warn("failed to load unread notifications")
	}
}
