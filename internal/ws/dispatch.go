package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
	"messaging-service/internal/telemetry"
)

// Client operations.
const (
	opSendMessage              = "sendMessage"
	opMarkAsRead               = "markAsRead"
	opTyping                   = "typing"
	opMarkNotificationAsRead   = "markNotificationAsRead"
	opMarkAllNotificationsRead = "markAllNotificationsRead"
	opGetUnreadCount           = "getUnreadCount"
)

// Error codes carried by Error events.
const (
	codeValidation      = "validation"
	codeNotFound        = "not_found"
	codeUnauthenticated = "unauthenticated"
	codeInternal        = "internal"
	codeUnsupported     = "unsupported"
)

var errTokenExpired = errors.New("token expired")

type inboundFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

type sendMessageData struct {
	RecipientID string `json:"recipient_id"`
	Content     string `json:"content"`
}

type markAsReadData struct {
	MessageID string `json:"message_id"`
}

type typingData struct {
	RecipientID string `json:"recipient_id"`
}

type markNotificationData struct {
	NotificationID string `json:"notification_id"`
}

// dispatch runs one client operation. It returns errTokenExpired when the connection
// must be closed; every other failure is reported to the client as an Error event.
func (g *Gateway) dispatch(c *Client, raw []byte) error {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.sendError("", codeValidation, "malformed frame")
		return nil
	}

	if c.identity.Expired(time.Now()) {
		c.sendError(frame.RequestID, codeUnauthenticated, "token expired")
		return errTokenExpired
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.opTimeout)
	defer cancel()
	ctx = telemetry.WithRequestID(ctx, frame.RequestID)

	userID := c.info.UserID
	var err error
	switch frame.Type {
	case opSendMessage:
		var data sendMessageData
		if err = decodeData(frame.Data, &data); err != nil {
			break
		}
		var recipientID uuid.UUID
		if recipientID, err = parseID("recipient_id", data.RecipientID); err != nil {
			break
		}
		_, err = g.messaging.SendMessage(ctx, userID, recipientID, data.Content)

	case opMarkAsRead:
		var data markAsReadData
		if err = decodeData(frame.Data, &data); err != nil {
			break
		}
		var messageID uuid.UUID
		if messageID, err = parseID("message_id", data.MessageID); err != nil {
			break
		}
		err = g.messaging.MarkMessageRead(ctx, messageID, userID)

	case opTyping:
		var data typingData
		if err = decodeData(frame.Data, &data); err != nil {
			break
		}
		var recipientID uuid.UUID
		if recipientID, err = parseID("recipient_id", data.RecipientID); err != nil {
			break
		}
		g.messaging.NotifyTyping(userID, recipientID)

	case opMarkNotificationAsRead:
		var data markNotificationData
		if err = decodeData(frame.Data, &data); err != nil {
			break
		}
		var notificationID uuid.UUID
		if notificationID, err = parseID("notification_id", data.NotificationID); err != nil {
			break
		}
		err = g.notifications.MarkRead(ctx, notificationID, userID)

	case opMarkAllNotificationsRead:
		_, err = g.notifications.MarkAllRead(ctx, userID)

	case opGetUnreadCount:
		var messages, notifications int
		if messages, err = g.messaging.UnreadMessageCount(ctx, userID); err != nil {
			break
		}
		if notifications, err = g.notifications.UnreadCount(ctx, userID); err != nil {
			break
		}
		c.sendEvent(models.ChannelMessages, models.EventUnreadCount, models.UnreadCountPayload{Count: messages})
		c.sendEvent(models.ChannelNotifications, models.EventUnreadCount, models.UnreadCountPayload{Count: notifications})

	default:
		c.sendError(frame.RequestID, codeUnsupported, "unsupported operation "+frame.Type)
		return nil
	}

	if err != nil {
		g.reportError(c, frame, err)
	}
	return nil
}

func (g *Gateway) reportError(c *Client, frame inboundFrame, err error) {
	code := codeInternal
	switch apperrors.Code(err) {
	case "validation":
		code = codeValidation
	case "not_found":
		code = codeNotFound
	case "unauthenticated":
		code = codeUnauthenticated
	default:
		g.logger.WithError(err).WithFields(logrus.Fields{
			"op":         frame.Type,
			"request_id": frame.RequestID,
			"conn_id":    c.info.ConnID,
		}).Error("realtime operation failed")
	}
	c.sendError(frame.RequestID, code, apperrors.PublicMessage(err))
}

func decodeData(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return apperrors.Validationf("data is required")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperrors.Validationf("malformed data")
	}
	return nil
}

func parseID(field, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, apperrors.Validationf("invalid %s", field)
	}
	return id, nil
}
