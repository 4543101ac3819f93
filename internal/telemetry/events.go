package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Domain event types published on the event bus.
const (
	EventMessageSent          = "message.sent"
	EventConversationRead     = "conversation.read"
	EventNotificationCreated  = "notification.created"
	EventNotificationsReadAll = "notifications.read_all"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

// EventEmitter wraps domain events in a versioned envelope and publishes them.
type EventEmitter struct {
	publisher   Publisher
	service     string
	environment string
	logger      *logrus.Logger
}

type DomainEnvelope struct {
	SchemaVersion int        `json:"schema_version"`
	EventType     string     `json:"event_type"`
	OccurredAt    string     `json:"occurred_at"`
	Service       string     `json:"service"`
	Environment   string     `json:"environment"`
	RequestID     string     `json:"request_id"`
	UserID        *uuid.UUID `json:"user_id,omitempty"`
	Payload       any        `json:"payload"`
}

func NewEventEmitter(publisher Publisher, service, environment string, logger *logrus.Logger) *EventEmitter {
	return &EventEmitter{
		publisher:   publisher,
		service:     service,
		environment: environment,
		logger:      logger,
	}
}

// Emit publishes eventType using it as the routing key. Failures are logged, never returned.
func (e *EventEmitter) Emit(ctx context.Context, eventType string, userID uuid.UUID, payload any) {
	if e == nil || e.publisher == nil {
		return
	}

	requestID := RequestIDFromContext(ctx)
	envelope := DomainEnvelope{
		SchemaVersion: 1,
		EventType:     eventType,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		Payload:       payload,
	}
	if userID != uuid.Nil {
		envelope.UserID = &userID
	}

	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		headers["trace_id"] = traceID
	}

	if err := e.publisher.Publish(ctx, eventType, envelope, headers); err != nil && e.logger != nil {
		e.logger.WithError(err).WithField("event_type", eventType).Warn("domain event publish failed")
	}
}
