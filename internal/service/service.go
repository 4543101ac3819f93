// Package service holds the messaging and notification use cases shared by the HTTP
// handlers and the realtime gateway.
package service

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"messaging-service/internal/models"
)

var tracer = otel.Tracer("messaging-service/service")

// Pusher delivers an event to every live connection of a user. Users without live
// connections are skipped.
type Pusher interface {
	Push(userID uuid.UUID, channel models.Channel, event string, data any)
}

// UserDirectory resolves public profiles. Unknown ids are absent from the result.
type UserDirectory interface {
	GetUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.PublicProfile, error)
}

// EventPublisher publishes domain events for other services.
type EventPublisher interface {
	Emit(ctx context.Context, eventType string, userID uuid.UUID, payload any)
}

type noopEvents struct{}

func (noopEvents) Emit(context.Context, string, uuid.UUID, any) {}

func eventsOrNoop(events EventPublisher) EventPublisher {
	if events == nil {
		return noopEvents{}
	}
	return events
}
