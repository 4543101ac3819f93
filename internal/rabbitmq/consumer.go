package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/telemetry"
)

// NotificationsCreateKey is the routing key other features publish notification requests on.
const NotificationsCreateKey = "notifications.create"

const handleTimeout = 15 * time.Second

// NotificationIngest stores and pushes a notification fan-out request.
type NotificationIngest interface {
	NotifyMany(ctx context.Context, in models.CreateNotificationInput) ([]models.Notification, error)
}

// NotificationConsumer turns notifications.create messages into stored, pushed notifications.
type NotificationConsumer struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	queue  string
	ingest NotificationIngest
	logger *logrus.Logger
}

// NewNotificationConsumer declares the exchange and a durable queue bound to
// notifications.create.
func NewNotificationConsumer(amqpURL, exchange, queue string, ingest NotificationIngest, logger *logrus.Logger) (*NotificationConsumer, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	cleanup := func() {
		_ = ch.Close()
		_ = conn.Close()
	}
	if err := declareExchange(ch, exchange); err != nil {
		cleanup()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		cleanup()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, NotificationsCreateKey, exchange, false, nil); err != nil {
		cleanup()
		return nil, fmt.Errorf("bind queue %s: %w", queue, err)
	}
	if err := ch.Qos(16, 0, false); err != nil {
		cleanup()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	return &NotificationConsumer{conn: conn, ch: ch, queue: queue, ingest: ingest, logger: logger}, nil
}

// Run consumes until ctx is cancelled or the channel closes.
func (c *NotificationConsumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.ConsumeWithContext(ctx, c.queue, "messaging-service", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	c.logger.WithField("queue", c.queue).Info("notification consumer started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			handleDelivery(ctx, c.ingest, c.logger, d)
		}
	}
}

func (c *NotificationConsumer) Close() error {
	_ = c.ch.Close()
	return c.conn.Close()
}

// handleDelivery acks stored requests, drops malformed or invalid ones and requeues
// a failed request once.
func handleDelivery(ctx context.Context, ingest NotificationIngest, logger *logrus.Logger, d amqp.Delivery) {
	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()
	if requestID, ok := d.Headers["x-request-id"].(string); ok {
		ctx = telemetry.WithRequestID(ctx, requestID)
	}

	entry := logger.WithFields(logrus.Fields{"routing_key": d.RoutingKey, "message_id": d.MessageId})

	var in models.CreateNotificationInput
	if err := json.Unmarshal(d.Body, &in); err != nil {
		entry.WithError(err).Warn("dropping malformed notification request")
		_ = d.Nack(false, false)
		observability.IncAMQPConsumed("rejected")
		return
	}

	created, err := ingest.NotifyMany(ctx, in)
	switch {
	case err == nil:
		_ = d.Ack(false)
		observability.IncAMQPConsumed("ok")
		entry.WithField("count", len(created)).Debug("notification request stored")
	case errors.Is(err, apperrors.ErrValidation):
		entry.WithError(err).Warn("dropping invalid notification request")
		_ = d.Nack(false, false)
		observability.IncAMQPConsumed("rejected")
	case d.Redelivered:
		entry.WithError(err).Error("notification request failed after redelivery")
		_ = d.Nack(false, false)
		observability.IncAMQPConsumed("failed")
	default:
		entry.WithError(err).Warn("notification request failed, requeueing")
		_ = d.Nack(false, true)
		observability.IncAMQPConsumed("requeued")
	}
}
