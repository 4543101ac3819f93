package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"messaging-service/internal/models"
)

const (
	userChannelPrefix  = "realtime:user:"
	userChannelPattern = userChannelPrefix + "*"
)

type relayEnvelope struct {
	Channel models.Channel  `json:"channel"`
	Frame   json.RawMessage `json:"frame"`
}

// RedisFanout relays pushes over redis pub/sub so a user connected to another
// instance still receives them.
type RedisFanout struct {
	rdb    *redis.Client
	hub    *Hub
	logger *logrus.Logger
}

func NewRedisFanout(rdb *redis.Client, hub *Hub, logger *logrus.Logger) *RedisFanout {
	return &RedisFanout{rdb: rdb, hub: hub, logger: logger}
}

func (f *RedisFanout) Publish(ctx context.Context, userID uuid.UUID, channel models.Channel, frame []byte) error {
	body, err := json.Marshal(relayEnvelope{Channel: channel, Frame: frame})
	if err != nil {
		return err
	}
	return f.rdb.Publish(ctx, userChannelPrefix+userID.String(), body).Err()
}

// Run delivers relayed frames to the local hub until ctx is cancelled. The hub
// publishes through the relay only while the subscription is live.
func (f *RedisFanout) Run(ctx context.Context) error {
	pubsub := f.rdb.PSubscribe(ctx, userChannelPattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", userChannelPattern, err)
	}
	f.hub.SetFanout(f)
	defer func() {
		f.hub.SetFanout(nil)
		f.logger.Warn("redis fanout stopped, realtime delivery is local")
	}()
	f.logger.WithField("pattern", userChannelPattern).Info("redis fanout subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			userID, env, err := decodeRelay(msg.Channel, msg.Payload)
			if err != nil {
				f.logger.WithError(err).WithField("channel", msg.Channel).Warn("dropping malformed relay message")
				continue
			}
			f.hub.DeliverLocal(userID, env.Channel, env.Frame)
		}
	}
}

func decodeRelay(redisChannel, payload string) (uuid.UUID, relayEnvelope, error) {
	var env relayEnvelope
	userID, err := uuid.Parse(strings.TrimPrefix(redisChannel, userChannelPrefix))
	if err != nil {
		return uuid.Nil, env, fmt.Errorf("parse user id: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return uuid.Nil, env, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Channel != models.ChannelMessages && env.Channel != models.ChannelNotifications {
		return uuid.Nil, env, fmt.Errorf("unknown channel %q", env.Channel)
	}
	return userID, env, nil
}
