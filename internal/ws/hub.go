package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

// Fanout relays frames to the hubs of every instance, this one included.
type Fanout interface {
	Publish(ctx context.Context, userID uuid.UUID, channel models.Channel, frame []byte) error
}

type groupKey struct {
	channel models.Channel
	userID  uuid.UUID
}

// Hub maintains the per-user groups of live connections. Every connection belongs to
// one messages group and one notifications group, both keyed by its user id.
type Hub struct {
	groups map[groupKey]map[*Client]struct{}
	fanout Fanout
	logger *logrus.Logger
	mu     sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		groups: make(map[groupKey]map[*Client]struct{}),
		logger: logger,
	}
}

// SetFanout routes pushes through a cross-instance relay. A nil fanout restores
// local delivery.
func (h *Hub) SetFanout(fanout Fanout) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fanout = fanout
}

func (h *Hub) currentFanout() Fanout {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.fanout
}

var userChannels = []models.Channel{models.ChannelMessages, models.ChannelNotifications}

// Join registers a client in the groups of its user.
func (h *Hub) Join(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, channel := range userChannels {
		key := groupKey{channel: channel, userID: c.info.UserID}
		if _, ok := h.groups[key]; !ok {
			h.groups[key] = make(map[*Client]struct{})
		}
		h.groups[key][c] = struct{}{}
	}
}

// Leave removes a client from its groups. It reports whether the client was a member.
func (h *Hub) Leave(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	removed := false
	for _, channel := range userChannels {
		key := groupKey{channel: channel, userID: c.info.UserID}
		if clients, ok := h.groups[key]; ok {
			if _, member := clients[c]; member {
				delete(clients, c)
				removed = true
			}
			if len(clients) == 0 {
				delete(h.groups, key)
			}
		}
	}
	return removed
}

// ConnectionCount returns the number of live connections of a user.
func (h *Hub) ConnectionCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[groupKey{channel: models.ChannelMessages, userID: userID}])
}

// Push sends an event to every connection of userID on the given channel. Users
// without live connections are skipped.
func (h *Hub) Push(userID uuid.UUID, channel models.Channel, event string, data any) {
	frame, err := encodeFrame(channel, event, data)
	if err != nil {
		h.logger.WithError(err).WithField("event", event).Error("failed to encode realtime event")
		return
	}
	observability.IncWSEvent(string(channel), event)

	if fanout := h.currentFanout(); fanout != nil {
		err := fanout.Publish(context.Background(), userID, channel, frame)
		if err == nil {
			return
		}
		h.logger.WithError(err).WithField("user_id", userID).Warn("fanout publish failed, delivering locally")
	}
	h.DeliverLocal(userID, channel, frame)
}

// DeliverLocal writes an encoded frame to the connections held by this instance. A
// connection whose send buffer is full is dropped.
func (h *Hub) DeliverLocal(userID uuid.UUID, channel models.Channel, frame []byte) {
	h.mu.RLock()
	group := h.groups[groupKey{channel: channel, userID: userID}]
	clients := make([]*Client, 0, len(group))
	for c := range group {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if !c.enqueue(frame) {
			h.drop(c, "send buffer full")
		}
	}
}

func (h *Hub) drop(c *Client, reason string) {
	if !h.Leave(c) {
		return
	}
	c.closeSend()
	observability.IncWSDropped()
	h.logger.WithFields(logrus.Fields{"conn_id": c.info.ConnID, "user_id": c.info.UserID}).Warn("dropping slow websocket client")
	publishWSEvent(context.Background(), c.info, "ws_dropped", reason)
}

// Close disconnects every client. Used on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make(map[*Client]struct{})
	for key, group := range h.groups {
		for c := range group {
			clients[c] = struct{}{}
		}
		delete(h.groups, key)
	}
	h.mu.Unlock()

	for c := range clients {
		c.closeSend()
	}
}

func encodeFrame(channel models.Channel, event string, data any) ([]byte, error) {
	return json.Marshal(models.RealtimeEvent{Channel: channel, Event: event, Data: data})
}
