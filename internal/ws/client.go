package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"messaging-service/internal/auth"
	"messaging-service/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendBufferSize = 256
)

// Client is one websocket connection. Frames reach the socket only through send, so
// a connection observes pushes in the order they were enqueued.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	info     ConnInfo
	identity auth.Identity

	mu     sync.Mutex
	closed bool
}

func newClient(hub *Hub, conn *websocket.Conn, info ConnInfo, identity auth.Identity) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		info:     info,
		identity: identity,
	}
}

// enqueue reports false when the client is closed or its buffer is full.
func (c *Client) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// sendEvent writes a frame to this connection only.
func (c *Client) sendEvent(channel models.Channel, event string, data any) {
	frame, err := encodeFrame(channel, event, data)
	if err != nil {
		return
	}
	if !c.enqueue(frame) {
		c.hub.drop(c, "send buffer full")
	}
}

func (c *Client) sendError(requestID, code, message string) {
	c.sendEvent(models.ChannelSystem, models.EventError, models.ErrorPayload{
		RequestID: requestID,
		Code:      code,
		Message:   message,
	})
}

// readPump handles inbound frames one at a time until the connection fails or the
// token expires, and returns the close reason.
func (c *Client) readPump(g *Gateway) string {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		messageType, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				publishWSEvent(context.Background(), c.info, "ws_error", err.Error())
			}
			return err.Error()
		}
		if messageType != websocket.TextMessage {
			c.sendError("", codeValidation, "only text frames are accepted")
			continue
		}
		if err := g.dispatch(c, raw); errors.Is(err, errTokenExpired) {
			return err.Error()
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
