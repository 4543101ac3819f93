package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/auth"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
)

var _ MessagingService = (*mocks.MessagingServiceMock)(nil)
var _ NotificationService = (*mocks.NotificationServiceMock)(nil)

type gatewayFixture struct {
	gateway       *Gateway
	hub           *Hub
	messaging     *mocks.MessagingServiceMock
	notifications *mocks.NotificationServiceMock
	verifier      *auth.TokenVerifier
}

func newGatewayFixture() *gatewayFixture {
	f := &gatewayFixture{
		hub:           NewHub(quietLogger()),
		messaging:     new(mocks.MessagingServiceMock),
		notifications: new(mocks.NotificationServiceMock),
		verifier:      auth.NewTokenVerifier("secret", "iss", "aud"),
	}
	f.gateway = NewGateway(f.hub, f.messaging, f.notifications, f.verifier, quietLogger(), []string{"*"})
	return f
}

func errorPayload(t *testing.T, event models.RealtimeEvent) models.ErrorPayload {
	t.Helper()
	require.Equal(t, models.ChannelSystem, event.Channel)
	require.Equal(t, models.EventError, event.Event)
	raw, err := json.Marshal(event.Data)
	require.NoError(t, err)
	var payload models.ErrorPayload
	require.NoError(t, json.Unmarshal(raw, &payload))
	return payload
}

func TestDispatchSendMessage(t *testing.T) {
	f := newGatewayFixture()
	user, recipient := uuid.New(), uuid.New()
	client := testClient(f.hub, user)

	f.messaging.On("SendMessage", mock.Anything, user, recipient, "hi").Return(models.Message{ID: uuid.New()}, nil).Once()

	raw := `{"type":"sendMessage","request_id":"r1","data":{"recipient_id":"` + recipient.String() + `","content":"hi"}}`
	require.NoError(t, f.gateway.dispatch(client, []byte(raw)))

	assert.Empty(t, client.send)
	f.messaging.AssertExpectations(t)
}

func TestDispatchValidationErrors(t *testing.T) {
	f := newGatewayFixture()
	client := testClient(f.hub, uuid.New())

	frames := []string{
		`not json`,
		`{"type":"sendMessage","request_id":"r2","data":{"recipient_id":"42","content":"hi"}}`,
		`{"type":"sendMessage","request_id":"r3"}`,
		`{"type":"typing","request_id":"r4","data":{"recipient_id":""}}`,
		`{"type":"markAsRead","request_id":"r5","data":{"message_id":"x"}}`,
		`{"type":"markNotificationAsRead","request_id":"r6","data":{"notification_id":"x"}}`,
	}
	for _, raw := range frames {
		require.NoError(t, f.gateway.dispatch(client, []byte(raw)))
		payload := errorPayload(t, readFrame(t, client))
		assert.Equal(t, codeValidation, payload.Code, raw)
	}
	f.messaging.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.messaging.AssertNotCalled(t, "NotifyTyping", mock.Anything, mock.Anything)
}

func TestDispatchMapsServiceErrors(t *testing.T) {
	f := newGatewayFixture()
	user, recipient, messageID := uuid.New(), uuid.New(), uuid.New()
	client := testClient(f.hub, user)

	f.messaging.On("SendMessage", mock.Anything, user, recipient, "").
		Return(models.Message{}, apperrors.Validationf("message content cannot be empty")).Once()
	f.messaging.On("MarkMessageRead", mock.Anything, messageID, user).
		Return(apperrors.NotFoundf("message %s not found", messageID)).Once()
	f.notifications.On("MarkAllRead", mock.Anything, user).
		Return(0, errors.New("connection reset")).Once()

	require.NoError(t, f.gateway.dispatch(client, []byte(`{"type":"sendMessage","request_id":"a","data":{"recipient_id":"`+recipient.String()+`","content":""}}`)))
	payload := errorPayload(t, readFrame(t, client))
	assert.Equal(t, "a", payload.RequestID)
	assert.Equal(t, codeValidation, payload.Code)

	require.NoError(t, f.gateway.dispatch(client, []byte(`{"type":"markAsRead","request_id":"b","data":{"message_id":"`+messageID.String()+`"}}`)))
	payload = errorPayload(t, readFrame(t, client))
	assert.Equal(t, codeNotFound, payload.Code)

	require.NoError(t, f.gateway.dispatch(client, []byte(`{"type":"markAllNotificationsRead","request_id":"c"}`)))
	payload = errorPayload(t, readFrame(t, client))
	assert.Equal(t, codeInternal, payload.Code)
	assert.Equal(t, "internal error", payload.Message)

	f.messaging.AssertExpectations(t)
	f.notifications.AssertExpectations(t)
}

func TestDispatchTypingAndNotifications(t *testing.T) {
	f := newGatewayFixture()
	user, recipient, notificationID := uuid.New(), uuid.New(), uuid.New()
	client := testClient(f.hub, user)

	f.messaging.On("NotifyTyping", user, recipient).Once()
	f.notifications.On("MarkRead", mock.Anything, notificationID, user).Return(nil).Once()
	f.notifications.On("MarkAllRead", mock.Anything, user).Return(2, nil).Once()

	require.NoError(t, f.gateway.dispatch(client, []byte(`{"type":"typing","data":{"recipient_id":"`+recipient.String()+`"}}`)))
	require.NoError(t, f.gateway.dispatch(client, []byte(`{"type":"markNotificationAsRead","data":{"notification_id":"`+notificationID.String()+`"}}`)))
	require.NoError(t, f.gateway.dispatch(client, []byte(`{"type":"markAllNotificationsRead"}`)))

	assert.Empty(t, client.send)
	f.messaging.AssertExpectations(t)
	f.notifications.AssertExpectations(t)
}

func TestDispatchGetUnreadCount(t *testing.T) {
	f := newGatewayFixture()
	user := uuid.New()
	client := testClient(f.hub, user)

	f.messaging.On("UnreadMessageCount", mock.Anything, user).Return(4, nil).Once()
	f.notifications.On("UnreadCount", mock.Anything, user).Return(7, nil).Once()

	require.NoError(t, f.gateway.dispatch(client, []byte(`{"type":"getUnreadCount"}`)))

	messages := readFrame(t, client)
	assert.Equal(t, models.ChannelMessages, messages.Channel)
	assert.Equal(t, map[string]any{"count": float64(4)}, messages.Data)
	notifications := readFrame(t, client)
	assert.Equal(t, models.ChannelNotifications, notifications.Channel)
	assert.Equal(t, map[string]any{"count": float64(7)}, notifications.Data)
}

func TestDispatchUnsupported(t *testing.T) {
	f := newGatewayFixture()
	client := testClient(f.hub, uuid.New())

	require.NoError(t, f.gateway.dispatch(client, []byte(`{"type":"deleteMessage","request_id":"z"}`)))
	payload := errorPayload(t, readFrame(t, client))
	assert.Equal(t, codeUnsupported, payload.Code)
	assert.Equal(t, "z", payload.RequestID)
}

func TestDispatchExpiredToken(t *testing.T) {
	f := newGatewayFixture()
	user := uuid.New()
	client := newClient(f.hub, nil, ConnInfo{UserID: user}, auth.Identity{UserID: user, ExpiresAt: time.Now().Add(-time.Second)})

	err := f.gateway.dispatch(client, []byte(`{"type":"getUnreadCount","request_id":"late"}`))
	assert.ErrorIs(t, err, errTokenExpired)

	payload := errorPayload(t, readFrame(t, client))
	assert.Equal(t, codeUnauthenticated, payload.Code)
	assert.Equal(t, "late", payload.RequestID)
	f.messaging.AssertNotCalled(t, "UnreadMessageCount", mock.Anything, mock.Anything)
}

func setupGatewayRouter(g *Gateway) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", g.Handle)
	return r
}

func TestHandleRejectsMissingToken(t *testing.T) {
	f := newGatewayFixture()
	router := setupGatewayRouter(f.gateway)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?access_token=garbage", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGatewayConnection(t *testing.T) {
	f := newGatewayFixture()
	user, recipient := uuid.New(), uuid.New()
	token, err := f.verifier.Issue(user, time.Hour)
	require.NoError(t, err)

	f.messaging.On("UnreadMessageCount", mock.Anything, user).Return(2, nil).Once()
	f.notifications.On("UnreadCount", mock.Anything, user).Return(5, nil).Once()
	typed := make(chan struct{})
	f.messaging.On("NotifyTyping", user, recipient).Run(func(mock.Arguments) { close(typed) }).Once()

	srv := httptest.NewServer(setupGatewayRouter(f.gateway))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?access_token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first, second models.RealtimeEvent
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, models.EventUnreadCount, first.Event)
	assert.Equal(t, models.ChannelMessages, first.Channel)
	assert.Equal(t, map[string]any{"count": float64(2)}, first.Data)
	assert.Equal(t, models.ChannelNotifications, second.Channel)
	assert.Equal(t, map[string]any{"count": float64(5)}, second.Data)
	assert.Equal(t, 1, f.hub.ConnectionCount(user))

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "typing",
		"data": map[string]string{"recipient_id": recipient.String()},
	}))
	select {
	case <-typed:
	case <-time.After(5 * time.Second):
		t.Fatal("typing was not dispatched")
	}

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "bogus", "request_id": "q"}))
	var errEvent models.RealtimeEvent
	require.NoError(t, conn.ReadJSON(&errEvent))
	assert.Equal(t, codeUnsupported, errorPayload(t, errEvent).Code)

	f.hub.Push(user, models.ChannelNotifications, models.EventAllNotificationsRead, struct{}{})
	var pushed models.RealtimeEvent
	require.NoError(t, conn.ReadJSON(&pushed))
	assert.Equal(t, models.EventAllNotificationsRead, pushed.Event)

	f.messaging.AssertExpectations(t)
	f.notifications.AssertExpectations(t)
}
