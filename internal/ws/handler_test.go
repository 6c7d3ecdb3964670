package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"social-chat-service/internal/auth"
	"social-chat-service/internal/fanout"
	"social-chat-service/internal/mocks"
	"social-chat-service/internal/models"
	"social-chat-service/internal/registry"
)

type wsFixture struct {
	server        *httptest.Server
	authenticator *auth.JWTAuthenticator
	registry      *registry.Registry
	engine        *fanout.Engine
	conversations *mocks.ConversationRepositoryMock
	messages      *mocks.MessageRepositoryMock
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	presence := new(mocks.PresenceRepositoryMock)
	presence.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	conversations := new(mocks.ConversationRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	users.On("GetPreview", mock.Anything, mock.Anything).Return(models.UserPreview{}, nil).Maybe()

	reg := registry.New(presence)
	engine := fanout.NewEngine(conversations, messages, users, reg)
	authenticator := auth.NewJWTAuthenticator([]byte("test-secret"))
	handler := NewHandler(reg, engine, authenticator, 16)

	router := gin.New()
	router.GET("/ws", handler.Handle)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &wsFixture{
		server:        server,
		authenticator: authenticator,
		registry:      reg,
		engine:        engine,
		conversations: conversations,
		messages:      messages,
	}
}

func (f *wsFixture) dial(t *testing.T, userID int) *websocket.Conn {
	t.Helper()
	token, err := f.authenticator.IssueToken(userID, time.Minute)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, ev models.ClientEvent) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(ev))
}

// readEvent drains the connection until an event of the wanted type arrives.
// Presence broadcasts interleave with room events, so tests skip past them.
func readEvent(t *testing.T, conn *websocket.Conn, wantType string) models.ServerEvent {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))

	for {
		var ev models.ServerEvent
		require.NoError(t, conn.ReadJSON(&ev), "waiting for %s", wantType)
		if ev.Type == wantType {
			return ev
		}
		require.False(t, time.Now().After(deadline), "timed out waiting for %s", wantType)
	}
}

func TestHandshakeRejectsInvalidToken(t *testing.T) {
	f := newWSFixture(t)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandshakeRejectsMissingToken(t *testing.T) {
	f := newWSFixture(t)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandshakeAcceptsAuthorizationHeader(t *testing.T) {
	f := newWSFixture(t)

	token, err := f.authenticator.IssueToken(1, time.Minute)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	header := http.Header{"Authorization": {"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	ev := readEvent(t, conn, models.EventUserOnline)
	require.Equal(t, 1, ev.UserID)
}

// Full message lifecycle as seen by the other participant: create over the
// socket path, then edit and delete over the engine (the REST path), all
// arriving as room events with one canonical shape.
func TestMessageLifecycleReachesRoom(t *testing.T) {
	f := newWSFixture(t)

	conn2 := f.dial(t, 2)
	readEvent(t, conn2, models.EventUserOnline)
	send(t, conn2, models.ClientEvent{Type: models.ClientEventJoin, ConversationID: 10})
	time.Sleep(50 * time.Millisecond)

	conn1 := f.dial(t, 1)
	readEvent(t, conn2, models.EventUserOnline)

	created := models.Message{ID: 42, ConversationID: 10, SenderID: 1, Content: "hello", CreatedAt: time.Now()}
	f.conversations.On("IsParticipant", mock.Anything, 10, 1).Return(true, nil)
	f.messages.On("Create", mock.Anything, 10, 1, "hello", (*int)(nil)).Return(created, nil).Once()

	send(t, conn1, models.ClientEvent{Type: models.ClientEventSend, ConversationID: 10, Content: "hello"})

	ev := readEvent(t, conn2, models.EventMessageNew)
	require.Equal(t, 10, ev.ConversationID)
	require.NotNil(t, ev.Message)
	require.Equal(t, "hello", ev.Message.Content)
	require.Equal(t, 1, ev.Message.SenderID)

	editedAt := time.Now()
	f.messages.On("Get", mock.Anything, 42).Return(created, nil).Once()
	f.messages.On("Edit", mock.Anything, 42, "hello there").
		Return(models.Message{ID: 42, ConversationID: 10, SenderID: 1, Content: "hello there", EditedAt: &editedAt}, nil).Once()

	_, err := f.engine.Edit(context.Background(), 42, 1, "hello there")
	require.NoError(t, err)

	updated := readEvent(t, conn2, models.EventMessageUpdated)
	require.Equal(t, 42, updated.Message.ID, "edit keeps the message id so clients replace in place")
	require.Equal(t, "hello there", updated.Message.Content)

	deletedAt := time.Now()
	f.messages.On("Get", mock.Anything, 42).
		Return(models.Message{ID: 42, ConversationID: 10, SenderID: 1, Content: "hello there"}, nil).Once()
	f.messages.On("SoftDelete", mock.Anything, 42).
		Return(models.Message{ID: 42, ConversationID: 10, SenderID: 1, Content: "", DeletedAt: &deletedAt}, nil).Once()

	_, err = f.engine.Delete(context.Background(), 42, 1)
	require.NoError(t, err)

	deleted := readEvent(t, conn2, models.EventMessageDeleted)
	require.Equal(t, 42, deleted.Message.ID)
	require.Empty(t, deleted.Message.Content)
	require.NotNil(t, deleted.Message.DeletedAt)
}

func TestSendErrorAcknowledged(t *testing.T) {
	f := newWSFixture(t)

	conn := f.dial(t, 3)
	readEvent(t, conn, models.EventUserOnline)

	f.conversations.On("IsParticipant", mock.Anything, 10, 3).Return(false, nil)

	send(t, conn, models.ClientEvent{Type: models.ClientEventSend, ConversationID: 10, Content: "hi"})

	ev := readEvent(t, conn, models.EventError)
	require.NotEmpty(t, ev.Error)
}

func TestTypingRelayedToOthersOnly(t *testing.T) {
	f := newWSFixture(t)

	typist := f.dial(t, 1)
	readEvent(t, typist, models.EventUserOnline)
	other := f.dial(t, 2)
	readEvent(t, other, models.EventUserOnline)

	send(t, typist, models.ClientEvent{Type: models.ClientEventJoin, ConversationID: 4})
	send(t, other, models.ClientEvent{Type: models.ClientEventJoin, ConversationID: 4})
	time.Sleep(50 * time.Millisecond)

	send(t, typist, models.ClientEvent{Type: models.ClientEventTyping, ConversationID: 4})

	ev := readEvent(t, other, models.EventUserTyping)
	require.Equal(t, 4, ev.ConversationID)
	require.Equal(t, 1, ev.UserID)
}

func TestMalformedPayloadIgnored(t *testing.T) {
	f := newWSFixture(t)

	conn := f.dial(t, 1)
	readEvent(t, conn, models.EventUserOnline)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	// The connection stays healthy and still relays later events.
	send(t, conn, models.ClientEvent{Type: models.ClientEventJoin, ConversationID: 4})
	time.Sleep(50 * time.Millisecond)

	other := f.dial(t, 2)
	send(t, other, models.ClientEvent{Type: models.ClientEventJoin, ConversationID: 4})
	time.Sleep(50 * time.Millisecond)
	send(t, other, models.ClientEvent{Type: models.ClientEventTyping, ConversationID: 4})

	ev := readEvent(t, conn, models.EventUserTyping)
	require.Equal(t, 2, ev.UserID)
}

// Rooms do not survive a reconnect and there is no missed-event replay. A
// client that reconnects and rejoins receives everything broadcast after the
// rejoin, and nothing from the gap.
func TestRejoinRecovery(t *testing.T) {
	f := newWSFixture(t)

	f.conversations.On("IsParticipant", mock.Anything, 7, 1).Return(true, nil)
	for i, content := range []string{"one", "two", "three", "four"} {
		f.messages.On("Create", mock.Anything, 7, 1, content, (*int)(nil)).
			Return(models.Message{ID: i + 1, ConversationID: 7, SenderID: 1, Content: content, CreatedAt: time.Now()}, nil).Once()
	}

	listener := f.dial(t, 2)
	readEvent(t, listener, models.EventUserOnline)
	send(t, listener, models.ClientEvent{Type: models.ClientEventJoin, ConversationID: 7})
	time.Sleep(50 * time.Millisecond)

	// Drop the listener; its room membership is discarded immediately.
	listener.Close()
	deadline := time.Now().Add(3 * time.Second)
	for f.registry.LiveConnections(2) > 0 {
		require.False(t, time.Now().After(deadline), "disconnect never processed")
		time.Sleep(5 * time.Millisecond)
	}

	// Three messages land while the listener is gone.
	for _, content := range []string{"one", "two", "three"} {
		_, err := f.engine.Send(context.Background(), 7, 1, content, nil)
		require.NoError(t, err)
	}

	// Reconnect and rejoin, then a fourth message arrives.
	listener = f.dial(t, 2)
	readEvent(t, listener, models.EventUserOnline)
	send(t, listener, models.ClientEvent{Type: models.ClientEventJoin, ConversationID: 7})
	time.Sleep(50 * time.Millisecond)

	_, err := f.engine.Send(context.Background(), 7, 1, "four", nil)
	require.NoError(t, err)

	ev := readEvent(t, listener, models.EventMessageNew)
	require.Equal(t, "four", ev.Message.Content, "only post-rejoin events are delivered, gap events are not replayed")
}
