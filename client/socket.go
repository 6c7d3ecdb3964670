package client

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"social-chat-service/internal/models"
)

// Socket is the realtime channel: it dials, authenticates via bearer token,
// reconnects with exponential backoff, and dispatches decoded server events.
// Room membership is lost on every reconnect, so OnConnect must re-join.
type Socket struct {
	url       string
	token     string
	dialer    *websocket.Dialer
	onEvent   func(models.ServerEvent)
	onConnect func()

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewSocket constructs a Socket. onConnect fires after every successful
// (re)connect, before any events are dispatched.
func NewSocket(url, token string, onEvent func(models.ServerEvent), onConnect func()) *Socket {
	return &Socket{
		url:       url,
		token:     token,
		dialer:    websocket.DefaultDialer,
		onEvent:   onEvent,
		onConnect: onConnect,
	}
}

// Run connects and reads until the context is cancelled, redialing with
// backoff after every drop. Missed events during an outage are not replayed;
// recovery is the reconciler's rejoin plus REST snapshots.
func (s *Socket) Run(ctx context.Context) error {
	for {
		if err := s.connect(ctx); err != nil {
			return err
		}
		if s.onConnect != nil {
			s.onConnect()
		}
		s.readLoop(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

func (s *Socket) connect(ctx context.Context) error {
	policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	return backoff.Retry(func() error {
		header := map[string][]string{"Authorization": {"Bearer " + s.token}}
		conn, _, err := s.dialer.DialContext(ctx, s.url, header)
		if err != nil {
			log.Printf("socket: dial failed, retrying: %v", err)
			return err
		}
		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()
		return nil
	}, policy)
}

func (s *Socket) readLoop(ctx context.Context) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var ev models.ServerEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() == nil {
				log.Printf("socket: connection lost: %v", err)
			}
			conn.Close()
			return
		}
		if s.onEvent != nil {
			s.onEvent(ev)
		}
	}
}

// Join issues a room join for a conversation. Idempotent server-side.
func (s *Socket) Join(conversationID int) error {
	return s.write(models.ClientEvent{Type: models.ClientEventJoin, ConversationID: conversationID})
}

// Leave drops room membership for a conversation.
func (s *Socket) Leave(conversationID int) error {
	return s.write(models.ClientEvent{Type: models.ClientEventLeave, ConversationID: conversationID})
}

// Typing relays a fire-and-forget typing indicator.
func (s *Socket) Typing(conversationID int) error {
	return s.write(models.ClientEvent{Type: models.ClientEventTyping, ConversationID: conversationID})
}

// Send submits a message over the realtime path.
func (s *Socket) Send(conversationID int, content string, replyToID *int) error {
	return s.write(models.ClientEvent{
		Type:           models.ClientEventSend,
		ConversationID: conversationID,
		Content:        content,
		ReplyToID:      replyToID,
	})
}

func (s *Socket) write(ev models.ClientEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return websocket.ErrCloseSent
	}
	s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteJSON(ev)
}
