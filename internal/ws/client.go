package ws

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"social-chat-service/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one websocket connection with a buffered outbound queue. It
// implements registry.Conn.
type Client struct {
	id       string
	identity int
	conn     *websocket.Conn
	send     chan models.ServerEvent
	done     chan struct{}
	once     sync.Once
}

func newClient(identity int, conn *websocket.Conn, sendBuf int) *Client {
	if sendBuf <= 0 {
		sendBuf = 256
	}
	return &Client{
		id:       newConnID(),
		identity: identity,
		conn:     conn,
		send:     make(chan models.ServerEvent, sendBuf),
		done:     make(chan struct{}),
	}
}

func (c *Client) ID() string    { return c.id }
func (c *Client) Identity() int { return c.identity }

// Send queues an event for delivery. It never blocks; false means the
// connection is gone or its queue is full, and the caller should drop it.
func (c *Client) Send(event models.ServerEvent) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- event:
		return true
	default:
		return false
	}
}

// Close shuts the connection down. Safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// writePump drains the outbound queue and keeps the connection alive with
// pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case event := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(event); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("websocket write error: %v", err)
				}
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
