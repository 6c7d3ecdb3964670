package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"social-chat-service/internal/auth"
	"social-chat-service/internal/fanout"
	"social-chat-service/internal/models"
	"social-chat-service/internal/observability"
	"social-chat-service/internal/registry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler owns the realtime endpoint: handshake, typed event dispatch, and
// connection teardown.
type Handler struct {
	registry      *registry.Registry
	engine        *fanout.Engine
	authenticator auth.TokenAuthenticator
	sendBuf       int
}

// NewHandler constructs a Handler.
func NewHandler(reg *registry.Registry, engine *fanout.Engine, authenticator auth.TokenAuthenticator, sendBuf int) *Handler {
	return &Handler{
		registry:      reg,
		engine:        engine,
		authenticator: authenticator,
		sendBuf:       sendBuf,
	}
}

// Handle authenticates and upgrades the connection, registers it, and runs
// the read loop until disconnect. A missing or invalid identity claim is a
// hard reject with no event emitted.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("social-chat-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	userID, err := h.authenticator.Authenticate(ctx, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := newClient(userID, conn, h.sendBuf)
	if err := h.registry.Connect(ctx, client); err != nil {
		conn.Close()
		return
	}

	info := ConnInfo{
		ConnID:      client.ID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	publishConnEvent(ctx, "ws_connect", info, "")

	go client.writePump()
	h.readLoop(ctx, client, info)
}

// readLoop decodes inbound envelopes and dispatches them. Malformed or
// unknown payloads are counted and dropped, never propagated. On read error
// the connection's room memberships are discarded immediately; the client is
// responsible for rejoining after reconnect.
func (h *Handler) readLoop(ctx context.Context, client *Client, info ConnInfo) {
	var closeReason string
	defer func() {
		h.registry.Disconnect(ctx, client)
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		publishConnEvent(ctx, "ws_disconnect", info, closeReason)
	}()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				publishConnEvent(ctx, "ws_error", info, closeReason)
			}
			return
		}

		var event models.ClientEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			observability.IncWSEvent("ws_invalid_payload")
			continue
		}
		h.dispatch(ctx, client, event)
	}
}

func (h *Handler) dispatch(ctx context.Context, client *Client, event models.ClientEvent) {
	switch event.Type {
	case models.ClientEventJoin:
		if event.ConversationID > 0 {
			h.registry.Join(client, event.ConversationID)
		}
	case models.ClientEventLeave:
		if event.ConversationID > 0 {
			h.registry.Leave(client, event.ConversationID)
		}
	case models.ClientEventTyping:
		// Fire-and-forget relay, excluding the typist.
		if event.ConversationID > 0 {
			h.registry.ToRoomExcept(event.ConversationID, client,
				models.TypingEvent(event.ConversationID, client.Identity()))
		}
	case models.ClientEventSend:
		if _, err := h.engine.Send(ctx, event.ConversationID, client.Identity(), event.Content, event.ReplyToID); err != nil {
			client.Send(models.ErrorEvent(publicSendError(err)))
		}
	default:
		observability.IncWSEvent("ws_unknown_event")
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		const prefix = "Bearer "
		if len(header) > len(prefix) && header[:len(prefix)] == prefix {
			return header[len(prefix):]
		}
		return ""
	}
	return c.Query("token")
}

func publicSendError(err error) string {
	switch {
	case errors.Is(err, fanout.ErrNotParticipant):
		return "not a conversation participant"
	case errors.Is(err, fanout.ErrEmptyContent):
		return "message content is empty"
	default:
		log.Printf("websocket send failed: %v", err)
		return "failed to send message"
	}
}

func publishConnEvent(ctx context.Context, name string, info ConnInfo, reason string) {
	_ = observability.PublishEvent(ctx, "ws_events.chat", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: name,
		Payload: map[string]any{
			"ws": map[string]any{
				"event":       name,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]any{
				"user_id":    info.UserID,
				"device_id":  info.DeviceID,
				"ip":         info.IP,
				"request_id": info.RequestID,
				"trace_id":   info.TraceID,
			},
		},
	})
}
