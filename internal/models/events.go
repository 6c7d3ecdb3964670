package models

import "time"

// Server-to-client event types.
const (
	EventMessageNew     = "message:new"
	EventMessageUpdated = "message:updated"
	EventMessageDeleted = "message:deleted"
	EventUserOnline     = "user:online"
	EventUserOffline    = "user:offline"
	EventUserTyping     = "user:typing"
	EventError          = "error"
)

// Client-to-server event types. The set is closed; anything else read off a
// connection is dropped at the boundary.
const (
	ClientEventJoin   = "conversation:join"
	ClientEventLeave  = "conversation:leave"
	ClientEventTyping = "typing"
	ClientEventSend   = "message:send"
)

// ServerEvent is the single envelope written to realtime subscribers. The
// same shape is emitted whether the triggering write arrived over the socket
// or the REST path.
type ServerEvent struct {
	Type           string     `json:"type"`
	ConversationID int        `json:"conversationId,omitempty"`
	Message        *Message   `json:"message,omitempty"`
	UserID         int        `json:"userId,omitempty"`
	LastSeen       *time.Time `json:"lastSeen,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// ClientEvent is the envelope read from realtime clients.
type ClientEvent struct {
	Type           string `json:"type"`
	ConversationID int    `json:"conversationId,omitempty"`
	Content        string `json:"content,omitempty"`
	ReplyToID      *int   `json:"replyToId,omitempty"`
}

// MessageEvent builds the canonical room event for a message lifecycle change.
func MessageEvent(eventType string, msg Message) ServerEvent {
	return ServerEvent{
		Type:           eventType,
		ConversationID: msg.ConversationID,
		Message:        &msg,
	}
}

// PresenceOnlineEvent announces a user coming online.
func PresenceOnlineEvent(userID int) ServerEvent {
	return ServerEvent{Type: EventUserOnline, UserID: userID}
}

// PresenceOfflineEvent announces a user going offline with their last-seen stamp.
func PresenceOfflineEvent(userID int, lastSeen time.Time) ServerEvent {
	return ServerEvent{Type: EventUserOffline, UserID: userID, LastSeen: &lastSeen}
}

// TypingEvent announces typing activity to other room members.
func TypingEvent(conversationID, userID int) ServerEvent {
	return ServerEvent{Type: EventUserTyping, ConversationID: conversationID, UserID: userID}
}

// ErrorEvent is a socket-level error acknowledgment.
func ErrorEvent(msg string) ServerEvent {
	return ServerEvent{Type: EventError, Error: msg}
}
