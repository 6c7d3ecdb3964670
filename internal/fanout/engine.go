package fanout

import (
	"context"
	"errors"
	"log"
	"strings"

	"go.opentelemetry.io/otel"

	"social-chat-service/internal/models"
	"social-chat-service/internal/repositories"
)

var (
	ErrNotParticipant = errors.New("not a conversation participant")
	ErrEmptyContent   = errors.New("message content is empty")
	ErrNotSender      = errors.New("only the sender may modify a message")
	ErrMessageDeleted = errors.New("message is deleted")
)

// Broadcaster delivers one event to every connection joined to a
// conversation's room.
type Broadcaster interface {
	ToRoom(conversationID int, event models.ServerEvent)
}

// Engine is the single path through which a message create/edit/delete
// becomes a persisted fact and a broadcast event. The realtime channel and
// the REST surface both call into it, so one write always yields one
// canonical event regardless of transport.
type Engine struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	users         repositories.UserRepository
	broadcaster   Broadcaster
}

// NewEngine constructs an Engine.
func NewEngine(
	conversations repositories.ConversationRepository,
	messages repositories.MessageRepository,
	users repositories.UserRepository,
	broadcaster Broadcaster,
) *Engine {
	return &Engine{
		conversations: conversations,
		messages:      messages,
		users:         users,
		broadcaster:   broadcaster,
	}
}

// Send validates, persists and broadcasts a new message.
//
// The sender must be a current participant, re-checked against storage on
// every call. Content must be non-empty after trimming. A reply-to id that
// does not resolve to a message in the same conversation degrades to a plain
// message instead of failing the send. Nothing is broadcast unless the
// persist succeeded.
func (e *Engine) Send(ctx context.Context, conversationID, senderID int, content string, replyToID *int) (models.Message, error) {
	ctx, span := otel.Tracer("social-chat-service/fanout").Start(ctx, "fanout.send")
	defer span.End()

	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, ErrEmptyContent
	}

	member, err := e.conversations.IsParticipant(ctx, conversationID, senderID)
	if err != nil {
		return models.Message{}, err
	}
	if !member {
		return models.Message{}, ErrNotParticipant
	}

	replyToID = e.resolveReplyTo(ctx, conversationID, replyToID)

	msg, err := e.messages.Create(ctx, conversationID, senderID, content, replyToID)
	if err != nil {
		return models.Message{}, err
	}

	e.attachSender(ctx, &msg)
	e.broadcaster.ToRoom(conversationID, models.MessageEvent(models.EventMessageNew, msg))
	return msg, nil
}

// Edit replaces a message's content. Only the original sender may edit, and
// a soft-deleted message cannot be edited. Broadcasts message:updated with
// the same message id so clients replace rather than append.
func (e *Engine) Edit(ctx context.Context, messageID, editorID int, content string) (models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, ErrEmptyContent
	}

	existing, err := e.messages.Get(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if existing.SenderID != editorID {
		return models.Message{}, ErrNotSender
	}
	if existing.Deleted() {
		return models.Message{}, ErrMessageDeleted
	}

	msg, err := e.messages.Edit(ctx, messageID, content)
	if err != nil {
		return models.Message{}, err
	}

	e.attachSender(ctx, &msg)
	e.broadcaster.ToRoom(msg.ConversationID, models.MessageEvent(models.EventMessageUpdated, msg))
	return msg, nil
}

// Delete soft-deletes a message: content cleared, deletion stamped, id and
// metadata retained so reply references stay valid. Sender only. Broadcasts
// message:deleted; clients render a tombstone.
func (e *Engine) Delete(ctx context.Context, messageID, deleterID int) (models.Message, error) {
	existing, err := e.messages.Get(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if existing.SenderID != deleterID {
		return models.Message{}, ErrNotSender
	}
	if existing.Deleted() {
		return models.Message{}, ErrMessageDeleted
	}

	msg, err := e.messages.SoftDelete(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}

	e.attachSender(ctx, &msg)
	e.broadcaster.ToRoom(msg.ConversationID, models.MessageEvent(models.EventMessageDeleted, msg))
	return msg, nil
}

// resolveReplyTo keeps the reference only when it points at a message in the
// same conversation. Stale or cross-conversation references are dropped, not
// surfaced as errors.
func (e *Engine) resolveReplyTo(ctx context.Context, conversationID int, replyToID *int) *int {
	if replyToID == nil {
		return nil
	}
	ref, err := e.messages.Get(ctx, *replyToID)
	if err != nil || ref.ConversationID != conversationID {
		return nil
	}
	return replyToID
}

func (e *Engine) attachSender(ctx context.Context, msg *models.Message) {
	preview, err := e.users.GetPreview(ctx, msg.SenderID)
	if err != nil {
		if !errors.Is(err, repositories.ErrUserNotFound) {
			log.Printf("sender preview lookup failed for user %d: %v", msg.SenderID, err)
		}
		return
	}
	msg.Sender = &preview
}
