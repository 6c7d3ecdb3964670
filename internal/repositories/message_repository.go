package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"social-chat-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

const messageColumns = `id, conversation_id, sender_id, content, reply_to_id, created_at, edited_at, deleted_at`

// MessageRepository abstracts message persistence. Ids are assigned by the
// store at creation; creation order within one conversation is insertion
// order.
type MessageRepository interface {
	Create(ctx context.Context, conversationID, senderID int, content string, replyToID *int) (models.Message, error)
	Get(ctx context.Context, messageID int) (models.Message, error)
	ListForConversation(ctx context.Context, conversationID int) ([]models.Message, error)
	Edit(ctx context.Context, messageID int, content string) (models.Message, error)
	SoftDelete(ctx context.Context, messageID int) (models.Message, error)
}

// MessageRepo is the sqlx implementation of MessageRepository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create stores a new message and returns the persisted row.
func (r *MessageRepo) Create(ctx context.Context, conversationID, senderID int, content string, replyToID *int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`INSERT INTO messages (conversation_id, sender_id, content, reply_to_id)
         VALUES ($1, $2, $3, $4) RETURNING `+messageColumns,
		conversationID, senderID, content, replyToID)
	return msg, err
}

// Get retrieves a single message.
func (r *MessageRepo) Get(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListForConversation returns all messages of a conversation in creation
// order, soft-deleted tombstones included.
func (r *MessageRepo) ListForConversation(ctx context.Context, conversationID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages WHERE conversation_id=$1 ORDER BY created_at ASC, id ASC`,
		conversationID)
	return msgs, err
}

// Edit replaces the content of a live message and stamps edited_at.
func (r *MessageRepo) Edit(ctx context.Context, messageID int, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`UPDATE messages SET content=$2, edited_at=NOW()
         WHERE id=$1 AND deleted_at IS NULL RETURNING `+messageColumns,
		messageID, content)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// SoftDelete clears the content and stamps deleted_at, keeping the row so
// reply references remain valid. Returns the tombstone.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`UPDATE messages SET content='', deleted_at=NOW()
         WHERE id=$1 AND deleted_at IS NULL RETURNING `+messageColumns,
		messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}
