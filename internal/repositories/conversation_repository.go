package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"social-chat-service/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	CreateOrGet(ctx context.Context, userID, otherUserID int) (models.Conversation, bool, error)
	Get(ctx context.Context, conversationID int) (models.Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID int) (bool, error)
	ListForUser(ctx context.Context, userID int) ([]models.ConversationSummary, error)
}

// ConversationRepo is the sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// CreateOrGet returns the conversation between the two users, creating it on
// first contact. The pair is stored sorted so re-requesting in either order
// always yields the same row. The second return value reports whether a new
// conversation was created.
func (r *ConversationRepo) CreateOrGet(ctx context.Context, userID, otherUserID int) (models.Conversation, bool, error) {
	if userID == otherUserID {
		return models.Conversation{}, false, errors.New("cannot create conversation with self")
	}
	pair := []int{userID, otherUserID}
	sort.Ints(pair)

	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv,
		`SELECT id, user1_id, user2_id, created_at FROM conversations WHERE user1_id=$1 AND user2_id=$2`,
		pair[0], pair[1])
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, false, err
	}

	err = r.db.QueryRowxContext(ctx,
		`INSERT INTO conversations (user1_id, user2_id) VALUES ($1, $2)
         ON CONFLICT (user1_id, user2_id) DO UPDATE SET user1_id = EXCLUDED.user1_id
         RETURNING id, user1_id, user2_id, created_at`,
		pair[0], pair[1]).
		Scan(&conv.ID, &conv.User1ID, &conv.User2ID, &conv.CreatedAt)
	if err != nil {
		return models.Conversation{}, false, err
	}
	return conv, true, nil
}

// Get fetches a conversation by id.
func (r *ConversationRepo) Get(ctx context.Context, conversationID int) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv,
		`SELECT id, user1_id, user2_id, created_at FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// IsParticipant checks whether a user belongs to the conversation. Membership
// is queried fresh on every call; it is never cached.
func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationID, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM conversations WHERE id=$1 AND (user1_id=$2 OR user2_id=$2))`,
		conversationID, userID)
	return exists, err
}

type conversationRow struct {
	ID        int       `db:"id"`
	User1ID   int       `db:"user1_id"`
	User2ID   int       `db:"user2_id"`
	CreatedAt time.Time `db:"created_at"`

	LastID        sql.NullInt64  `db:"last_id"`
	LastSenderID  sql.NullInt64  `db:"last_sender_id"`
	LastContent   sql.NullString `db:"last_content"`
	LastReplyToID sql.NullInt64  `db:"last_reply_to_id"`
	LastCreatedAt sql.NullTime   `db:"last_created_at"`
	LastEditedAt  sql.NullTime   `db:"last_edited_at"`
	LastDeletedAt sql.NullTime   `db:"last_deleted_at"`
}

// ListForUser returns the user's conversations with the latest message as a
// preview, most recently active first.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID int) ([]models.ConversationSummary, error) {
	query := `SELECT c.id, c.user1_id, c.user2_id, c.created_at,
            m.id AS last_id, m.sender_id AS last_sender_id, m.content AS last_content,
            m.reply_to_id AS last_reply_to_id, m.created_at AS last_created_at,
            m.edited_at AS last_edited_at, m.deleted_at AS last_deleted_at
        FROM conversations c
        LEFT JOIN LATERAL (
            SELECT id, sender_id, content, reply_to_id, created_at, edited_at, deleted_at
            FROM messages WHERE conversation_id = c.id
            ORDER BY created_at DESC, id DESC LIMIT 1
        ) m ON TRUE
        WHERE c.user1_id=$1 OR c.user2_id=$1
        ORDER BY COALESCE(m.created_at, c.created_at) DESC`

	rows, err := r.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.ConversationSummary
	for rows.Next() {
		var row conversationRow
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}

		friendID := row.User1ID
		if friendID == userID {
			friendID = row.User2ID
		}

		summary := models.ConversationSummary{
			ConversationID: row.ID,
			FriendID:       friendID,
			CreatedAt:      row.CreatedAt,
		}
		if row.LastID.Valid {
			summary.LastMessage = lastMessageFromRow(row)
		}
		result = append(result, summary)
	}
	return result, rows.Err()
}

func lastMessageFromRow(row conversationRow) *models.Message {
	msg := &models.Message{
		ID:             int(row.LastID.Int64),
		ConversationID: row.ID,
		SenderID:       int(row.LastSenderID.Int64),
		Content:        row.LastContent.String,
		CreatedAt:      row.LastCreatedAt.Time,
	}
	if row.LastReplyToID.Valid {
		replyTo := int(row.LastReplyToID.Int64)
		msg.ReplyToID = &replyTo
	}
	if row.LastEditedAt.Valid {
		editedAt := row.LastEditedAt.Time
		msg.EditedAt = &editedAt
	}
	if row.LastDeletedAt.Valid {
		deletedAt := row.LastDeletedAt.Time
		msg.DeletedAt = &deletedAt
	}
	return msg
}
