package models

import "time"

// Message is a persisted chat message. Deletion is soft: content is cleared
// and DeletedAt stamped while id, sender and timestamps are retained, so
// replies referencing the message stay resolvable.
type Message struct {
	ID             int          `db:"id" json:"id"`
	ConversationID int          `db:"conversation_id" json:"conversationId"`
	SenderID       int          `db:"sender_id" json:"senderId"`
	Content        string       `db:"content" json:"content"`
	ReplyToID      *int         `db:"reply_to_id" json:"replyToId,omitempty"`
	CreatedAt      time.Time    `db:"created_at" json:"createdAt"`
	EditedAt       *time.Time   `db:"edited_at" json:"editedAt,omitempty"`
	DeletedAt      *time.Time   `db:"deleted_at" json:"deletedAt,omitempty"`
	Sender         *UserPreview `db:"-" json:"sender,omitempty"`
}

// Deleted reports whether the message has been soft-deleted.
func (m Message) Deleted() bool {
	return m.DeletedAt != nil
}

// UserPreview is the sender info embedded in message payloads. Profiles are
// owned by the account service; only the preview columns live here.
type UserPreview struct {
	ID          int    `db:"user_id" json:"id"`
	Username    string `db:"username" json:"username"`
	DisplayName string `db:"display_name" json:"displayName"`
	AvatarURL   string `db:"avatar_url" json:"avatarUrl,omitempty"`
}
