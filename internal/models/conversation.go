package models

import "time"

// Conversation is a direct-message thread between exactly two users. The
// participant pair is stored sorted so the same two users always map to the
// same row.
type Conversation struct {
	ID        int       `db:"id" json:"id"`
	User1ID   int       `db:"user1_id" json:"user1Id"`
	User2ID   int       `db:"user2_id" json:"user2Id"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Participants returns both member ids.
func (c Conversation) Participants() []int {
	return []int{c.User1ID, c.User2ID}
}

// HasParticipant reports whether userID belongs to the conversation.
func (c Conversation) HasParticipant(userID int) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// OtherParticipant returns the member that is not userID.
func (c Conversation) OtherParticipant(userID int) int {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// ConversationSummary is the API-facing view of a conversation for one user,
// including the most recent message as a preview.
type ConversationSummary struct {
	ConversationID int       `json:"id"`
	FriendID       int       `json:"friendId"`
	CreatedAt      time.Time `json:"createdAt"`
	LastMessage    *Message  `json:"lastMessage,omitempty"`
}
