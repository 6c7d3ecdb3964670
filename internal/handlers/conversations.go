package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"social-chat-service/internal/fanout"
	"social-chat-service/internal/models"
	"social-chat-service/internal/repositories"
)

// ConversationHandler manages the conversation REST surface. Message writes
// go through the fan-out engine so the HTTP path and the realtime path share
// one persist-and-broadcast pipeline.
type ConversationHandler struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	users         repositories.UserRepository
	engine        *fanout.Engine
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(
	conversations repositories.ConversationRepository,
	messages repositories.MessageRepository,
	users repositories.UserRepository,
	engine *fanout.Engine,
) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		messages:      messages,
		users:         users,
		engine:        engine,
	}
}

type conversationResponse struct {
	ID           int                 `json:"id"`
	Participants []int               `json:"participants"`
	Friend       *models.UserPreview `json:"friend,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
	LastMessage  *models.Message     `json:"lastMessage,omitempty"`
}

// StartConversation creates or returns the conversation with another user.
// Re-requesting the same pair from either side returns the same conversation.
func (h *ConversationHandler) StartConversation(c *gin.Context) {
	var req struct {
		OtherUserID int `json:"otherUserId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	if userID == req.OtherUserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot start a conversation with yourself"})
		return
	}

	conv, created, err := h.conversations.CreateOrGet(c.Request.Context(), userID, req.OtherUserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create conversation"})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, conversationResponse{
		ID:           conv.ID,
		Participants: conv.Participants(),
		CreatedAt:    conv.CreatedAt,
	})
}

// ListConversations returns the caller's conversations with last-message
// previews, most recently active first.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	userID := c.GetInt("userID")

	summaries, err := h.conversations.ListForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}

	friendIDs := make([]int, 0, len(summaries))
	for _, s := range summaries {
		friendIDs = append(friendIDs, s.FriendID)
	}
	previews, err := h.users.BulkPreviews(c.Request.Context(), friendIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user info"})
		return
	}

	responses := make([]conversationResponse, 0, len(summaries))
	for _, s := range summaries {
		resp := conversationResponse{
			ID:           s.ConversationID,
			Participants: []int{userID, s.FriendID},
			CreatedAt:    s.CreatedAt,
			LastMessage:  s.LastMessage,
		}
		if preview, ok := previews[s.FriendID]; ok {
			friend := preview
			resp.Friend = &friend
		}
		responses = append(responses, resp)
	}

	c.JSON(http.StatusOK, gin.H{"conversations": responses})
}

// GetMessages returns the ordered message log of a conversation, tombstones
// included. Participant membership is re-checked on every call.
func (h *ConversationHandler) GetMessages(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	userID := c.GetInt("userID")
	member, err := h.conversations.IsParticipant(c.Request.Context(), conversationID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		return
	}

	msgs, err := h.messages.ListForConversation(c.Request.Context(), conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	senderIDs := make([]int, 0, len(msgs))
	seen := map[int]struct{}{}
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}
	previews, err := h.users.BulkPreviews(c.Request.Context(), senderIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load senders"})
		return
	}

	for i := range msgs {
		if preview, ok := previews[msgs[i].SenderID]; ok {
			sender := preview
			msgs[i].Sender = &sender
		}
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage is the HTTP twin of the realtime message:send event.
func (h *ConversationHandler) PostMessage(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	var req struct {
		Content   string `json:"content" binding:"required"`
		ReplyToID *int   `json:"replyToId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	msg, err := h.engine.Send(c.Request.Context(), conversationID, userID, req.Content, req.ReplyToID)
	if err != nil {
		writeEngineError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

func writeEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, fanout.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
	case errors.Is(err, fanout.ErrEmptyContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": "message content is empty"})
	case errors.Is(err, fanout.ErrNotSender):
		c.JSON(http.StatusForbidden, gin.H{"error": "only the sender may modify a message"})
	case errors.Is(err, fanout.ErrMessageDeleted):
		c.JSON(http.StatusConflict, gin.H{"error": "message is deleted"})
	case errors.Is(err, repositories.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
	case errors.Is(err, repositories.ErrConversationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
