package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"social-chat-service/internal/fanout"
)

// MessageHandler exposes edit and soft-delete over REST. Both go through the
// fan-out engine, which enforces authorship and broadcasts the result.
type MessageHandler struct {
	engine *fanout.Engine
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(engine *fanout.Engine) *MessageHandler {
	return &MessageHandler{engine: engine}
}

// EditMessage replaces a message's content (sender only).
func (h *MessageHandler) EditMessage(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	msg, err := h.engine.Edit(c.Request.Context(), messageID, userID, req.Content)
	if err != nil {
		writeEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, msg)
}

// DeleteMessage soft-deletes a message (sender only) and returns the
// tombstone.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	userID := c.GetInt("userID")
	msg, err := h.engine.Delete(c.Request.Context(), messageID, userID)
	if err != nil {
		writeEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, msg)
}
