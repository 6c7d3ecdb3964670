package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"social-chat-service/internal/repositories"
)

// PresenceHandler exposes presence snapshots so clients can rebuild cached
// state after a gap.
type PresenceHandler struct {
	presence repositories.PresenceRepository
}

// NewPresenceHandler builds a PresenceHandler.
func NewPresenceHandler(presence repositories.PresenceRepository) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

// GetPresence returns a user's presence state and last-seen stamp.
func (h *PresenceHandler) GetPresence(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	presence, err := h.presence.Get(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repositories.ErrPresenceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "presence not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load presence"})
		return
	}

	c.JSON(http.StatusOK, presence)
}
