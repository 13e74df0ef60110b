package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moyeolab/moyeo/internal/service"
)

type UnreadHandler struct {
	unreadService service.IUnreadService
}

func NewUnreadHandler(unreadService service.IUnreadService) *UnreadHandler {
	return &UnreadHandler{
		unreadService: unreadService,
	}
}

// MarkRead advances the caller's read pointer in a room. The pointer only
// moves forward; a stale or duplicate acknowledgement is a no-op that still
// returns the current unread summary.
func (h *UnreadHandler) MarkRead(c *gin.Context) {
	var req struct {
		LastReadMessageID *int64 `json:"last_read_message_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, ok := authenticatedUserID(c)
	if !ok {
		return
	}

	summary, err := h.unreadService.MarkRead(c.Request.Context(), userID, c.Param("room_id"), req.LastReadMessageID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetUnreadCounts returns the unread summary for every room the caller
// belongs to, for the room-list badge view.
func (h *UnreadHandler) GetUnreadCounts(c *gin.Context) {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return
	}

	summaries, err := h.unreadService.GetUnreadCounts(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, summaries)
}
