package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/moyeolab/moyeo/internal/service"
)

type MessageHandler struct {
	messageService service.IMessageService
}

func NewMessageHandler(messageService service.IMessageService) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
	}
}

// SendMessage writes a message into a room. A repeated dedup key returns the
// original message instead of creating a duplicate.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req service.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, ok := authenticatedUserID(c)
	if !ok {
		return
	}

	msg, err := h.messageService.SaveMessage(c.Request.Context(), userID, c.Param("room_id"), &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// GetMessages returns one page of room history, newest first. Pagination is
// cursor-based: pass the next_cursor of the previous page as before.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return
	}

	pageSize := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		pageSize = n
	}

	var before *int64
	if raw := c.Query("before"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "before must be a message id"})
			return
		}
		before = &n
	}

	page, err := h.messageService.FindMessages(c.Request.Context(), userID, c.Param("room_id"), pageSize, before)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}
