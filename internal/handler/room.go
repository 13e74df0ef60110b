package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moyeolab/moyeo/internal/model"
	"github.com/moyeolab/moyeo/internal/service"
)

type RoomHandler struct {
	roomService service.IRoomService
}

func NewRoomHandler(roomService service.IRoomService) *RoomHandler {
	return &RoomHandler{
		roomService: roomService,
	}
}

type roomResponse struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	InviteCode        string `json:"invite_code,omitempty"`
	Type              string `json:"type"`
	TargetMemberCount int    `json:"target_member_count"`
	Succeeded         bool   `json:"succeeded"`
}

func renderRoom(r *model.Room) roomResponse {
	resp := roomResponse{
		ID:                r.ID,
		Title:             r.Title,
		Type:              string(r.Type),
		TargetMemberCount: r.TargetMemberCount,
		Succeeded:         r.Succeeded,
	}
	if r.InviteCode != nil {
		resp.InviteCode = *r.InviteCode
	}
	return resp
}

// CreateRoom handles room creation; the creator becomes the leader.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req service.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, ok := authenticatedUserID(c)
	if !ok {
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), userID, &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, renderRoom(room))
}

// JoinRoom handles joining a room via invite code
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	var req struct {
		InviteCode string `json:"invite_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, ok := authenticatedUserID(c)
	if !ok {
		return
	}

	room, err := h.roomService.JoinRoom(c.Request.Context(), userID, req.InviteCode)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, renderRoom(room))
}

// LeaveRoom removes the caller from the room
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return
	}

	if err := h.roomService.LeaveRoom(c.Request.Context(), userID, c.Param("room_id")); err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "left room"})
}

// MarkSucceeded marks the room as having reached its goal. Leader only.
func (h *RoomHandler) MarkSucceeded(c *gin.Context) {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return
	}

	if err := h.roomService.MarkSucceeded(c.Request.Context(), userID, c.Param("room_id")); err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "room marked as succeeded"})
}

// ConfirmPayment records the caller's payment for the room
func (h *RoomHandler) ConfirmPayment(c *gin.Context) {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return
	}

	if err := h.roomService.ConfirmPayment(c.Request.Context(), userID, c.Param("room_id")); err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "payment confirmed"})
}
