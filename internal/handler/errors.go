package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moyeolab/moyeo/internal/service"
)

// writeServiceError maps service sentinel errors onto HTTP statuses. The
// mapping follows the error taxonomy: lookup failures are 404, permission
// failures 403, validation failures 400, state conflicts 409, credential
// failures 401 and invite exhaustion 503.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrRoomNotFound),
		errors.Is(err, service.ErrMembershipNotFound),
		errors.Is(err, service.ErrMessageNotFound),
		errors.Is(err, service.ErrInvalidInviteCode):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, service.ErrNotPaidMember),
		errors.Is(err, service.ErrNotLeader):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})

	case errors.Is(err, service.ErrInvalidMessage),
		errors.Is(err, service.ErrInvalidAttachment),
		errors.Is(err, service.ErrAttachmentBlocked),
		errors.Is(err, service.ErrAttachmentNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})

	case errors.Is(err, service.ErrEmailAlreadyTaken),
		errors.Is(err, service.ErrNicknameAlreadyTaken),
		errors.Is(err, service.ErrAlreadyMember),
		errors.Is(err, service.ErrRoomFull):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.Is(err, service.ErrInviteExhausted):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// authenticatedUserID pulls the user id stored by the auth middleware.
func authenticatedUserID(c *gin.Context) (string, bool) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return userID, true
}
