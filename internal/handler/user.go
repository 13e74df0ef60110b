package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moyeolab/moyeo/internal/model"
	"github.com/moyeolab/moyeo/internal/service"
)

type UserHandler struct {
	userService service.IUserService
}

func NewUserHandler(userService service.IUserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// profileResponse keeps credential material out of API responses.
type profileResponse struct {
	ID          string `json:"id"`
	Nickname    string `json:"nickname"`
	Email       string `json:"email"`
	AccountType string `json:"account_type"`
}

func renderProfile(u *model.User) profileResponse {
	return profileResponse{
		ID:          u.ID,
		Nickname:    u.Nickname,
		Email:       u.Email,
		AccountType: string(u.AccountType),
	}
}

// Register handles password-account signup
func (h *UserHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userService.Register(c.Request.Context(), &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, renderProfile(user))
}

// Login handles password-account login and returns a bearer token
func (h *UserHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, user, err := h.userService.Login(c.Request.Context(), &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  renderProfile(user),
	})
}

// LoginOAuth handles provider-asserted login, creating the account on first
// sight of a (provider, subject) pair.
func (h *UserHandler) LoginOAuth(c *gin.Context) {
	var req struct {
		Provider string `json:"provider" binding:"required"`
		Subject  string `json:"subject" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Nickname string `json:"nickname" binding:"required,min=2,max=30"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, user, err := h.userService.LoginOAuth(c.Request.Context(), req.Provider, req.Subject, req.Email, req.Nickname)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  renderProfile(user),
	})
}

// GetProfile returns the authenticated user's profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return
	}

	user, err := h.userService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, renderProfile(user))
}
