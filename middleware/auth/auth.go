package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/moyeolab/moyeo/middleware/jwt"
)

// Context keys populated for downstream handlers.
const (
	CtxUserID   = "user_id"
	CtxNickname = "nickname"
	CtxRole     = "role"
)

// Middleware validates the bearer token and stores the authenticated
// identity in the gin context. Requests without a valid token are rejected.
func Middleware(tokens *jwt.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		claims, err := tokens.ParseToken(parts[1])
		if err != nil {
			status := http.StatusUnauthorized
			message := "invalid token"
			if errors.Is(err, jwt.ErrExpiredToken) {
				message = "token has expired"
			}
			c.AbortWithStatusJSON(status, gin.H{"error": message})
			return
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxNickname, claims.Nickname)
		c.Set(CtxRole, claims.Role)
		c.Next()
	}
}
