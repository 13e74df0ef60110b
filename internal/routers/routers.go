package routers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/moyeolab/moyeo/config"
	"github.com/moyeolab/moyeo/internal/handler"
	"github.com/moyeolab/moyeo/internal/service"
	"github.com/moyeolab/moyeo/internal/ws"
	"github.com/moyeolab/moyeo/middleware/auth"
	"github.com/moyeolab/moyeo/middleware/jwt"
	"github.com/moyeolab/moyeo/middleware/ratelimit"
)

// SetupRoutes 设置所有路由
func SetupRoutes(r *gin.Engine, cfg *config.Config,
	tokens *jwt.TokenManager,
	limiter ratelimit.Limiter,
	userHandler *handler.UserHandler,
	roomHandler *handler.RoomHandler,
	messageHandler *handler.MessageHandler,
	unreadHandler *handler.UnreadHandler,
	hub *ws.Hub,
	wsAuthorizer *ws.Authorizer,
	messageService service.IMessageService,
	logger *zap.Logger,
) {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(corsConfig))

	// WebSocket 路由 (握手时自行校验凭证，不走 auth 中间件)
	r.GET("/ws", ws.ServeWs(hub, wsAuthorizer, messageService, logger))

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	registerUserRoutes(r, tokens, userHandler)
	registerRoomRoutes(r, cfg, tokens, limiter, roomHandler, messageHandler, unreadHandler)
}

func registerUserRoutes(r *gin.Engine, tokens *jwt.TokenManager, userHandler *handler.UserHandler) {
	userGroup := r.Group("/api/v1/users")
	{
		userGroup.POST("/register", userHandler.Register) // 注册
		userGroup.POST("/login", userHandler.Login)       // 登录
		userGroup.POST("/oauth", userHandler.LoginOAuth)  // OAuth 登录
	}
	userGroup.Use(auth.Middleware(tokens))
	{
		userGroup.GET("/me", userHandler.GetProfile) // 获取当前用户信息
	}
}

func registerRoomRoutes(r *gin.Engine, cfg *config.Config,
	tokens *jwt.TokenManager,
	limiter ratelimit.Limiter,
	roomHandler *handler.RoomHandler,
	messageHandler *handler.MessageHandler,
	unreadHandler *handler.UnreadHandler,
) {
	window := time.Duration(cfg.RateLimit.WindowMs) * time.Millisecond

	roomGroup := r.Group("/api/v1/rooms")
	roomGroup.Use(auth.Middleware(tokens))
	roomGroup.Use(ratelimit.Middleware(limiter, cfg.RateLimit.Limit, window))
	{
		roomGroup.POST("", roomHandler.CreateRoom) // 创建房间
		roomGroup.POST("/join", roomHandler.JoinRoom)

		roomGroup.DELETE("/:room_id/members/me", roomHandler.LeaveRoom)
		roomGroup.POST("/:room_id/succeed", roomHandler.MarkSucceeded)
		roomGroup.POST("/:room_id/payment", roomHandler.ConfirmPayment)

		// 消息相关
		roomGroup.POST("/:room_id/messages", messageHandler.SendMessage)
		roomGroup.GET("/:room_id/messages", messageHandler.GetMessages)
		roomGroup.POST("/:room_id/read", unreadHandler.MarkRead)
	}

	unreadGroup := r.Group("/api/v1/unread")
	unreadGroup.Use(auth.Middleware(tokens))
	{
		unreadGroup.GET("", unreadHandler.GetUnreadCounts)
	}
}
