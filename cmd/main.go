package main

import (
	"context"
	"log"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/moyeolab/moyeo/config"
	"github.com/moyeolab/moyeo/internal/event"
	"github.com/moyeolab/moyeo/internal/handler"
	"github.com/moyeolab/moyeo/internal/repository"
	"github.com/moyeolab/moyeo/internal/routers"
	"github.com/moyeolab/moyeo/internal/service"
	"github.com/moyeolab/moyeo/internal/storage"
	"github.com/moyeolab/moyeo/internal/worker"
	"github.com/moyeolab/moyeo/internal/ws"
	"github.com/moyeolab/moyeo/middleware/jwt"
	logger "github.com/moyeolab/moyeo/middleware/log"
	"github.com/moyeolab/moyeo/middleware/ratelimit"
	"github.com/moyeolab/moyeo/pkg/mq"
	"github.com/moyeolab/moyeo/utils/invitecode"
)

func main() {
	cfg, err := config.LoadConfig("./config.toml")
	if err != nil {
		log.Fatalf("配置初始化失败: %v", err)
	}

	appLogger, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("日志初始化失败: %v", err)
	}
	defer appLogger.Close()
	zapLogger := appLogger.Logger

	// 初始化 PostgreSQL
	dsn := storage.BuildDSN(cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.DBName)
	postgres, err := storage.InitPostgres(dsn, cfg.Postgres.MaxIdleConns, cfg.Postgres.MaxOpenConns)
	if err != nil {
		zapLogger.Fatal("postgres 初始化失败", zap.Error(err))
	}

	// 初始化 Redis
	redisClient, err := storage.InitRedis(&cfg.Redis)
	if err != nil {
		zapLogger.Fatal("redis 初始化失败", zap.Error(err))
	}

	// 初始化仓储层
	userRepo := repository.NewUserRepository(postgres)
	roomRepo := repository.NewRoomRepository(postgres)
	membershipRepo := repository.NewMembershipRepository(postgres)
	messageRepo := repository.NewMessageRepository(postgres)
	fileRepo := repository.NewFileRepository(postgres)

	// 初始化 Kafka Producer
	var producer event.Producer
	kafkaProducer, err := mq.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, zapLogger)
	if err != nil {
		zapLogger.Warn("kafka 生产者初始化失败，徽章推送将以降级模式内联执行", zap.Error(err))
	} else {
		producer = kafkaProducer
		defer kafkaProducer.Close()
	}

	// 事件管道：事务提交后统一经由 dispatcher 扇出
	dispatcher := event.NewFanoutDispatcher(redisClient, producer, nil, zapLogger)
	events := event.NewPublisher(dispatcher)

	// 初始化邀请码生成器
	codes, err := invitecode.New(cfg.Invite.Length, cfg.Invite.Alphabet)
	if err != nil {
		zapLogger.Fatal("邀请码生成器初始化失败", zap.Error(err))
	}

	tokens := jwt.NewTokenManager(cfg.JWT.Secret, cfg.JWT.ExpireHours, cfg.JWT.RefreshHours)

	// 初始化服务层
	txManager := service.GormTxManager{DB: postgres}
	userService := service.NewUserService(userRepo, tokens)
	roomService := service.NewRoomService(txManager, roomRepo, membershipRepo, userRepo, codes, cfg.Invite.MaxAttempts, events)
	messageService := service.NewMessageService(txManager, messageRepo, membershipRepo, fileRepo, userRepo, events, cfg.Chat)
	unreadService := service.NewUnreadService(membershipRepo, messageRepo, roomRepo, events, redisClient, zapLogger)
	dispatcher.SetBadgeNotifier(unreadService)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 初始化徽章重算 Worker (如果 Kafka 可用)
	if producer != nil {
		badgeWorker, err := worker.NewBadgeWorker(&cfg.Kafka, unreadService, zapLogger)
		if err != nil {
			zapLogger.Warn("徽章 worker 初始化失败", zap.Error(err))
		} else {
			if err := badgeWorker.Start(ctx); err != nil {
				zapLogger.Warn("徽章 worker 启动失败", zap.Error(err))
			} else {
				defer badgeWorker.Stop()
			}
		}
	}

	// 初始化 WebSocket Hub
	hub := ws.NewHub(redisClient, zapLogger)
	go hub.Run(ctx)
	wsAuthorizer := ws.NewAuthorizer(tokens, roomService)

	// 初始化处理器
	userHandler := handler.NewUserHandler(userService)
	roomHandler := handler.NewRoomHandler(roomService)
	messageHandler := handler.NewMessageHandler(messageService)
	unreadHandler := handler.NewUnreadHandler(unreadService)

	limiter := ratelimit.NewFixedWindowLimiter(redisClient, zapLogger, true)

	// 配置并创建 Gin 引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.Default()

	routers.SetupRoutes(r, cfg,
		tokens,
		limiter,
		userHandler,
		roomHandler,
		messageHandler,
		unreadHandler,
		hub,
		wsAuthorizer,
		messageService,
		zapLogger,
	)

	zapLogger.Info("正在启动服务器", zap.Int("port", cfg.Server.Port))
	if err := r.Run(":" + strconv.Itoa(cfg.Server.Port)); err != nil {
		zapLogger.Fatal("启动服务器失败", zap.Error(err))
	}
}
