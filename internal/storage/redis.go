package storage

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/moyeolab/moyeo/config"
)

// InitRedis 初始化 Redis 连接
func InitRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// RoomChannel is the redis pub/sub channel carrying room-scoped realtime
// events. The channel naming is part of the realtime contract: clients
// subscribe to the same names over the websocket gate.
func RoomChannel(roomID string) string {
	return "room:" + roomID
}

// UserChannel is the private per-user channel for unread-badge pushes and
// error notifications.
func UserChannel(userID string) string {
	return "user:" + userID
}
