package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter defines the interface for rate limiting operations
type Limiter interface {
	// Allow checks if a request should be allowed based on rate limits
	// Returns true if allowed, false if rate limit exceeded
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// Reset resets the rate limit counter for a key
	Reset(ctx context.Context, key string) error
}

// FixedWindowLimiter implements rate limiting with a fixed window counter in
// Redis. The INCR+EXPIRE pair keeps the counter shared across instances.
type FixedWindowLimiter struct {
	redisClient *redis.Client
	logger      *zap.Logger
	failOpen    bool // allow requests when Redis is unavailable
}

// NewFixedWindowLimiter creates a rate limiter backed by Redis. With
// failOpen set, Redis outages degrade to allowing traffic instead of
// refusing it.
func NewFixedWindowLimiter(redisClient *redis.Client, logger *zap.Logger, failOpen bool) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		redisClient: redisClient,
		logger:      logger,
		failOpen:    failOpen,
	}
}

// Allow checks whether a request under key fits into the current window.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	redisKey := fmt.Sprintf("ratelimit:%s", key)

	count, err := l.redisClient.Incr(ctx, redisKey).Result()
	if err != nil {
		if l.failOpen {
			l.logger.Warn("rate limiter redis unavailable, failing open",
				zap.String("key", key),
				zap.Error(err))
			return true, nil
		}
		return false, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	// First hit in this window starts the clock.
	if count == 1 {
		if err := l.redisClient.Expire(ctx, redisKey, window).Err(); err != nil {
			l.logger.Warn("failed to set rate limit expiry",
				zap.String("key", key),
				zap.Error(err))
		}
	}

	return count <= int64(limit), nil
}

// Reset clears the counter for a key.
func (l *FixedWindowLimiter) Reset(ctx context.Context, key string) error {
	return l.redisClient.Del(ctx, fmt.Sprintf("ratelimit:%s", key)).Err()
}
