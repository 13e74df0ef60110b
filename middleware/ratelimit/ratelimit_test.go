package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLimiter(t *testing.T, failOpen bool) (*FixedWindowLimiter, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewFixedWindowLimiter(client, zap.NewNop(), failOpen), mr, client
}

func TestAllow_WithinLimit(t *testing.T) {
	limiter, _, _ := newLimiter(t, false)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		allowed, err := limiter.Allow(ctx, "u1", 5, time.Second)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}
}

func TestAllow_OverLimit(t *testing.T) {
	limiter, _, _ := newLimiter(t, false)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := limiter.Allow(ctx, "u1", 3, time.Second)
		require.NoError(t, err)
	}

	allowed, err := limiter.Allow(ctx, "u1", 3, time.Second)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	limiter, _, _ := newLimiter(t, false)
	ctx := context.Background()

	_, err := limiter.Allow(ctx, "u1", 1, time.Second)
	require.NoError(t, err)

	allowed, err := limiter.Allow(ctx, "u2", 1, time.Second)
	require.NoError(t, err)
	assert.True(t, allowed, "another caller's traffic must not count against u2")
}

func TestAllow_WindowExpires(t *testing.T) {
	limiter, mr, _ := newLimiter(t, false)
	ctx := context.Background()

	_, err := limiter.Allow(ctx, "u1", 1, time.Second)
	require.NoError(t, err)

	allowed, err := limiter.Allow(ctx, "u1", 1, time.Second)
	require.NoError(t, err)
	assert.False(t, allowed)

	// Advance the fake clock past the window.
	mr.FastForward(2 * time.Second)

	allowed, err = limiter.Allow(ctx, "u1", 1, time.Second)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestReset(t *testing.T) {
	limiter, _, _ := newLimiter(t, false)
	ctx := context.Background()

	_, err := limiter.Allow(ctx, "u1", 1, time.Second)
	require.NoError(t, err)
	require.NoError(t, limiter.Reset(ctx, "u1"))

	allowed, err := limiter.Allow(ctx, "u1", 1, time.Second)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestAllow_FailOpen(t *testing.T) {
	limiter, mr, _ := newLimiter(t, true)
	mr.Close()

	allowed, err := limiter.Allow(context.Background(), "u1", 1, time.Second)
	require.NoError(t, err)
	assert.True(t, allowed, "redis outage with failOpen must admit traffic")
}

func TestAllow_FailClosed(t *testing.T) {
	limiter, mr, _ := newLimiter(t, false)
	mr.Close()

	_, err := limiter.Allow(context.Background(), "u1", 1, time.Second)
	assert.Error(t, err)
}
