package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestNewRedisRateLimiter_InvalidConfig(t *testing.T) {
	tests := []struct {
		name        string
		config      RedisRateLimiterConfig
		expectedErr string
	}{
		{"nil client", RedisRateLimiterConfig{Limit: 5, Window: time.Minute}, "redis client is required"},
		{"zero limit", RedisRateLimiterConfig{Client: &redis.Client{}, Window: time.Minute}, "limit must be greater than 0"},
		{"zero window", RedisRateLimiterConfig{Client: &redis.Client{}, Limit: 5}, "window must be greater than 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRedisRateLimiter(tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedErr)
		})
	}
}

func TestRedisRateLimiter_Allow(t *testing.T) {
	client, mr := setupTestRedis(t)
	limiter, err := NewRedisRateLimiter(RedisRateLimiterConfig{
		Client: client,
		Limit:  3,
		Window: time.Minute,
		Prefix: "login:",
	})
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		info, err := limiter.Allow(ctx, "ip:10.0.0.1")
		require.NoError(t, err)
		assert.True(t, info.Allowed)
		assert.Equal(t, 2-i, info.Remaining)
	}

	info, err := limiter.Allow(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.False(t, info.Allowed)
	assert.Equal(t, 0, info.Remaining)
	assert.True(t, info.ResetAt.After(time.Now()))

	assert.True(t, mr.Exists("login:ip:10.0.0.1"))

	require.NoError(t, limiter.Reset(ctx, "ip:10.0.0.1"))
	info, err = limiter.Allow(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.True(t, info.Allowed)
}

func TestRedisRateLimiter_ConnectionError(t *testing.T) {
	client, mr := setupTestRedis(t)
	limiter, err := NewRedisRateLimiter(RedisRateLimiterConfig{Client: client, Limit: 1, Window: time.Second})
	require.NoError(t, err)

	mr.Close()
	_, err = limiter.Allow(context.Background(), "k")
	assert.Error(t, err)
}
