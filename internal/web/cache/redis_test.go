package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisCache(client, Config{DefaultTTL: time.Minute, Prefix: "test:"})
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestRedisCache_SetGet(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "count", []byte("7"), 0))
	assert.True(t, mr.Exists("test:count"))
	assert.Equal(t, time.Minute, mr.TTL("test:count"))

	got, err := c.Get(ctx, "count")
	require.NoError(t, err)
	assert.Equal(t, []byte("7"), got)

	_, err = c.Get(ctx, "missing")
	assert.True(t, IsCacheMiss(err))
}

func TestRedisCache_Expiry(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("a"), time.Second))
	require.NoError(t, c.Set(ctx, "forever", []byte("b"), -1))
	assert.Zero(t, mr.TTL("test:forever"))

	mr.FastForward(2 * time.Second)
	_, err := c.Get(ctx, "short")
	assert.True(t, IsCacheMiss(err))
	_, err = c.Get(ctx, "forever")
	assert.NoError(t, err)
}

func TestRedisCache_ClearKeepsOtherPrefixes(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("ratelimit:ip:1", "x"))
	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))

	require.NoError(t, c.Delete(ctx, "a"))
	assert.False(t, mr.Exists("test:a"))

	require.NoError(t, c.Clear(ctx))
	assert.False(t, mr.Exists("test:b"))
	assert.True(t, mr.Exists("ratelimit:ip:1"))
}

func TestRedisCache_ServerDown(t *testing.T) {
	c, mr := setupTestRedis(t)
	mr.Close()

	_, err := c.Get(context.Background(), "a")
	require.Error(t, err)
	assert.False(t, IsCacheMiss(err))

	calls := 0
	v, err := Remember(context.Background(), Cache(c), "a", 0, func(context.Context) (int, error) {
		calls++
		return 5, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, v)
	assert.Equal(t, 1, calls)
}

func TestNew_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := New(context.Background(), Options{
		Backend:  "redis",
		RedisURL: "redis://" + mr.Addr() + "/0",
		Config:   DefaultConfig(),
	})
	require.NoError(t, err)
	defer c.Close()
	assert.IsType(t, &RedisCache{}, c)

	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), 0))
	assert.True(t, mr.Exists("locallibrary:k"))
}
