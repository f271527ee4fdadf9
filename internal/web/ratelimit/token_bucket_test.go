package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucket_ExhaustsPerKey(t *testing.T) {
	tb := NewTokenBucket(TokenBucketConfig{Capacity: 3, Period: time.Minute})
	defer tb.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		info, err := tb.Allow(ctx, "ip:10.0.0.1")
		require.NoError(t, err)
		assert.True(t, info.Allowed)
		assert.Equal(t, 2-i, info.Remaining)
	}

	info, err := tb.Allow(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.False(t, info.Allowed)
	assert.True(t, info.ResetAt.After(time.Now()))

	info, err = tb.Allow(ctx, "ip:10.0.0.2")
	require.NoError(t, err)
	assert.True(t, info.Allowed, "other keys are independent")
}

func TestTokenBucket_Refill(t *testing.T) {
	tb := NewTokenBucket(TokenBucketConfig{Capacity: 2, Period: time.Minute})
	defer tb.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tb.now = func() time.Time { return now }

	ctx := context.Background()
	_, _ = tb.Allow(ctx, "k")
	_, _ = tb.Allow(ctx, "k")
	info, _ := tb.Allow(ctx, "k")
	require.False(t, info.Allowed)

	// One token comes back every 30 seconds
	now = now.Add(31 * time.Second)
	info, err := tb.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, info.Allowed)

	info, _ = tb.Allow(ctx, "k")
	assert.False(t, info.Allowed)
}

func TestTokenBucket_Concurrent(t *testing.T) {
	tb := NewTokenBucket(TokenBucketConfig{Capacity: 50, Period: time.Hour})
	defer tb.Close()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 80; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			info, err := tb.Allow(context.Background(), "k")
			if err == nil && info.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}

func TestTokenBucket_DropIdle(t *testing.T) {
	tb := NewTokenBucket(TokenBucketConfig{Capacity: 1, Period: time.Second})
	defer tb.Close()

	now := time.Now()
	tb.now = func() time.Time { return now }
	_, _ = tb.Allow(context.Background(), "k")

	now = now.Add(2 * time.Second)
	tb.dropIdle()
	assert.Empty(t, tb.buckets)

	assert.NoError(t, tb.Close())
	assert.NoError(t, tb.Close(), "close is idempotent")
}

func TestDecision_RetryAfter(t *testing.T) {
	now := time.Now()
	assert.Equal(t, time.Second, (&Decision{ResetAt: now}).RetryAfter(now))
	assert.Equal(t, time.Second, (&Decision{ResetAt: now.Add(-time.Minute)}).RetryAfter(now))
	assert.Equal(t, 3*time.Second, (&Decision{ResetAt: now.Add(2600 * time.Millisecond)}).RetryAfter(now))
}
