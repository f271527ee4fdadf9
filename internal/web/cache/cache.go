// Package cache holds the small key/value cache the catalog home page uses
// for its record counts.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache defines the interface for all cache backends
type Cache interface {
	// Get retrieves a value from the cache
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with a TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache
	Delete(ctx context.Context, key string) error

	// Clear removes all values from the cache
	Clear(ctx context.Context) error

	Close() error
}

// Config holds common configuration for cache backends
type Config struct {
	// DefaultTTL is used when Set is called with a zero TTL
	DefaultTTL time.Duration
	// Prefix is prepended to all cache keys
	Prefix string
}

// DefaultConfig returns a default cache configuration
func DefaultConfig() Config {
	return Config{
		DefaultTTL: time.Minute,
		Prefix:     "locallibrary:",
	}
}

// ErrCacheMiss is returned when a key is not found in the cache
type ErrCacheMiss struct {
	Key string
}

func (e ErrCacheMiss) Error() string {
	return "cache miss: " + e.Key
}

// IsCacheMiss checks if an error is a cache miss
func IsCacheMiss(err error) bool {
	var miss ErrCacheMiss
	return errors.As(err, &miss)
}

// Options selects and configures a backend for New
type Options struct {
	// Backend is "memory", "redis" or "none"
	Backend string
	// RedisURL is parsed with redis.ParseURL when Backend is "redis"
	RedisURL string
	Config   Config
}

// New builds the backend named by opts.Backend. The redis backend is pinged
// before it is returned.
func New(ctx context.Context, opts Options) (Cache, error) {
	switch opts.Backend {
	case "", "memory":
		return NewMemoryCache(opts.Config), nil
	case "none":
		return Nop{}, nil
	case "redis":
		redisOpts, err := redis.ParseURL(opts.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		client := redis.NewClient(redisOpts)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return NewRedisCache(client, opts.Config), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}

// Remember returns the JSON value cached under key, calling compute and
// caching its result on a miss. Backend errors fall through to compute so a
// broken cache never breaks the page.
func Remember[T any](ctx context.Context, c Cache, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var value T
	if data, err := c.Get(ctx, key); err == nil {
		if json.Unmarshal(data, &value) == nil {
			return value, nil
		}
	}

	value, err := compute(ctx)
	if err != nil {
		return value, err
	}
	if data, err := json.Marshal(value); err == nil {
		_ = c.Set(ctx, key, data, ttl)
	}
	return value, nil
}

// Nop never stores anything
type Nop struct{}

func (Nop) Get(_ context.Context, key string) ([]byte, error) { return nil, ErrCacheMiss{Key: key} }
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Nop) Delete(context.Context, string) error { return nil }
func (Nop) Clear(context.Context) error { return nil }
func (Nop) Close() error { return nil }
