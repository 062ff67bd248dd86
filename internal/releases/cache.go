package releases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache keeps the last good release for a while
type Cache interface {
	Get(ctx context.Context) (*Release, bool, error)
	Set(ctx context.Context, r *Release, ttl time.Duration) error
}

// MemoryCache holds one release in process
type MemoryCache struct {
	mu      sync.RWMutex
	release *Release
	expires time.Time
	now     func() time.Time
}

// NewMemoryCache creates an empty in-process cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context) (*Release, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.release == nil || !c.now().Before(c.expires) {
		return nil, false, nil
	}
	return c.release, true, nil
}

func (c *MemoryCache) Set(_ context.Context, r *Release, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.release = r
	c.expires = c.now().Add(ttl)
	return nil
}

// RedisCache shares the cached release between server instances
type RedisCache struct {
	client *redis.Client
	key    string
}

const defaultRedisKey = "zoro-web:releases:latest"

// NewRedisCache creates a cache on the Redis server at addr
func NewRedisCache(addr string) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		key:    defaultRedisKey,
	}
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client, key string) *RedisCache {
	if key == "" {
		key = defaultRedisKey
	}
	return &RedisCache{client: client, key: key}
}

func (c *RedisCache) Get(ctx context.Context) (*Release, bool, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached release: %w", err)
	}

	var r Release
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached release: %w", err)
	}
	return &r, true, nil
}

func (c *RedisCache) Set(ctx context.Context, r *Release, ttl time.Duration) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode release: %w", err)
	}
	if err := c.client.Set(ctx, c.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache release: %w", err)
	}
	return nil
}

// Ping checks the Redis connection
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
