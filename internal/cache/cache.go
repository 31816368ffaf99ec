// Package cache provides the search result cache. Deployments with Redis
// share one cache across replicas; without Redis an in-process expirable LRU
// serves the same interface.
package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long cached result pages stay valid.
const DefaultTTL = 300 * time.Second

// ResultCache stores serialized result pages. A cache miss is (nil, false,
// nil); cache failures are reported but callers treat them as misses.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Key builds the canonical cache key for one result page.
func Key(searchType, queryKey string, page, pageSize int) string {
	return fmt.Sprintf("search:%s:%s:p%d:s%d", searchType, queryKey, page, pageSize)
}

// RedisCache stores result pages in Redis with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ResultCache = (*RedisCache)(nil)

// NewRedis creates a Redis-backed cache from a redis URL
// (redis://host:port/db).
func NewRedis(url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: redis.NewClient(opts), ttl: ttl}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	return c.client.Set(ctx, key, value, c.ttl).Err()
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// MemoryCache is the single-process fallback.
type MemoryCache struct {
	lru *lru.LRU[string, []byte]
}

var _ ResultCache = (*MemoryCache)(nil)

// NewMemory creates an in-process cache holding up to size entries.
func NewMemory(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{lru: lru.NewLRU[string, []byte](size, nil, ttl)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, ok := c.lru.Get(key)
	return val, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte) error {
	c.lru.Add(key, value)
	return nil
}
