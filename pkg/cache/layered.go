package cache

import (
	"context"
	"time"
)

// LayeredConfig holds layered cache configuration.
type LayeredConfig struct {
	MemoryMaxSize int
	MemoryTTL     time.Duration // upper bound on how long L1 keeps an entry
}

// LayeredOption configures LayeredCache.
type LayeredOption func(*LayeredConfig)

func WithLayeredMemorySize(size int) LayeredOption {
	return func(c *LayeredConfig) { c.MemoryMaxSize = size }
}

// WithLayeredMemoryTTL caps L1 lifetime. Non-positive values keep the default.
func WithLayeredMemoryTTL(ttl time.Duration) LayeredOption {
	return func(c *LayeredConfig) {
		if ttl > 0 {
			c.MemoryTTL = ttl
		}
	}
}

// LayeredCache keeps a small in-process L1 in front of Redis. Writes go to
// Redis first; L1 is refilled from Redis hits.
type LayeredCache struct {
	l1    *MemoryCache
	l2    *RedisCache
	l1TTL time.Duration
}

func NewLayeredCache(l2 *RedisCache, opts ...LayeredOption) *LayeredCache {
	cfg := LayeredConfig{MemoryMaxSize: 1000, MemoryTTL: time.Minute}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &LayeredCache{
		l1:    NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize)),
		l2:    l2,
		l1TTL: cfg.MemoryTTL,
	}
}

func (c *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := c.l2.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	ttl := c.l1TTL
	if expiration > 0 && expiration < ttl {
		ttl = expiration
	}
	return c.l1.Set(ctx, key, value, ttl)
}

func (c *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.l1.Get(ctx, key, dest) == nil {
		return nil
	}
	var raw []byte
	if err := c.l2.Get(ctx, key, &raw); err != nil {
		return err
	}
	_ = c.l1.Set(ctx, key, raw, c.l1TTL)
	return decode(raw, dest)
}

func (c *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = c.l1.Delete(ctx, keys...)
	return c.l2.Delete(ctx, keys...)
}

func (c *LayeredCache) DeleteByPattern(ctx context.Context, pattern string) error {
	_ = c.l1.DeleteByPattern(ctx, pattern)
	return c.l2.DeleteByPattern(ctx, pattern)
}

func (c *LayeredCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	if ok, _ := c.l1.Exists(ctx, keys...); ok {
		return true, nil
	}
	return c.l2.Exists(ctx, keys...)
}

func (c *LayeredCache) Close() error {
	_ = c.l1.Close()
	return c.l2.Close()
}
