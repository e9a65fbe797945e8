// README: Cache tiers: go-cache for the local process, Redis for the shared tier.
package aicache

import (
	"context"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Tier is one cache level. Implementations may fail; callers treat any error as a miss.
type Tier interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// LocalTier is an in-process cache.
type LocalTier struct {
	cache *gocache.Cache
}

// NewLocalTier creates a local tier whose expired entries are purged every cleanupInterval.
func NewLocalTier(defaultTTL, cleanupInterval time.Duration) *LocalTier {
	return &LocalTier{cache: gocache.New(defaultTTL, cleanupInterval)}
}

func (t *LocalTier) Name() string { return "local" }

func (t *LocalTier) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := t.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		t.cache.Delete(key)
		return nil, false, errors.New("local cache: unexpected value type")
	}
	return b, true, nil
}

func (t *LocalTier) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	buf := make([]byte, len(value))
	copy(buf, value)
	t.cache.Set(key, buf, ttl)
	return nil
}

// RedisTier is the shared tier backed by Redis string keys with TTL.
type RedisTier struct {
	redis *redis.Client
}

func NewRedisTier(redis *redis.Client) *RedisTier {
	return &RedisTier{redis: redis}
}

func (t *RedisTier) Name() string { return "redis" }

func (t *RedisTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := t.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (t *RedisTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return t.redis.Set(ctx, key, value, ttl).Err()
}
