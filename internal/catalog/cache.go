package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const cachePrefix = "catalog:"

// Cache stores catalog listings in Redis. A nil client or non-positive TTL turns
// every call into a pass-through.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a Cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) active() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// remember returns the cached value under key, or calls load and stores its
// result. Redis failures are logged and fall through to load.
func remember[T any](ctx context.Context, c *Cache, key string, load func() (T, error)) (T, error) {
	if !c.active() {
		return load()
	}
	full := cachePrefix + key
	raw, err := c.client.Get(ctx, full).Bytes()
	switch {
	case err == nil:
		var hit T
		if jsonErr := json.Unmarshal(raw, &hit); jsonErr == nil {
			return hit, nil
		}
		_ = c.client.Del(ctx, full).Err()
	case !errors.Is(err, redis.Nil):
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", full).Msg("catalog cache read failed")
	}

	value, err := load()
	if err != nil {
		return value, err
	}
	if payload, jsonErr := json.Marshal(value); jsonErr == nil {
		if setErr := c.client.Set(ctx, full, payload, c.ttl).Err(); setErr != nil {
			zerolog.Ctx(ctx).Warn().Err(setErr).Str("key", full).Msg("catalog cache write failed")
		}
	}
	return value, nil
}
