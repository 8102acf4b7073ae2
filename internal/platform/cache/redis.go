// Package cache is a thin JSON-over-Redis cache.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
	Prefix string
}

func NewRedisCache(url string, ttl time.Duration, prefix string) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisCache{Client: redis.NewClient(opt), TTL: ttl, Prefix: prefix}, nil
}

func (c *RedisCache) key(k string) string { return c.Prefix + k }

// GetMany returns the raw JSON payload of every key that is present.
// Missing keys are simply absent from the result.
func (c *RedisCache) GetMany(ctx context.Context, keys []string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	vals, err := c.Client.MGet(ctx, full...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[keys[i]] = json.RawMessage(s)
		}
	}
	return out, nil
}

// SetMany writes all values in one pipeline, each with the cache TTL.
func (c *RedisCache) SetMany(ctx context.Context, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	pipe := c.Client.Pipeline()
	for k, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		pipe.Set(ctx, c.key(k), b, c.TTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}
