package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores matrices as JSON values in Redis.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to the Redis server at url (redis://...).
func NewRedisCache(url string, ttl time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return NewRedisCacheClient(redis.NewClient(opt), ttl), nil
}

func NewRedisCacheClient(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, prefix: "vroomgo:matrix:", ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (Matrices, bool, error) {
	b, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Matrices{}, false, nil
	}
	if err != nil {
		return Matrices{}, false, fmt.Errorf("redis cache get: %w", err)
	}
	var m Matrices
	if err := json.Unmarshal(b, &m); err != nil {
		return Matrices{}, false, fmt.Errorf("redis cache decode: %w", err)
	}
	return m, true, nil
}

func (c *RedisCache) Put(ctx context.Context, key string, m Matrices) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("redis cache encode: %w", err)
	}
	if err := c.rdb.Set(ctx, c.prefix+key, b, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis cache set: %w", err)
	}
	return nil
}

func (c *RedisCache) Ping(ctx context.Context) error { return c.rdb.Ping(ctx).Err() }

func (c *RedisCache) Close() error { return c.rdb.Close() }
