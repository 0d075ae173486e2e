package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abuseshield/federation/internal/logger"
	"github.com/abuseshield/federation/pkg/config"
	"github.com/abuseshield/federation/pkg/metrics"
)

// RedisCache implements Cache on a Redis hash per key.
//
// When throw_on_errors is disabled (the default), backend failures are
// logged, counted, and reported as a miss or ignored so a broken Redis
// never takes down the request path.
type RedisCache struct {
	client        *redis.Client
	throwOnErrors bool
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, cfg *config.CacheConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.Database,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &RedisCache{client: client, throwOnErrors: cfg.ThrowOnErrors}, nil
}

// kindOf extracts the key kind ("operator" from "operator:<uuid>") for
// metrics labels.
func kindOf(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

// degrade handles a backend error according to policy: surface it when
// throw_on_errors is set, otherwise log and swallow.
func (c *RedisCache) degrade(op, key string, err error) error {
	metrics.CacheErrors.WithLabelValues(kindOf(key)).Inc()
	if c.throwOnErrors {
		return fmt.Errorf("cache %s %s: %w", op, key, err)
	}
	logger.Warn("cache operation failed, degrading", "op", op, "key", key, "error", err)
	return nil
}

func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, c.degrade("exists", key, err)
	}
	return n > 0, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (map[string]string, bool, error) {
	fields, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, false, c.degrade("get", key, err)
	}
	if len(fields) == 0 {
		metrics.CacheMisses.WithLabelValues(kindOf(key)).Inc()
		return nil, false, nil
	}
	metrics.CacheHits.WithLabelValues(kindOf(key)).Inc()
	return fields, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error {
	if len(fields) == 0 {
		return nil
	}
	pipe := c.client.TxPipeline()
	args := make([]any, 0, len(fields)*2)
	for f, v := range fields {
		args = append(args, f, v)
	}
	pipe.HSet(ctx, key, args...)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return c.degrade("set", key, err)
	}
	return nil
}

func (c *RedisCache) UpdateField(ctx context.Context, key, field, value string) error {
	// Only touch existing entries; repopulating a missing key here would
	// resurrect it without its TTL.
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return c.degrade("update", key, err)
	}
	if n == 0 {
		return nil
	}
	if err := c.client.HSet(ctx, key, field, value).Err(); err != nil {
		return c.degrade("update", key, err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return c.degrade("invalidate", keys[0], err)
	}
	return nil
}

func (c *RedisCache) CountKeys(ctx context.Context, prefix string) (int64, error) {
	var count int64
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			return 0, c.degrade("count", prefix, err)
		}
		count += int64(len(keys))
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}

func (c *RedisCache) LimitExceeded(ctx context.Context, prefix string, limit int) (bool, error) {
	if limit <= 0 {
		return false, nil
	}
	count, err := c.CountKeys(ctx, prefix)
	if err != nil {
		return false, err
	}
	return count >= int64(limit), nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
