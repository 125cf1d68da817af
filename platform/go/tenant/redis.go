package tenant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig captures the knobs for the Redis-backed cache connection.
type RedisConfig struct {
	URL            string        `env:"REDIS_URL"`
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
}

// ErrRedisNotReady is returned when every connection attempt fails.
var ErrRedisNotReady = errors.New("redis is not ready")

// ConnectRedis dials Redis with retries and verifies the connection with a ping.
func ConnectRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrRedisNotReady, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}

	return nil, ErrRedisNotReady
}

// redisCache implements Cache on a shared Redis instance so multiple API
// nodes observe the same memoized lookups and invalidations.
type redisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache wraps an established client. The prefix namespaces keys so the
// cache can share a Redis database with other subsystems.
func NewRedisCache(client *redis.Client, prefix string) Cache {
	if client == nil {
		panic("redis cache: client is required")
	}
	if prefix == "" {
		prefix = "gradnet"
	}
	return &redisCache{client: client, prefix: prefix}
}

func (c *redisCache) key(key string) string {
	return c.prefix + ":" + key
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		return nil, false
	}
	return raw, true
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	// Failures degrade to uncached lookups; never fail the caller.
	_ = c.client.Set(ctx, c.key(key), value, ttl).Err()
}

func (c *redisCache) Delete(ctx context.Context, key string) {
	_ = c.client.Del(ctx, c.key(key)).Err()
}

func (c *redisCache) Increment(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, c.key(key)).Result()
}

func (c *redisCache) Close() error {
	return c.client.Close()
}
