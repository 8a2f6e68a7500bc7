package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/damon-houk/exchange-rate-chart/internal/infrastructure/logger"
)

const redisKeyPrefix = "ratechart:"

// RedisListCache shares cached lists between service instances. Redis expires the keys
// itself; failures are logged and reported as cache misses.
type RedisListCache struct {
	client     *redis.Client
	expiration time.Duration
	logger     logger.Logger
}

// NewRedisListCache connects to addr and verifies the connection
func NewRedisListCache(ctx context.Context, addr string, expiration time.Duration, log logger.Logger) (*RedisListCache, error) {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	if expiration <= 0 {
		expiration = DefaultExpiration
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisListCache{client: client, expiration: expiration, logger: log}, nil
}

// Get reads and decodes a list
func (c *RedisListCache) Get(ctx context.Context, key string) ([]string, bool) {
	data, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("Redis cache read failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return nil, false
	}

	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		c.logger.Warn("Redis cache entry unreadable", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return nil, false
	}

	return values, true
}

// Put encodes and stores a list with the configured TTL
func (c *RedisListCache) Put(ctx context.Context, key string, values []string) {
	data, err := json.Marshal(values)
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, redisKeyPrefix+key, data, c.expiration).Err(); err != nil {
		c.logger.Warn("Redis cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

// Invalidate deletes a key
func (c *RedisListCache) Invalidate(ctx context.Context, key string) {
	if err := c.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		c.logger.Warn("Redis cache delete failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

// CleanExpired is a no-op: redis applies the TTL
func (c *RedisListCache) CleanExpired() int {
	return 0
}

// Close releases the connection pool
func (c *RedisListCache) Close() error {
	return c.client.Close()
}
