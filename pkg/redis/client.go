// Package redis provides a thin wrapper around go-redis/v9 with connection
// pooling, cache get/set/delete operations, and pattern-based key invalidation.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lucid-search/lucid/pkg/config"
	"github.com/lucid-search/lucid/pkg/resilience"
	"github.com/redis/go-redis/v9"
)

// Client wraps a go-redis client. Get/Set run behind a circuit breaker so a
// degraded Redis doesn't pile up latency on every caller (the query cache in
// particular) while it's down.
type Client struct {
	rdb *redis.Client
	cb  *resilience.CircuitBreaker
}

// NewClient creates a Redis client and verifies the connection with a PING,
// retrying transient failures a few times before giving up.
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := resilience.Retry(ctx, "redis-connect", resilience.RetryConfig{MaxAttempts: 3}, func() error {
		return rdb.Ping(ctx).Err()
	})
	if err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{
		rdb: rdb,
		cb:  resilience.NewCircuitBreaker("redis", resilience.CircuitBreakerConfig{}),
	}, nil
}

// Get returns the string value for the given key.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	var result string
	var notFound bool
	err := c.cb.Execute(func() error {
		var execErr error
		result, execErr = c.rdb.Get(ctx, key).Result()
		if errors.Is(execErr, redis.Nil) {
			notFound = true
			return nil // key-not-found is a normal outcome, not a breaker-tripping failure
		}
		return execErr
	})
	if err != nil {
		return "", err
	}
	if notFound {
		return "", redis.Nil
	}
	return result, nil
}

// Set stores a value with the given TTL.
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.cb.Execute(func() error {
		return c.rdb.Set(ctx, key, value, ttl).Err()
	})
}

// CircuitState reports the current state of the Get/Set circuit breaker, for
// exporting as a metric.
func (c *Client) CircuitState() resilience.State {
	return c.cb.GetState()
}

// Del deletes one or more keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

// FlushByPattern scans for keys matching the glob pattern and deletes them,
// returning the number of keys removed.
func (c *Client) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var deleted int64
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, fmt.Errorf("deleting key %s: %w", iter.Val(), err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("scanning pattern %s: %w", pattern, err)
	}
	return deleted, nil
}

// IsNilError reports whether err is a Redis nil (key-not-found) error.
func IsNilError(err error) bool {
	return err == redis.Nil
}

// Close closes the underlying Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping sends a PING to Redis and returns any error.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
