// Package redis provides a client wrapper for Redis operations, including
// the running defect log maintained by the error reporter.
package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/qa-go/qaf/retry"
)

// NoMatches is returned when Redis did not find any matching key.
const NoMatches = redis.Nil

// Client wraps the Redis client.
type Client struct {
	*redis.Client
}

// New creates a new Redis client.
func New(addr, password string, db int) *Client {
	return &Client{
		redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

// Get retrieves a value by key from Redis.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

// Set stores a value by key in Redis.
func (c *Client) Set(ctx context.Context, key string, value interface{}) error {
	return c.Client.Set(ctx, key, value, 0).Err()
}

// SetWithExpiration stores a value with a specified expiration time.
func (c *Client) SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.Client.Set(ctx, key, value, expiration).Err()
}

// Del removes a key from Redis.
func (c *Client) Del(ctx context.Context, key string) error {
	return c.Client.Del(ctx, key).Err()
}

// AppendDefect appends a serialized failure record to the defect log list.
func (c *Client) AppendDefect(ctx context.Context, key string, payload []byte) error {
	return c.Client.RPush(ctx, key, payload).Err()
}

// Defects returns the full defect log in insertion order.
func (c *Client) Defects(ctx context.Context, key string) ([]string, error) {
	return c.Client.LRange(ctx, key, 0, -1).Result()
}

// TrimDefects keeps only the most recent max entries of the defect log.
func (c *Client) TrimDefects(ctx context.Context, key string, max int64) error {
	return c.Client.LTrim(ctx, key, -max, -1).Err()
}

// GetWithRetry retrieves a value using a retry strategy.
func (c *Client) GetWithRetry(ctx context.Context, strategy retry.Strategy, key string) (string, error) {
	var val string
	err := retry.Do(func() error {
		v, e := c.Get(ctx, key)
		if e == nil {
			val = v
		}
		return e
	}, strategy)
	return val, err
}

// AppendDefectWithRetry appends to the defect log using a retry strategy.
func (c *Client) AppendDefectWithRetry(ctx context.Context, strategy retry.Strategy, key string, payload []byte) error {
	return retry.DoContext(ctx, strategy, func() error {
		return c.AppendDefect(ctx, key, payload)
	})
}
