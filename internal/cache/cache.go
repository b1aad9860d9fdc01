package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps redis.Client. A nil Client behaves like an unreachable server.
type Client struct {
	client *redis.Client
}

// New creates a new Redis client. It does not dial until the first command.
func New(addr, password string, db int) *Client {
	opts := &redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}
	return &Client{client: redis.NewClient(opts)}
}

// ErrUnavailable is returned by a nil or closed Client.
var ErrUnavailable = redis.ErrClosed

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return ErrUnavailable
	}
	return c.client.Ping(ctx).Err()
}

// Incr increments key and returns the new count and the remaining TTL.
// The TTL is set on the first increment so a counter always expires.
func (c *Client) Incr(ctx context.Context, key string, ttl time.Duration) (int64, time.Duration, error) {
	if c == nil || c.client == nil {
		return 0, 0, ErrUnavailable
	}

	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, ttl)
	remaining := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}
	return incr.Val(), remaining.Val(), nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
