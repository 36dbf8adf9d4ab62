package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and checks the connection
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func productKey(key string) string {
	return fmt.Sprintf("idempotency:product:%s", key)
}

// LookupProductID returns the product created under an idempotency key
func (c *Client) LookupProductID(ctx context.Context, key string) (string, bool, error) {
	id, err := c.rdb.Get(ctx, productKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("idempotency lookup failed: %w", err)
	}
	return id, true, nil
}

// RememberProductID stores the product created under an idempotency key.
// An existing mapping is kept.
func (c *Client) RememberProductID(ctx context.Context, key, productID string, ttl time.Duration) error {
	if err := c.rdb.SetNX(ctx, productKey(key), productID, ttl).Err(); err != nil {
		return fmt.Errorf("idempotency store failed: %w", err)
	}
	return nil
}
