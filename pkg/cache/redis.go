package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by a shared Redis instance, for deployments where
// several workers analyze the same drawings.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to the given Redis URL and verifies the connection.
// ttl <= 0 means entries never expire.
func NewRedis(url string, ttl time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Redis{client: client, ttl: ttl}, nil
}

// Get returns the cached value for key.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

// Put stores a value under key with the configured TTL. SET NX keeps the
// first writer's value when workers race on the same key.
func (r *Redis) Put(ctx context.Context, key string, value []byte) error {
	if err := r.client.SetNX(ctx, key, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis put: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
