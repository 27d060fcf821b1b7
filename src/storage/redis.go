package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a key does not exist or has expired
var ErrNotFound = errors.New("key not found")

// NewRedisClient parses redisURL and checks the connection
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL environment variable is required")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// RedisStorage stores JSON-encoded values of one type under a key prefix
type RedisStorage[T any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStorage creates a typed store. ttl applies on every write and on
// GetAndTouch; zero means no expiry.
func NewRedisStorage[T any](client *redis.Client, prefix string, ttl time.Duration) *RedisStorage[T] {
	return &RedisStorage[T]{client: client, prefix: prefix, ttl: ttl}
}

// Key returns the Redis key for id
func (r *RedisStorage[T]) Key(id string) string {
	return r.prefix + id
}

// Set stores the value with the store TTL
func (r *RedisStorage[T]) Set(ctx context.Context, id string, value T) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", r.Key(id), err)
	}

	if err := r.client.Set(ctx, r.Key(id), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", r.Key(id), err)
	}
	return nil
}

// Get reads the value, ErrNotFound when absent
func (r *RedisStorage[T]) Get(ctx context.Context, id string) (T, error) {
	var value T
	data, err := r.client.Get(ctx, r.Key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return value, ErrNotFound
		}
		return value, fmt.Errorf("failed to get %s: %w", r.Key(id), err)
	}

	if err := sonic.Unmarshal(data, &value); err != nil {
		return value, fmt.Errorf("failed to unmarshal %s: %w", r.Key(id), err)
	}
	return value, nil
}

// GetAndTouch reads the value and extends its TTL
func (r *RedisStorage[T]) GetAndTouch(ctx context.Context, id string) (T, error) {
	var value T
	if r.ttl <= 0 {
		return r.Get(ctx, id)
	}

	data, err := r.client.GetEx(ctx, r.Key(id), r.ttl).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return value, ErrNotFound
		}
		return value, fmt.Errorf("failed to GETEX %s: %w", r.Key(id), err)
	}

	if err := sonic.Unmarshal(data, &value); err != nil {
		return value, fmt.Errorf("failed to unmarshal %s: %w", r.Key(id), err)
	}
	return value, nil
}

// Scan calls fn with the id of every stored value. Iteration stops at the
// first error returned by fn.
func (r *RedisStorage[T]) Scan(ctx context.Context, fn func(id string) error) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := fn(strings.TrimPrefix(iter.Val(), r.prefix)); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan %s*: %w", r.prefix, err)
	}
	return nil
}
