package framecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultPrefix namespaces frame keys in a shared Redis.
const defaultPrefix = "sightline"

// Redis is a Cache backed by Redis, for deployments where sessions can land
// on any replica.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOption configures a Redis cache.
type RedisOption func(*Redis)

// WithTTL overrides DefaultTTL for cached frames.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// NewRedis creates a Redis-backed cache.
func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	cache := &Redis{
		client: client,
		ttl:    DefaultTTL,
		prefix: defaultPrefix,
	}
	for _, opt := range opts {
		opt(cache)
	}
	return cache
}

// Put implements Cache.
func (r *Redis) Put(ctx context.Context, sessionID string, png []byte) error {
	if err := r.client.Set(ctx, r.key(sessionID), png, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Get implements Cache.
func (r *Redis) Get(ctx context.Context, sessionID string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (r *Redis) key(sessionID string) string {
	return r.prefix + ":frame:" + sessionID
}
