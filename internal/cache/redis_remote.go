package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRemote implements Remote on top of a Redis byte-bucket, grounded on
// the go-redis dependency declared in the pack's r3e-network-service_layer
// go.mod for exactly this "versioned snapshot mirror with TTL" role.
type RedisRemote struct {
	client *redis.Client
}

// NewRedisRemote connects to a Redis instance given a redis:// URL.
func NewRedisRemote(url string) (*RedisRemote, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisRemote{client: redis.NewClient(opts)}, nil
}

// Close releases the underlying connection pool.
func (r *RedisRemote) Close() error {
	return r.client.Close()
}

// Put writes payload under key with the given TTL. A cache remote miss on
// read is ignored elsewhere; a write failure here is likewise non-fatal to
// the caller (Set fires it in a detached goroutine).
func (r *RedisRemote) Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, payload, ttl).Err()
}

// Scan iterates every key under prefix using Redis SCAN in cursor-based
// chunks (never KEYS, which would block the server on a large keyspace).
func (r *RedisRemote) Scan(ctx context.Context, prefix string, fn func(key string, payload []byte) error) error {
	var cursor uint64
	match := prefix + "*"
	for {
		keys, next, err := r.client.Scan(ctx, cursor, match, 256).Result()
		if err != nil {
			return err
		}
		for _, key := range keys {
			payload, err := r.client.Get(ctx, key).Bytes()
			if err != nil {
				continue // remote miss on an individual key: ignored, local cache stays authoritative
			}
			if err := fn(key, payload); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
