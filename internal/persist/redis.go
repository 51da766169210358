package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "image-compressor:"

// RedisKV stores values in Redis under a common key prefix.
type RedisKV struct {
	client      *redis.Client
	prefix      string
	pingTimeout time.Duration
}

// NewRedisKV wraps an existing client. An empty prefix uses the default.
func NewRedisKV(client *redis.Client, prefix string) *RedisKV {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisKV{client: client, prefix: prefix, pingTimeout: 2 * time.Second}
}

// Available pings the server.
func (r *RedisKV) Available() bool {
	if r.client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.pingTimeout)
	defer cancel()
	return r.client.Ping(ctx).Err() == nil
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the client.
func (r *RedisKV) Close() error {
	return r.client.Close()
}
