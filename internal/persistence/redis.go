package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// cmdable is the subset of the redis client the slot needs
type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
}

// RedisSlot stores the snapshot under one redis key without expiry
type RedisSlot struct {
	store cmdable
	raw   *redis.Client
	key   string
}

// NewRedisSlot connects to url and verifies the connection
func NewRedisSlot(ctx context.Context, url, key string) (*RedisSlot, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisSlot{store: raw, raw: raw, key: key}, nil
}

func (r *RedisSlot) Load(ctx context.Context) ([]byte, error) {
	data, err := r.store.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

func (r *RedisSlot) Save(ctx context.Context, data []byte) error {
	if err := r.store.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisSlot) Ping(ctx context.Context) error {
	return r.store.Ping(ctx).Err()
}

func (r *RedisSlot) Close() error {
	if r.raw == nil {
		return nil
	}
	return r.raw.Close()
}
