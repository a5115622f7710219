package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "tracker"

// Redis backs the cache with a shared Redis instance so several replicas
// can reuse each other's history responses.
type Redis struct {
	client *redis.Client
}

func NewRedis(addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 5,
		PoolTimeout:  30 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Redis{client: client}, nil
}

func (r *Redis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if expiration <= 0 {
		expiration = defaultExpiration
	}
	return r.client.Set(ctx, wrapKey(key), data, expiration).Err()
}

func (r *Redis) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, wrapKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	return decode(data, dest)
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	wrapped := make([]string, len(keys))
	for i, k := range keys {
		wrapped[i] = wrapKey(k)
	}
	return r.client.Unlink(ctx, wrapped...).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func wrapKey(key string) string {
	return keyPrefix + ":" + key
}
