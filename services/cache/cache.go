package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/deymohit02/crypto-market-tracker/config"
)

var ErrCacheMiss = errors.New("cache: key not found")

// Service defines the cache operations the API layer needs.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// New selects the backend. Redis when an address is configured and
// reachable, the in-process store otherwise.
func New(cfg *config.Config) Service {
	if cfg.RedisAddr == "" {
		return NewMemory()
	}
	c, err := NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).
			Msg("Redis unreachable, using in-memory cache")
		return NewMemory()
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache connected")
	return c
}

func encode(value interface{}) ([]byte, error) {
	if s, ok := value.(string); ok {
		return []byte(s), nil
	}
	return json.Marshal(value)
}

func decode(data []byte, dest interface{}) error {
	if sp, ok := dest.(*string); ok {
		*sp = string(data)
		return nil
	}
	return json.Unmarshal(data, dest)
}
