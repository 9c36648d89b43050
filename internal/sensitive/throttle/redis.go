package throttle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "reveal:fail:"

// RedisStore shares failure counters across replicas. Expiry is set only on
// the first increment so the window is anchored to the first failure.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Hit(ctx context.Context, key string, window time.Duration) (int, error) {
	full := keyPrefix + key
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, full)
	pipe.ExpireNX(ctx, full, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("throttle hit: %w", err)
	}
	return int(incr.Val()), nil
}

func (s *RedisStore) Count(ctx context.Context, key string) (int, error) {
	n, err := s.client.Get(ctx, keyPrefix+key).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("throttle count: %w", err)
	}
	return n, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("throttle reset: %w", err)
	}
	return nil
}
