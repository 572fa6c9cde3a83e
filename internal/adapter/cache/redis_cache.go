package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ondegooltd/fortisel-api/internal/usecase"
)

// RedisCache fronts order status reads so polling clients stay off MySQL.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func statusKey(orderID string) string { return "order:status:" + orderID }

func (r RedisCache) SetStatus(ctx context.Context, orderID string, status string) error {
	return r.rdb.Set(ctx, statusKey(orderID), status, r.ttl).Err()
}

func (r RedisCache) GetStatus(ctx context.Context, orderID string) (string, bool, error) {
	val, err := r.rdb.Get(ctx, statusKey(orderID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

var _ usecase.OrderCache = (*RedisCache)(nil)
