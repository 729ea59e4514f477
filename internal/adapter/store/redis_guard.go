package store

import (
	"context"
	"fmt"
	"time"

	"github.com/julpar/coope-buffet/internal/usecase"
	"github.com/redis/go-redis/v9"
)

const guardKeyPrefix = "order:transition:"

// RedisTransitionGuard serializes lifecycle transitions per order id with a
// short-lived SETNX lease. The TTL caps how long a crashed holder can block
// an order.
type RedisTransitionGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisTransitionGuard(rdb *redis.Client, ttl time.Duration) *RedisTransitionGuard {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisTransitionGuard{rdb: rdb, ttl: ttl}
}

func (g *RedisTransitionGuard) Acquire(ctx context.Context, orderID string) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, guardKeyPrefix+orderID, "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	return ok, nil
}

func (g *RedisTransitionGuard) Release(ctx context.Context, orderID string) error {
	return g.rdb.Del(ctx, guardKeyPrefix+orderID).Err()
}

var _ usecase.TransitionGuard = (*RedisTransitionGuard)(nil)
