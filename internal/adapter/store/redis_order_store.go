package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/julpar/coope-buffet/internal/entity"
	"github.com/julpar/coope-buffet/internal/usecase"
	"github.com/redis/go-redis/v9"
)

const (
	orderKeyPrefix = "order#"
	codeKeyPrefix  = "ordercode#"
)

func orderKey(id string) string { return orderKeyPrefix + id }

func stateListKey(s entity.Status) string { return "orders:" + string(s) }

// RedisOrderStore keeps one JSON record per order, a string pointer per
// short code, and one id list per indexed state.
type RedisOrderStore struct {
	rdb *redis.Client
}

func NewRedisOrderStore(rdb *redis.Client) *RedisOrderStore {
	return &RedisOrderStore{rdb: rdb}
}

func (s *RedisOrderStore) Get(ctx context.Context, id string) (*entity.Order, error) {
	raw, err := s.rdb.Get(ctx, orderKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, usecase.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	var o entity.Order
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		return nil, fmt.Errorf("decode order %s: %w", id, err)
	}
	return &o, nil
}

func (s *RedisOrderStore) GetMany(ctx context.Context, ids []string) ([]*entity.Order, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = orderKey(id)
	}
	raws, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget orders: %w", err)
	}
	out := make([]*entity.Order, 0, len(raws))
	for _, raw := range raws {
		str, ok := raw.(string)
		if !ok {
			continue // id indexed but record gone; skip, don't fail the listing
		}
		var o entity.Order
		if err := json.Unmarshal([]byte(str), &o); err != nil {
			continue
		}
		out = append(out, &o)
	}
	return out, nil
}

// SaveAndMove writes the record and moves its id between state lists in one
// MULTI, so a concurrent lister never sees the record in zero or two lists.
// Empty from/to mean the order is entering or leaving the indexed states.
func (s *RedisOrderStore) SaveAndMove(ctx context.Context, o *entity.Order, from, to entity.Status) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode order: %w", err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, orderKey(o.ID), raw, 0)
	if from != "" {
		pipe.LRem(ctx, stateListKey(from), 0, o.ID)
	}
	if to != "" {
		pipe.LPush(ctx, stateListKey(to), o.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save order %s: %w", o.ID, err)
	}
	return nil
}

// BindCode is the uniqueness check: SETNX either wins the code or reports
// it taken. A plain existence pre-check would leave a window for two
// creations to claim the same code.
func (s *RedisOrderStore) BindCode(ctx context.Context, code, orderID string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, codeKeyPrefix+code, orderID, 0).Result()
	if err != nil {
		return false, fmt.Errorf("bind code: %w", err)
	}
	return ok, nil
}

func (s *RedisOrderStore) ReleaseCode(ctx context.Context, code string) error {
	return s.rdb.Del(ctx, codeKeyPrefix+code).Err()
}

func (s *RedisOrderStore) ResolveCode(ctx context.Context, code string) (string, error) {
	id, err := s.rdb.Get(ctx, codeKeyPrefix+code).Result()
	if errors.Is(err, redis.Nil) {
		return "", usecase.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve code: %w", err)
	}
	return id, nil
}

func (s *RedisOrderStore) ListIDs(ctx context.Context, state entity.Status) ([]string, error) {
	ids, err := s.rdb.LRange(ctx, stateListKey(state), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", state, err)
	}
	return ids, nil
}

var _ usecase.OrderStore = (*RedisOrderStore)(nil)
