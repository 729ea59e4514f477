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
	menuItemsKey      = "menu:items"
	menuCategoriesKey = "menu:categories"

	adjustRetries = 16
)

// RedisMenuStore holds the catalog: items in a hash (id -> JSON) and the
// category list as one JSON array. It is also the stock ledger.
type RedisMenuStore struct {
	rdb *redis.Client
}

func NewRedisMenuStore(rdb *redis.Client) *RedisMenuStore {
	return &RedisMenuStore{rdb: rdb}
}

func (s *RedisMenuStore) Item(ctx context.Context, id string) (*entity.MenuItem, error) {
	raw, err := s.rdb.HGet(ctx, menuItemsKey, id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, usecase.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get menu item: %w", err)
	}
	var item entity.MenuItem
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		return nil, fmt.Errorf("decode menu item %s: %w", id, err)
	}
	return &item, nil
}

func (s *RedisMenuStore) ListItems(ctx context.Context) ([]entity.MenuItem, error) {
	all, err := s.rdb.HGetAll(ctx, menuItemsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list menu items: %w", err)
	}
	out := make([]entity.MenuItem, 0, len(all))
	for _, raw := range all {
		var item entity.MenuItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *RedisMenuStore) UpsertItem(ctx context.Context, item entity.MenuItem) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode menu item: %w", err)
	}
	if err := s.rdb.HSet(ctx, menuItemsKey, item.ID, raw).Err(); err != nil {
		return fmt.Errorf("upsert menu item: %w", err)
	}
	return nil
}

// Adjust applies delta to the item's stock, clamped at zero. The
// read-modify-write runs under WATCH so a concurrent adjustment aborts the
// transaction and the whole thing retries instead of losing an update.
func (s *RedisMenuStore) Adjust(ctx context.Context, itemID string, delta int) (int, error) {
	var next int
	txf := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, menuItemsKey, itemID).Result()
		if errors.Is(err, redis.Nil) {
			return usecase.ErrNotFound
		}
		if err != nil {
			return err
		}
		var item entity.MenuItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			return fmt.Errorf("decode menu item %s: %w", itemID, err)
		}
		item.Stock += delta
		if item.Stock < 0 {
			item.Stock = 0
		}
		next = item.Stock
		updated, err := json.Marshal(item)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, menuItemsKey, itemID, updated)
			return nil
		})
		return err
	}

	for i := 0; i < adjustRetries; i++ {
		err := s.rdb.Watch(ctx, txf, menuItemsKey)
		if err == nil {
			return next, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue // another writer touched the hash; retry
		}
		if errors.Is(err, usecase.ErrNotFound) {
			return 0, usecase.ErrNotFound
		}
		return 0, fmt.Errorf("adjust stock %s: %w", itemID, err)
	}
	return 0, fmt.Errorf("adjust stock %s: too much contention", itemID)
}

func (s *RedisMenuStore) Categories(ctx context.Context) ([]entity.Category, error) {
	raw, err := s.rdb.Get(ctx, menuCategoriesKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get categories: %w", err)
	}
	var cats []entity.Category
	if err := json.Unmarshal([]byte(raw), &cats); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	return cats, nil
}

func (s *RedisMenuStore) UpsertCategory(ctx context.Context, cat entity.Category) error {
	cats, err := s.Categories(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i := range cats {
		if cats[i].ID == cat.ID {
			cats[i] = cat
			replaced = true
			break
		}
	}
	if !replaced {
		cats = append(cats, cat)
	}
	raw, err := json.Marshal(cats)
	if err != nil {
		return fmt.Errorf("encode categories: %w", err)
	}
	if err := s.rdb.Set(ctx, menuCategoriesKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("save categories: %w", err)
	}
	return nil
}

var _ usecase.MenuStore = (*RedisMenuStore)(nil)
