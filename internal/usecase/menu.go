package usecase

import (
	"context"
	"log/slog"
	"sort"

	"github.com/julpar/coope-buffet/internal/entity"
	"github.com/julpar/coope-buffet/internal/logging"
)

// Menu is the catalog service. The order engine never calls it directly; it
// depends on the Catalog/StockLedger ports the same store implements.
type Menu struct {
	store MenuStore
	log   *slog.Logger
}

func NewMenu(store MenuStore) *Menu {
	return &Menu{store: store, log: logging.New("menu")}
}

func (m *Menu) Item(ctx context.Context, id string) (*entity.MenuItem, error) {
	return m.store.Item(ctx, id)
}

func (m *Menu) ListItems(ctx context.Context) ([]entity.MenuItem, error) {
	return m.store.ListItems(ctx)
}

// Upsert writes an item, clamping stock at zero and defaulting the active
// flag on first write.
func (m *Menu) Upsert(ctx context.Context, item entity.MenuItem) error {
	if item.Stock < 0 {
		item.Stock = 0
	}
	if item.Active == nil {
		active := true
		item.Active = &active
	}
	return m.store.UpsertItem(ctx, item)
}

// AdjustStock is the ledger operation re-exposed for staff corrections.
func (m *Menu) AdjustStock(ctx context.Context, itemID string, delta int) (int, error) {
	return m.store.Adjust(ctx, itemID, delta)
}

func (m *Menu) UpsertCategory(ctx context.Context, cat entity.Category) error {
	return m.store.UpsertCategory(ctx, cat)
}

type PublicMenuItem struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Price        int64               `json:"price"`
	ImageURL     string              `json:"imageUrl,omitempty"`
	Stock        int                 `json:"stock"`
	Availability entity.Availability `json:"availability"`
}

type PublicMenuCategory struct {
	entity.Category
	Items []PublicMenuItem `json:"items"`
}

// PublicMenu groups active items by category with availability labels, the
// shape the customer app renders directly.
func (m *Menu) PublicMenu(ctx context.Context) ([]PublicMenuCategory, error) {
	cats, err := m.store.Categories(ctx)
	if err != nil {
		return nil, err
	}
	items, err := m.store.ListItems(ctx)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(cats, func(i, j int) bool { return cats[i].Order < cats[j].Order })

	byCat := make(map[string][]PublicMenuItem)
	for _, it := range items {
		if !it.IsActive() {
			continue
		}
		byCat[it.CategoryID] = append(byCat[it.CategoryID], PublicMenuItem{
			ID:           it.ID,
			Name:         it.Name,
			Price:        it.Price,
			ImageURL:     it.ImageURL,
			Stock:        it.Stock,
			Availability: entity.AvailabilityOf(it.Stock, it.LowStockThreshold),
		})
	}

	out := make([]PublicMenuCategory, 0, len(cats))
	for _, c := range cats {
		entries := byCat[c.ID]
		if entries == nil {
			entries = []PublicMenuItem{}
		}
		out = append(out, PublicMenuCategory{Category: c, Items: entries})
	}
	return out, nil
}
