package usecase

import (
	"context"
	"errors"

	"github.com/julpar/coope-buffet/internal/entity"
)

// ErrNotFound is the only hard error surfaced by lookups and transition
// calls; anything else coming out of the ports is a transient store failure
// the caller should retry.
var ErrNotFound = errors.New("not found")

// ErrNoItems rejects order creation with an empty cart; every persisted
// order carries at least one line.
var ErrNoItems = errors.New("order has no items")

// OrderStore persists order records, the short-code index and the per-state
// membership lists. SaveAndMove must apply the record write and the index
// move as a single atomic batch; from/to may be empty when the order enters
// or leaves the indexed states.
type OrderStore interface {
	Get(ctx context.Context, id string) (*entity.Order, error)
	GetMany(ctx context.Context, ids []string) ([]*entity.Order, error)
	SaveAndMove(ctx context.Context, o *entity.Order, from, to entity.Status) error

	// BindCode conditionally binds code -> orderID. It returns false when the
	// code is already taken; the caller retries with a fresh code.
	BindCode(ctx context.Context, code, orderID string) (bool, error)
	ReleaseCode(ctx context.Context, code string) error
	ResolveCode(ctx context.Context, code string) (string, error)

	ListIDs(ctx context.Context, state entity.Status) ([]string, error)
}

// TransitionGuard serializes transitions per order id. Acquire returns false
// while another transition on the same order holds the lease.
type TransitionGuard interface {
	Acquire(ctx context.Context, orderID string) (bool, error)
	Release(ctx context.Context, orderID string) error
}

// Catalog is the read side of the menu used for price/name snapshotting.
type Catalog interface {
	Item(ctx context.Context, id string) (*entity.MenuItem, error)
	ListItems(ctx context.Context) ([]entity.MenuItem, error)
}

// StockLedger is the authoritative per-item quantity counter. Adjust clamps
// at zero: a delta that would go negative yields 0, not an error.
type StockLedger interface {
	Adjust(ctx context.Context, itemID string, delta int) (int, error)
}

// MenuStore is the full catalog persistence surface used by the menu
// service; the order engine only ever sees it through Catalog/StockLedger.
type MenuStore interface {
	Catalog
	StockLedger
	UpsertItem(ctx context.Context, item entity.MenuItem) error
	Categories(ctx context.Context) ([]entity.Category, error)
	UpsertCategory(ctx context.Context, cat entity.Category) error
}

// EventPublisher fans lifecycle changes out to interested consumers
// (kitchen displays, notifications). Publishing is best effort; a failure
// never blocks or rolls back a transition.
type EventPublisher interface {
	PublishStatusChanged(ctx context.Context, msg StatusChangedMsg) error
}
