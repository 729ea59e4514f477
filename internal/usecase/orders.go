package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/julpar/coope-buffet/internal/entity"
	"github.com/julpar/coope-buffet/internal/logging"
)

var errLeaseBusy = errors.New("transition lease busy")

// Orders is the order lifecycle engine. It holds no order state of its own;
// every call is a fresh round-trip to the store and correctness rests on the
// store's conditional-set and batch primitives.
type Orders struct {
	store  OrderStore
	menu   Catalog
	ledger StockLedger
	guard  TransitionGuard
	events EventPublisher // optional
	log    *slog.Logger
	now    func() time.Time
}

func NewOrders(store OrderStore, menu Catalog, ledger StockLedger, guard TransitionGuard, events EventPublisher) *Orders {
	return &Orders{
		store:  store,
		menu:   menu,
		ledger: ledger,
		guard:  guard,
		events: events,
		log:    logging.New("orders"),
		now:    time.Now,
	}
}

type LineInput struct {
	ID  string `json:"id"`
	Qty int    `json:"qty"`
}

type CreatePendingInput struct {
	Channel       entity.Channel
	Items         []LineInput
	CustomerName  string
	PaymentMethod entity.PaymentMethod
}

// CreatePending builds an order in pending_payment: snapshots price/name
// from the catalog, reserves a unique short code, and atomically persists
// the record together with its pending-index entry. Stock is not touched
// here; commitment is deferred until payment confirmation.
func (u *Orders) CreatePending(ctx context.Context, in CreatePendingInput) (*entity.Order, error) {
	if len(in.Items) == 0 {
		return nil, ErrNoItems
	}
	channel := in.Channel
	if !channel.Valid() {
		channel = entity.ChannelPickup
	}
	method := in.PaymentMethod
	if method != entity.PaymentOnline {
		method = entity.PaymentCash
	}

	menuItems, err := u.menu.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("load menu: %w", err)
	}
	byID := make(map[string]entity.MenuItem, len(menuItems))
	for _, m := range menuItems {
		byID[m.ID] = m
	}

	items := make([]entity.OrderItem, 0, len(in.Items))
	for _, line := range in.Items {
		qty := line.Qty
		if qty < 1 {
			qty = 1
		}
		it := entity.OrderItem{ID: line.ID, Qty: qty}
		if m, ok := byID[line.ID]; ok {
			it.Name = m.Name
			it.UnitPrice = m.Price
		} else {
			// Catalog deletion must not hard-fail an in-flight cart; the line
			// is kept at price zero.
			u.log.Warn("order line references unknown menu item", "item_id", line.ID)
		}
		items = append(items, it)
	}

	now := u.now()
	subtotal, total := entity.Totals(items)
	order := &entity.Order{
		ID:           newOrderID(now),
		Status:       entity.StatusPendingPayment,
		Channel:      channel,
		Items:        items,
		Subtotal:     subtotal,
		Total:        total,
		CustomerName: in.CustomerName,
		Payment:      entity.Payment{Method: method},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	code, err := u.reserveCode(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.ShortCode = code

	if err := u.store.SaveAndMove(ctx, order, "", entity.StatusPendingPayment); err != nil {
		// The code was bound before the record write; unbind so it never
		// points at an order that does not exist.
		_ = u.store.ReleaseCode(context.WithoutCancel(ctx), code)
		return nil, fmt.Errorf("persist order: %w", err)
	}

	orderTransitions.WithLabelValues(string(entity.StatusPendingPayment)).Inc()
	u.log.Info("order created",
		"order_id", order.ID, "short_code", order.ShortCode,
		"channel", string(order.Channel), "total", order.Total)
	u.publish(ctx, order)
	return order, nil
}

// reserveCode draws random 6-char codes and binds the first one the store
// accepts. The conditional bind is the uniqueness check: a lost bind means
// another creation owns that code, so generation retries. After the retry
// budget a longer timestamp-based code is used instead.
func (u *Orders) reserveCode(ctx context.Context, orderID string) (string, error) {
	for i := 0; i < shortCodeRetries; i++ {
		code := randCode(shortCodeLen)
		ok, err := u.store.BindCode(ctx, code, orderID)
		if err != nil {
			return "", fmt.Errorf("bind short code: %w", err)
		}
		if ok {
			return code, nil
		}
		shortCodeCollisions.Inc()
	}
	u.log.Warn("short code space under pressure, using fallback", "order_id", orderID)
	for i := 0; i < 3; i++ {
		code := fallbackCode(u.now())
		ok, err := u.store.BindCode(ctx, code, orderID)
		if err != nil {
			return "", fmt.Errorf("bind fallback code: %w", err)
		}
		if ok {
			return code, nil
		}
	}
	return "", errors.New("short code generation exhausted")
}

// MarkPaid transitions pending_payment -> paid and debits stock, exactly
// once per order. Calling it on an already-paid order is a defined no-op,
// which is what makes duplicate payment notifications safe. Any other state
// is also a no-op: callers inspect the returned status.
func (u *Orders) MarkPaid(ctx context.Context, id, externalID string) (*entity.Order, error) {
	release, err := u.lock(ctx, id)
	if err != nil {
		if errors.Is(err, errLeaseBusy) {
			// A concurrent transition owns this order; report its outcome.
			return u.store.Get(ctx, id)
		}
		return nil, err
	}
	defer release()

	o, err := u.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status == entity.StatusPaid {
		return o, nil
	}
	if !o.Status.CanTransition(entity.StatusPaid) {
		noopTransitions.WithLabelValues("mark_paid").Inc()
		u.log.Warn("markPaid ignored", "order_id", o.ID, "status", string(o.Status))
		return o, nil
	}

	// Per-line, best effort: a failed line is logged for reconciliation and
	// earlier debits stay applied.
	u.adjustLines(ctx, o, -1, "debit")

	now := u.now()
	o.Status = entity.StatusPaid
	o.Fulfillment = false
	o.Payment.PaidAt = &now
	if externalID != "" {
		o.Payment.ExternalID = externalID
	}
	o.UpdatedAt = now

	if err := u.store.SaveAndMove(ctx, o, entity.StatusPendingPayment, entity.StatusPaid); err != nil {
		return nil, fmt.Errorf("persist paid transition: %w", err)
	}

	orderTransitions.WithLabelValues(string(entity.StatusPaid)).Inc()
	u.log.Info("order paid", "order_id", o.ID, "total", o.Total, "external_id", externalID)
	u.publish(ctx, o)
	return o, nil
}

// SetFulfillment marks a paid order fulfilled. Only true is accepted; there
// is no un-fulfill. Every other combination returns the order unchanged.
func (u *Orders) SetFulfillment(ctx context.Context, id string, fulfilled bool) (*entity.Order, error) {
	if !fulfilled {
		return u.store.Get(ctx, id)
	}

	release, err := u.lock(ctx, id)
	if err != nil {
		if errors.Is(err, errLeaseBusy) {
			return u.store.Get(ctx, id)
		}
		return nil, err
	}
	defer release()

	o, err := u.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status == entity.StatusFulfilled {
		return o, nil
	}
	if !o.Status.CanTransition(entity.StatusFulfilled) {
		noopTransitions.WithLabelValues("set_fulfillment").Inc()
		u.log.Warn("setFulfillment ignored", "order_id", o.ID, "status", string(o.Status))
		return o, nil
	}

	o.Status = entity.StatusFulfilled
	o.Fulfillment = true
	o.UpdatedAt = u.now()

	if err := u.store.SaveAndMove(ctx, o, entity.StatusPaid, entity.StatusFulfilled); err != nil {
		return nil, fmt.Errorf("persist fulfilled transition: %w", err)
	}

	orderTransitions.WithLabelValues(string(entity.StatusFulfilled)).Inc()
	u.log.Info("order fulfilled", "order_id", o.ID)
	u.publish(ctx, o)
	return o, nil
}

// Cancel terminates an order from pending_payment or paid. Cancelling a
// paid order credits stock back; a pending order never touched stock so
// nothing is restored. Already-cancelled and fulfilled orders are no-ops.
func (u *Orders) Cancel(ctx context.Context, id string) (*entity.Order, error) {
	release, err := u.lock(ctx, id)
	if err != nil {
		if errors.Is(err, errLeaseBusy) {
			return u.store.Get(ctx, id)
		}
		return nil, err
	}
	defer release()

	o, err := u.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status == entity.StatusCancelled {
		return o, nil
	}
	if !o.Status.CanTransition(entity.StatusCancelled) {
		noopTransitions.WithLabelValues("cancel").Inc()
		u.log.Warn("cancel ignored", "order_id", o.ID, "status", string(o.Status))
		return o, nil
	}

	from := o.Status
	if from == entity.StatusPaid {
		u.adjustLines(ctx, o, 1, "credit")
	}

	o.Status = entity.StatusCancelled
	o.UpdatedAt = u.now()

	if err := u.store.SaveAndMove(ctx, o, from, ""); err != nil {
		return nil, fmt.Errorf("persist cancel transition: %w", err)
	}

	orderTransitions.WithLabelValues(string(entity.StatusCancelled)).Inc()
	u.log.Warn("order cancelled", "order_id", o.ID, "was", string(from))
	u.publish(ctx, o)
	return o, nil
}

func (u *Orders) Get(ctx context.Context, id string) (*entity.Order, error) {
	return u.store.Get(ctx, id)
}

// GetByCode resolves an order by short code. The code is uppercased, and a
// comma-joined duplicate (payment-provider return URLs have been seen
// echoing the reference twice) collapses to its first non-empty token.
func (u *Orders) GetByCode(ctx context.Context, code string) (*entity.Order, error) {
	norm := normalizeCode(code)
	if norm == "" {
		return nil, ErrNotFound
	}
	id, err := u.store.ResolveCode(ctx, norm)
	if err != nil {
		return nil, err
	}
	return u.store.Get(ctx, id)
}

// ListByState returns the orders indexed under state, oldest first.
// Cancelled orders are never indexed, so asking for them yields nothing.
func (u *Orders) ListByState(ctx context.Context, state entity.Status) ([]*entity.Order, error) {
	switch state {
	case entity.StatusPendingPayment, entity.StatusPaid, entity.StatusFulfilled:
	default:
		return nil, nil
	}
	ids, err := u.store.ListIDs(ctx, state)
	if err != nil {
		return nil, err
	}
	orders, err := u.store.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	sortByCreated(orders)
	return orders, nil
}

// ListAll unions the pending, paid and fulfilled indices, oldest first.
func (u *Orders) ListAll(ctx context.Context) ([]*entity.Order, error) {
	seen := make(map[string]struct{})
	var ids []string
	for _, state := range []entity.Status{entity.StatusPendingPayment, entity.StatusPaid, entity.StatusFulfilled} {
		stateIDs, err := u.store.ListIDs(ctx, state)
		if err != nil {
			return nil, err
		}
		for _, id := range stateIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	orders, err := u.store.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	sortByCreated(orders)
	return orders, nil
}

func (u *Orders) lock(ctx context.Context, id string) (func(), error) {
	for i := 0; i < 50; i++ {
		ok, err := u.guard.Acquire(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("acquire transition lease: %w", err)
		}
		if ok {
			return func() { _ = u.guard.Release(context.WithoutCancel(ctx), id) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
	return nil, errLeaseBusy
}

func (u *Orders) adjustLines(ctx context.Context, o *entity.Order, sign int, direction string) {
	for _, it := range o.Items {
		if _, err := u.ledger.Adjust(ctx, it.ID, sign*it.Qty); err != nil {
			stockAdjustFailures.Inc()
			u.log.Error("stock_adjust_partial_failure",
				"direction", direction, "order_id", o.ID, "item_id", it.ID, "qty", it.Qty, "err", err)
			continue
		}
		stockAdjustments.WithLabelValues(direction).Inc()
	}
}

func (u *Orders) publish(ctx context.Context, o *entity.Order) {
	if u.events == nil {
		return
	}
	msg := StatusChangedMsg{
		OrderID:   o.ID,
		ShortCode: o.ShortCode,
		Status:    string(o.Status),
		Channel:   string(o.Channel),
		Total:     o.Total,
		At:        o.UpdatedAt,
	}
	if err := u.events.PublishStatusChanged(ctx, msg); err != nil {
		u.log.Warn("publish status change", "order_id", o.ID, "err", err)
	}
}

func normalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, tok := range strings.Split(code, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			return tok
		}
	}
	return ""
}

func sortByCreated(orders []*entity.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
}
