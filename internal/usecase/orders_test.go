package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/julpar/coope-buffet/internal/entity"
)

// memStore is an in-memory OrderStore honoring the port contract: conditional
// code binds and record+index writes applied together.
type memStore struct {
	mu      sync.Mutex
	orders  map[string]entity.Order
	codes   map[string]string
	lists   map[entity.Status][]string
	saveErr error
	// bindFn, when set, decides which codes the store accepts.
	bindFn func(code string) bool
}

func newMemStore() *memStore {
	return &memStore{
		orders: make(map[string]entity.Order),
		codes:  make(map[string]string),
		lists:  make(map[entity.Status][]string),
	}
}

func (s *memStore) Get(_ context.Context, id string) (*entity.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := o
	return &cp, nil
}

func (s *memStore) GetMany(_ context.Context, ids []string) ([]*entity.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.Order, 0, len(ids))
	for _, id := range ids {
		if o, ok := s.orders[id]; ok {
			cp := o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) SaveAndMove(_ context.Context, o *entity.Order, from, to entity.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.orders[o.ID] = *o
	if from != "" {
		kept := s.lists[from][:0]
		for _, id := range s.lists[from] {
			if id != o.ID {
				kept = append(kept, id)
			}
		}
		s.lists[from] = kept
	}
	if to != "" {
		s.lists[to] = append(s.lists[to], o.ID)
	}
	return nil
}

func (s *memStore) BindCode(_ context.Context, code, orderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bindFn != nil && !s.bindFn(code) {
		return false, nil
	}
	if _, taken := s.codes[code]; taken {
		return false, nil
	}
	s.codes[code] = orderID
	return true, nil
}

func (s *memStore) ReleaseCode(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, code)
	return nil
}

func (s *memStore) ResolveCode(_ context.Context, code string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.codes[code]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

func (s *memStore) ListIDs(_ context.Context, state entity.Status) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lists[state]...), nil
}

func (s *memStore) listLen(state entity.Status) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lists[state])
}

// memMenu backs both Catalog and StockLedger.
type memMenu struct {
	mu    sync.Mutex
	items map[string]entity.MenuItem
	cats  []entity.Category
}

func newMemMenu(items ...entity.MenuItem) *memMenu {
	m := &memMenu{items: make(map[string]entity.MenuItem)}
	for _, it := range items {
		m.items[it.ID] = it
	}
	return m
}

func (m *memMenu) Item(_ context.Context, id string) (*entity.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &it, nil
}

func (m *memMenu) ListItems(_ context.Context) ([]entity.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entity.MenuItem, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, it)
	}
	return out, nil
}

func (m *memMenu) Adjust(_ context.Context, itemID string, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[itemID]
	if !ok {
		return 0, ErrNotFound
	}
	next := it.Stock + delta
	if next < 0 {
		next = 0
	}
	it.Stock = next
	m.items[itemID] = it
	return next, nil
}

func (m *memMenu) UpsertItem(_ context.Context, item entity.MenuItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = item
	return nil
}

func (m *memMenu) Categories(_ context.Context) ([]entity.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entity.Category(nil), m.cats...), nil
}

func (m *memMenu) UpsertCategory(_ context.Context, cat entity.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.cats {
		if c.ID == cat.ID {
			m.cats[i] = cat
			return nil
		}
	}
	m.cats = append(m.cats, cat)
	return nil
}

func (m *memMenu) stock(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id].Stock
}

type memGuard struct {
	mu   sync.Mutex
	held map[string]bool
	busy bool
}

func newMemGuard() *memGuard { return &memGuard{held: make(map[string]bool)} }

func (g *memGuard) Acquire(_ context.Context, orderID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy || g.held[orderID] {
		return false, nil
	}
	g.held[orderID] = true
	return true, nil
}

func (g *memGuard) Release(_ context.Context, orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, orderID)
	return nil
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []StatusChangedMsg
}

func (p *fakePublisher) PublishStatusChanged(_ context.Context, msg StatusChangedMsg) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

func testMenu() *memMenu {
	return newMemMenu(
		entity.MenuItem{ID: "milanesa", Name: "Milanesa al pan", Price: 4500, Stock: 10},
		entity.MenuItem{ID: "empanada", Name: "Empanada", Price: 1500, Stock: 30},
		entity.MenuItem{ID: "flan", Name: "Flan casero", Price: 2200, Stock: 3},
	)
}

func newTestEngine(menu *memMenu) (*Orders, *memStore, *memGuard, *fakePublisher) {
	st := newMemStore()
	guard := newMemGuard()
	pub := &fakePublisher{}
	u := NewOrders(st, menu, menu, guard, pub)
	// deterministic, strictly increasing clock
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	var tick int
	u.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return u, st, guard, pub
}

func mustCreate(t *testing.T, u *Orders, in CreatePendingInput) *entity.Order {
	t.Helper()
	o, err := u.CreatePending(context.Background(), in)
	if err != nil {
		t.Fatalf("CreatePending: %v", err)
	}
	return o
}

func TestCreatePendingSnapshotsCatalog(t *testing.T) {
	menu := testMenu()
	u, st, _, pub := newTestEngine(menu)

	o := mustCreate(t, u, CreatePendingInput{
		Channel:      entity.ChannelPickup,
		CustomerName: "Lucía",
		Items: []LineInput{
			{ID: "milanesa", Qty: 2},
			{ID: "empanada", Qty: 3},
		},
	})

	if o.Status != entity.StatusPendingPayment {
		t.Errorf("status = %s, want pending_payment", o.Status)
	}
	if o.Subtotal != 13500 || o.Total != 13500 {
		t.Errorf("totals = %d/%d, want 13500", o.Subtotal, o.Total)
	}
	if o.Items[0].Name != "Milanesa al pan" || o.Items[0].UnitPrice != 4500 {
		t.Errorf("line snapshot wrong: %+v", o.Items[0])
	}
	if len(o.ShortCode) != shortCodeLen {
		t.Errorf("short code %q, want %d chars", o.ShortCode, shortCodeLen)
	}
	if o.Payment.Method != entity.PaymentCash {
		t.Errorf("default payment method = %s, want cash", o.Payment.Method)
	}
	if menu.stock("milanesa") != 10 {
		t.Error("creation must not touch stock")
	}
	if st.listLen(entity.StatusPendingPayment) != 1 {
		t.Error("order must be indexed under pending_payment")
	}
	if pub.count() != 1 {
		t.Errorf("published %d events, want 1", pub.count())
	}
}

func TestCreatePendingRejectsEmptyCart(t *testing.T) {
	u, _, _, _ := newTestEngine(testMenu())
	if _, err := u.CreatePending(context.Background(), CreatePendingInput{}); !errors.Is(err, ErrNoItems) {
		t.Fatalf("got %v, want ErrNoItems", err)
	}
}

func TestCreatePendingDefaults(t *testing.T) {
	u, _, _, _ := newTestEngine(testMenu())

	o := mustCreate(t, u, CreatePendingInput{
		Channel: entity.Channel("teleport"),
		Items: []LineInput{
			{ID: "milanesa", Qty: 0},
			{ID: "ghost-item", Qty: 2},
		},
	})

	if o.Channel != entity.ChannelPickup {
		t.Errorf("channel = %s, want pickup fallback", o.Channel)
	}
	if o.Items[0].Qty != 1 {
		t.Errorf("qty = %d, want clamp to 1", o.Items[0].Qty)
	}
	if o.Items[1].UnitPrice != 0 || o.Items[1].Name != "" {
		t.Errorf("unknown item should stay at price zero: %+v", o.Items[1])
	}
	if o.Total != 4500 {
		t.Errorf("total = %d, want 4500", o.Total)
	}
}

func TestCreatePendingReleasesCodeOnSaveFailure(t *testing.T) {
	u, st, _, _ := newTestEngine(testMenu())
	st.saveErr = errors.New("store down")

	_, err := u.CreatePending(context.Background(), CreatePendingInput{
		Items: []LineInput{{ID: "milanesa", Qty: 1}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.codes) != 0 {
		t.Errorf("code left bound after failed save: %v", st.codes)
	}
}

func TestMarkPaidDebitsStockOnce(t *testing.T) {
	menu := testMenu()
	u, st, _, _ := newTestEngine(menu)
	o := mustCreate(t, u, CreatePendingInput{
		Items: []LineInput{{ID: "milanesa", Qty: 2}},
	})

	paid, err := u.MarkPaid(context.Background(), o.ID, "mp-123")
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if paid.Status != entity.StatusPaid {
		t.Errorf("status = %s, want paid", paid.Status)
	}
	if paid.Payment.PaidAt == nil {
		t.Fatal("paidAt not set")
	}
	if paid.Payment.ExternalID != "mp-123" {
		t.Errorf("externalId = %q, want mp-123", paid.Payment.ExternalID)
	}
	if menu.stock("milanesa") != 8 {
		t.Errorf("stock = %d, want 8", menu.stock("milanesa"))
	}

	firstPaidAt := *paid.Payment.PaidAt
	again, err := u.MarkPaid(context.Background(), o.ID, "mp-456")
	if err != nil {
		t.Fatalf("second MarkPaid: %v", err)
	}
	if menu.stock("milanesa") != 8 {
		t.Error("duplicate markPaid must not debit stock again")
	}
	if !again.Payment.PaidAt.Equal(firstPaidAt) {
		t.Error("duplicate markPaid must keep the original paidAt")
	}
	if again.Payment.ExternalID != "mp-123" {
		t.Error("duplicate markPaid must keep the original external id")
	}
	if st.listLen(entity.StatusPendingPayment) != 0 || st.listLen(entity.StatusPaid) != 1 {
		t.Error("order must live in exactly the paid index")
	}
}

func TestMarkPaidClampsStockAtZero(t *testing.T) {
	menu := testMenu()
	u, _, _, _ := newTestEngine(menu)
	o := mustCreate(t, u, CreatePendingInput{
		Items: []LineInput{{ID: "flan", Qty: 10}}, // only 3 in stock
	})

	if _, err := u.MarkPaid(context.Background(), o.ID, ""); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if got := menu.stock("flan"); got != 0 {
		t.Errorf("stock = %d, want floor at 0", got)
	}
}

func TestMarkPaidUnknownOrder(t *testing.T) {
	u, _, _, _ := newTestEngine(testMenu())
	if _, err := u.MarkPaid(context.Background(), "o_missing", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestSetFulfillment(t *testing.T) {
	u, st, _, _ := newTestEngine(testMenu())
	o := mustCreate(t, u, CreatePendingInput{Items: []LineInput{{ID: "empanada", Qty: 1}}})

	// fulfilling an unpaid order is a no-op
	got, err := u.SetFulfillment(context.Background(), o.ID, true)
	if err != nil {
		t.Fatalf("SetFulfillment: %v", err)
	}
	if got.Status != entity.StatusPendingPayment {
		t.Errorf("status = %s, want pending_payment unchanged", got.Status)
	}

	if _, err := u.MarkPaid(context.Background(), o.ID, ""); err != nil {
		t.Fatal(err)
	}
	got, err = u.SetFulfillment(context.Background(), o.ID, true)
	if err != nil {
		t.Fatalf("SetFulfillment: %v", err)
	}
	if got.Status != entity.StatusFulfilled || !got.Fulfillment {
		t.Errorf("got status=%s fulfillment=%v, want fulfilled/true", got.Status, got.Fulfillment)
	}
	if st.listLen(entity.StatusPaid) != 0 || st.listLen(entity.StatusFulfilled) != 1 {
		t.Error("order must move paid -> fulfilled index")
	}

	// false never un-fulfills
	got, err = u.SetFulfillment(context.Background(), o.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != entity.StatusFulfilled {
		t.Error("false must not change anything")
	}
}

func TestCancelRestoresStockFromPaid(t *testing.T) {
	menu := testMenu()
	u, st, _, _ := newTestEngine(menu)
	o := mustCreate(t, u, CreatePendingInput{Items: []LineInput{{ID: "milanesa", Qty: 4}}})
	if _, err := u.MarkPaid(context.Background(), o.ID, ""); err != nil {
		t.Fatal(err)
	}
	if menu.stock("milanesa") != 6 {
		t.Fatalf("precondition: stock = %d, want 6", menu.stock("milanesa"))
	}

	got, err := u.Cancel(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got.Status != entity.StatusCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}
	if menu.stock("milanesa") != 10 {
		t.Errorf("stock = %d, want credit back to 10", menu.stock("milanesa"))
	}
	if st.listLen(entity.StatusPaid) != 0 {
		t.Error("cancelled order must leave the paid index")
	}
}

func TestCancelPendingLeavesStock(t *testing.T) {
	menu := testMenu()
	u, st, _, _ := newTestEngine(menu)
	o := mustCreate(t, u, CreatePendingInput{Items: []LineInput{{ID: "milanesa", Qty: 4}}})

	if _, err := u.Cancel(context.Background(), o.ID); err != nil {
		t.Fatal(err)
	}
	if menu.stock("milanesa") != 10 {
		t.Error("cancelling an unpaid order must not credit stock")
	}
	if st.listLen(entity.StatusPendingPayment) != 0 {
		t.Error("cancelled order must leave the pending index")
	}
}

func TestTerminalStatesAreNoops(t *testing.T) {
	u, _, _, _ := newTestEngine(testMenu())
	o := mustCreate(t, u, CreatePendingInput{Items: []LineInput{{ID: "empanada", Qty: 1}}})
	if _, err := u.Cancel(context.Background(), o.ID); err != nil {
		t.Fatal(err)
	}

	got, err := u.MarkPaid(context.Background(), o.ID, "late")
	if err != nil {
		t.Fatalf("MarkPaid on cancelled: %v", err)
	}
	if got.Status != entity.StatusCancelled {
		t.Errorf("markPaid on cancelled changed status to %s", got.Status)
	}

	got, err = u.Cancel(context.Background(), o.ID)
	if err != nil || got.Status != entity.StatusCancelled {
		t.Errorf("double cancel: err=%v status=%s", err, got.Status)
	}

	o2 := mustCreate(t, u, CreatePendingInput{Items: []LineInput{{ID: "empanada", Qty: 1}}})
	if _, err := u.MarkPaid(context.Background(), o2.ID, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := u.SetFulfillment(context.Background(), o2.ID, true); err != nil {
		t.Fatal(err)
	}
	got, err = u.Cancel(context.Background(), o2.ID)
	if err != nil {
		t.Fatalf("Cancel on fulfilled: %v", err)
	}
	if got.Status != entity.StatusFulfilled {
		t.Errorf("cancel on fulfilled changed status to %s", got.Status)
	}
}

func TestListingAndOrdering(t *testing.T) {
	u, _, _, _ := newTestEngine(testMenu())
	ctx := context.Background()

	a := mustCreate(t, u, CreatePendingInput{Items: []LineInput{{ID: "empanada", Qty: 1}}})
	b := mustCreate(t, u, CreatePendingInput{Items: []LineInput{{ID: "empanada", Qty: 2}}})
	c := mustCreate(t, u, CreatePendingInput{Items: []LineInput{{ID: "empanada", Qty: 3}}})
	if _, err := u.MarkPaid(ctx, b.ID, ""); err != nil {
		t.Fatal(err)
	}

	pending, err := u.ListByState(ctx, entity.StatusPendingPayment)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 || pending[0].ID != a.ID || pending[1].ID != c.ID {
		t.Errorf("pending list wrong: %v", ids(pending))
	}

	paid, err := u.ListByState(ctx, entity.StatusPaid)
	if err != nil {
		t.Fatal(err)
	}
	if len(paid) != 1 || paid[0].ID != b.ID {
		t.Errorf("paid list wrong: %v", ids(paid))
	}

	all, err := u.ListAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("ListAll = %d orders, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAt.Before(all[i-1].CreatedAt) {
			t.Error("ListAll must be oldest first")
		}
	}

	if got, _ := u.ListByState(ctx, entity.StatusCancelled); got != nil {
		t.Error("cancelled is never indexed")
	}
	if got, _ := u.ListByState(ctx, entity.Status("bogus")); got != nil {
		t.Error("unknown state must list nothing")
	}
}

func ids(orders []*entity.Order) []string {
	out := make([]string, len(orders))
	for i, o := range orders {
		out[i] = o.ID
	}
	return out
}

func TestGetByCodeNormalization(t *testing.T) {
	u, _, _, _ := newTestEngine(testMenu())
	ctx := context.Background()
	o := mustCreate(t, u, CreatePendingInput{Items: []LineInput{{ID: "empanada", Qty: 1}}})

	for _, code := range []string{
		o.ShortCode,
		strings.ToLower(o.ShortCode),
		"  " + o.ShortCode + "  ",
		o.ShortCode + "," + o.ShortCode, // provider return URLs echo the reference twice
		"," + o.ShortCode,
	} {
		got, err := u.GetByCode(ctx, code)
		if err != nil {
			t.Errorf("GetByCode(%q): %v", code, err)
			continue
		}
		if got.ID != o.ID {
			t.Errorf("GetByCode(%q) resolved %s, want %s", code, got.ID, o.ID)
		}
	}

	if _, err := u.GetByCode(ctx, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty code: got %v, want ErrNotFound", err)
	}
	if _, err := u.GetByCode(ctx, "ZZZZZZ"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown code: got %v, want ErrNotFound", err)
	}
}

func TestShortCodesStayUnique(t *testing.T) {
	u, st, _, _ := newTestEngine(testMenu())
	const n = 1000
	for i := 0; i < n; i++ {
		mustCreate(t, u, CreatePendingInput{Items: []LineInput{{ID: "empanada", Qty: 1}}})
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.codes) != n {
		t.Errorf("%d codes bound for %d orders", len(st.codes), n)
	}
}

func TestReserveCodeFallsBackWhenExhausted(t *testing.T) {
	u, st, _, _ := newTestEngine(testMenu())
	// store rejects every 6-char candidate, as if that space were saturated
	st.bindFn = func(code string) bool { return len(code) > shortCodeLen }

	o := mustCreate(t, u, CreatePendingInput{Items: []LineInput{{ID: "empanada", Qty: 1}}})
	if len(o.ShortCode) <= shortCodeLen {
		t.Fatalf("expected fallback code, got %q", o.ShortCode)
	}
	if !strings.HasPrefix(o.ShortCode, "X") {
		t.Errorf("fallback code %q should start with X", o.ShortCode)
	}
}

func TestBusyLeaseReportsCurrentState(t *testing.T) {
	menu := testMenu()
	u, _, guard, _ := newTestEngine(menu)
	o := mustCreate(t, u, CreatePendingInput{Items: []LineInput{{ID: "milanesa", Qty: 1}}})

	guard.busy = true
	got, err := u.MarkPaid(context.Background(), o.ID, "mp-1")
	if err != nil {
		t.Fatalf("MarkPaid under busy lease: %v", err)
	}
	if got.Status != entity.StatusPendingPayment {
		t.Errorf("status = %s, want unchanged pending_payment", got.Status)
	}
	if menu.stock("milanesa") != 10 {
		t.Error("busy lease must not touch stock")
	}
}
