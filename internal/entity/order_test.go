package entity

import "testing"

func TestCanTransition(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusPendingPayment, StatusPaid}:      true,
		{StatusPendingPayment, StatusCancelled}: true,
		{StatusPaid, StatusFulfilled}:           true,
		{StatusPaid, StatusCancelled}:           true,
	}
	states := []Status{StatusPendingPayment, StatusPaid, StatusFulfilled, StatusCancelled}
	for _, from := range states {
		for _, to := range states {
			want := allowed[[2]Status{from, to}]
			if got := from.CanTransition(to); got != want {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminal(t *testing.T) {
	if StatusPendingPayment.Terminal() || StatusPaid.Terminal() {
		t.Error("pending_payment and paid must not be terminal")
	}
	if !StatusFulfilled.Terminal() || !StatusCancelled.Terminal() {
		t.Error("fulfilled and cancelled must be terminal")
	}
}

func TestChannelValid(t *testing.T) {
	for _, c := range []Channel{ChannelPickup, ChannelDelivery, ChannelInStore} {
		if !c.Valid() {
			t.Errorf("%s should be valid", c)
		}
	}
	if Channel("drive-thru").Valid() || Channel("").Valid() {
		t.Error("unknown channels should be invalid")
	}
}

func TestTotals(t *testing.T) {
	sub, total := Totals([]OrderItem{
		{ID: "empanada", UnitPrice: 1500, Qty: 3},
		{ID: "gaseosa", UnitPrice: 2000, Qty: 2},
	})
	if sub != 8500 || total != 8500 {
		t.Errorf("got subtotal=%d total=%d, want 8500/8500", sub, total)
	}

	sub, total = Totals(nil)
	if sub != 0 || total != 0 {
		t.Errorf("empty lines: got %d/%d, want 0/0", sub, total)
	}
}

func TestAvailabilityOf(t *testing.T) {
	cases := []struct {
		stock, low int
		want       Availability
	}{
		{0, 5, AvailabilitySoldOut},
		{-2, 0, AvailabilitySoldOut},
		{3, 5, AvailabilityLimited},
		{5, 5, AvailabilityLimited},
		{6, 5, AvailabilityInStock},
		{3, 0, AvailabilityInStock},
	}
	for _, c := range cases {
		if got := AvailabilityOf(c.stock, c.low); got != c.want {
			t.Errorf("AvailabilityOf(%d, %d) = %s, want %s", c.stock, c.low, got, c.want)
		}
	}
}

func TestMenuItemIsActive(t *testing.T) {
	var m MenuItem
	if !m.IsActive() {
		t.Error("missing flag should read as active")
	}
	f := false
	m.Active = &f
	if m.IsActive() {
		t.Error("explicit false should read as inactive")
	}
}
