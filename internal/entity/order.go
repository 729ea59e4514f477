package entity

import "time"

type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusPaid           Status = "paid"
	StatusFulfilled      Status = "fulfilled"
	StatusCancelled      Status = "cancelled"
)

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusFulfilled || s == StatusCancelled
}

// CanTransition reports whether s -> next is an allowed edge of the
// lifecycle DAG. Re-entering the same state is not an edge; callers treat
// it as an idempotent no-op.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPendingPayment:
		return next == StatusPaid || next == StatusCancelled
	case StatusPaid:
		return next == StatusFulfilled || next == StatusCancelled
	default:
		return false
	}
}

type Channel string

const (
	ChannelPickup   Channel = "pickup"
	ChannelDelivery Channel = "delivery"
	ChannelInStore  Channel = "in-store"
)

func (c Channel) Valid() bool {
	return c == ChannelPickup || c == ChannelDelivery || c == ChannelInStore
}

type PaymentMethod string

const (
	PaymentOnline PaymentMethod = "online"
	PaymentCash   PaymentMethod = "cash"
)

// OrderItem is a line-item snapshot. UnitPrice is captured from the menu at
// creation time and never recomputed afterwards.
type OrderItem struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	UnitPrice int64  `json:"unitPrice"`
	Qty       int    `json:"qty"`
}

type Payment struct {
	Method     PaymentMethod `json:"method"`
	ExternalID string        `json:"externalId,omitempty"`
	PaidAt     *time.Time    `json:"paidAt,omitempty"`
}

// Order is the aggregate root. It is persisted as a single JSON record; all
// fields other than Status, Fulfillment, Payment and UpdatedAt are immutable
// after creation.
type Order struct {
	ID           string      `json:"id"`
	ShortCode    string      `json:"shortCode"`
	Status       Status      `json:"status"`
	Fulfillment  bool        `json:"fulfillment"`
	Channel      Channel     `json:"channel"`
	Items        []OrderItem `json:"items"`
	Subtotal     int64       `json:"subtotal"`
	Total        int64       `json:"total"`
	CustomerName string      `json:"customerName,omitempty"`
	Payment      Payment     `json:"payment"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// Totals sums unitPrice*qty over the given lines. Subtotal and total are the
// same value while no fee model exists.
func Totals(items []OrderItem) (subtotal, total int64) {
	for _, it := range items {
		subtotal += it.UnitPrice * int64(it.Qty)
	}
	return subtotal, subtotal
}
