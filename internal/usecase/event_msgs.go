package usecase

import "time"

// StatusChangedMsg is published on the order.events exchange after every
// successful transition (including creation into pending_payment).
type StatusChangedMsg struct {
	OrderID   string    `json:"orderId"`
	ShortCode string    `json:"shortCode"`
	Status    string    `json:"status"`
	Channel   string    `json:"channel"`
	Total     int64     `json:"total"`
	At        time.Time `json:"at"`
}

// PaymentEventMsg arrives from the payment relay on Kafka. ExternalReference
// carries the order short code the preference was created with.
type PaymentEventMsg struct {
	EventID           string `json:"eventId"`
	PaymentID         string `json:"paymentId"`
	Status            string `json:"status"` // approved | pending | rejected
	ExternalReference string `json:"externalReference"`
}
