package entity

// MenuItem is owned by the catalog. The order engine only reads price/name
// from it at creation time and adjusts Stock through the ledger.
type MenuItem struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	CategoryID        string `json:"categoryId"`
	Price             int64  `json:"price"`
	ImageURL          string `json:"imageUrl,omitempty"`
	Stock             int    `json:"stock"`
	LowStockThreshold int    `json:"lowStockThreshold,omitempty"`
	Active            *bool  `json:"active,omitempty"`
}

// IsActive treats a missing flag as active, matching how items created
// before the flag existed are stored.
func (m MenuItem) IsActive() bool {
	return m.Active == nil || *m.Active
}

type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order,omitempty"`
}

type Availability string

const (
	AvailabilitySoldOut Availability = "sold-out"
	AvailabilityLimited Availability = "limited"
	AvailabilityInStock Availability = "in-stock"
)

// AvailabilityOf labels an item from its stock level: 0 is sold out, at or
// below a positive threshold is limited, anything else in stock.
func AvailabilityOf(stock, lowThreshold int) Availability {
	switch {
	case stock <= 0:
		return AvailabilitySoldOut
	case lowThreshold > 0 && stock <= lowThreshold:
		return AvailabilityLimited
	default:
		return AvailabilityInStock
	}
}
