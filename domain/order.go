package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem is one line of the priced cart snapshot. Prices are integer
// minor units (cents); unit price is fixed when the order is created and
// never re-read from the catalog or the client afterwards.
type OrderItem struct {
	Name           string   `json:"name"`
	UnitPriceCents int64    `json:"unit_price_cents"`
	Quantity       int32    `json:"quantity"`
	Options        []string `json:"options,omitempty"`
	Note           string   `json:"note,omitempty"`
}

func (i OrderItem) Subtotal() int64 {
	return i.UnitPriceCents * int64(i.Quantity)
}

type Order struct {
	ID            uuid.UUID
	CustomerEmail string
	Items         []OrderItem
	TotalCents    int64
	Currency      string
	Status        OrderStatus
	// SessionRef is the provider's checkout-session id. Empty until the
	// session is created; stays empty when the provider call fails.
	SessionRef    string
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewPendingOrder allocates the order identity and computes the total from
// the items. The id exists before any provider call so a session the
// customer can see always has an order row behind it.
func NewPendingOrder(items []OrderItem, customerEmail string) *Order {
	var total int64
	for _, item := range items {
		total += item.Subtotal()
	}
	return &Order{
		ID:            uuid.New(),
		CustomerEmail: customerEmail,
		Items:         items,
		TotalCents:    total,
		Currency:      "usd",
		Status:        OrderStatusPending,
	}
}
