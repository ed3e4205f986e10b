package domain

type OrderStatus string

const (
	OrderStatusPending OrderStatus = "PENDING"
	OrderStatusPaid    OrderStatus = "PAID"
	OrderStatusFailed  OrderStatus = "FAILED"
)

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid || s == OrderStatusFailed
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether moving from s to target changes the order.
// PAID is absorbing. FAILED may still become PAID: the provider allows a
// retried payment to succeed on the same session after a declined attempt.
// A transition to the state the order is already in is not an error, it is
// simply not applied (webhook delivery is at-least-once).
func CanTransitionTo(s, target OrderStatus) bool {
	switch target {
	case OrderStatusPaid:
		return s == OrderStatusPending || s == OrderStatusFailed
	case OrderStatusFailed:
		return s == OrderStatusPending
	default:
		return false
	}
}
