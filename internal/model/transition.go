package model

var orderTransitions = map[OrderStatus]map[OrderStatus]struct{}{
	OrderStatusPending: {
		OrderStatusPaid:      {},
		OrderStatusFailed:    {},
		OrderStatusCancelled: {},
	},
	OrderStatusPaid:      {},
	OrderStatusFailed:    {},
	OrderStatusCancelled: {},
}

// CanTransition returns whether an order may move from s to the target status.
// Staying in the same status is always allowed and is a no-op for callers.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	if s == to {
		return true
	}
	allowed, ok := orderTransitions[s]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// IsTerminal reports whether no further transitions leave s.
func (s OrderStatus) IsTerminal() bool {
	allowed, ok := orderTransitions[s]
	return ok && len(allowed) == 0
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}
