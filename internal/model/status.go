package model

// LegStatus is the closed set of per-leg states. The source of truth for
// transitions is CanTransitionTo; callers never compare raw strings.
type LegStatus string

const (
	// LegDormant is a SUPER exit leg waiting for its entry to fill. It is
	// not visible to the broker as a working order yet.
	LegDormant LegStatus = "DORMANT"

	LegPending   LegStatus = "PENDING"
	LegTriggered LegStatus = "TRIGGERED"
	LegPartTraded LegStatus = "PART_TRADED"
	LegTraded    LegStatus = "TRADED"
	LegCancelled LegStatus = "CANCELLED"
	LegRejected  LegStatus = "REJECTED"
)

// Terminal reports whether the status is final. Terminal legs are frozen:
// identical redelivery is a no-op, anything else is a StaleUpdateError.
func (s LegStatus) Terminal() bool {
	return s == LegTraded || s == LegCancelled || s == LegRejected
}

// legNext enumerates the allowed forward transitions.
var legNext = map[LegStatus][]LegStatus{
	LegDormant:    {LegPending, LegCancelled, LegRejected},
	LegPending:    {LegTriggered, LegPartTraded, LegTraded, LegCancelled, LegRejected},
	LegTriggered:  {LegPartTraded, LegTraded, LegCancelled, LegRejected},
	LegPartTraded: {LegPartTraded, LegTraded, LegCancelled, LegRejected},
	LegTraded:     nil,
	LegCancelled:  nil,
	LegRejected:   nil,
}

// CanTransitionTo reports whether s may move to next. PART_TRADED may
// repeat (successive partial fills).
func (s LegStatus) CanTransitionTo(next LegStatus) bool {
	for _, n := range legNext[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known leg status.
func (s LegStatus) Valid() bool {
	_, ok := legNext[s]
	return ok
}

// OrderStatus is the derived order-level status (see Order.Status).
type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderPartTraded OrderStatus = "PART_TRADED"
	OrderTraded     OrderStatus = "TRADED"
	OrderClosed     OrderStatus = "CLOSED"
	OrderCancelled  OrderStatus = "CANCELLED"
	OrderRejected   OrderStatus = "REJECTED"
)

// Terminal reports whether the order-level status is final.
func (s OrderStatus) Terminal() bool {
	return s == OrderClosed || s == OrderCancelled || s == OrderRejected
}
