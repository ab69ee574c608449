// Package trailing recomputes stop-loss triggers as the market moves in the
// trader's favor.
//
// The numeric convention is a configurable policy because brokers differ:
//
//   - PolicyLadder (default): the stop advances by whole trailingJump steps.
//     A per-order reference price starts at the entry price; each time the
//     LTP clears the reference by one jump (or more), the stop and the
//     reference both move by that many jumps.
//   - PolicyOffset: the stop follows the high-water mark (low-water for
//     SELL) at the fixed distance captured at placement (entry minus initial
//     stop), jump acting only as the arming threshold.
//
// Under either policy the stop never moves against the position and an
// intent is only emitted when the computed stop differs from the current
// one. Candidates are clamped one tick inside the entry price so a trailing
// move can never break the target/entry/stop ordering.
package trailing

import (
	"sync"

	"order-systemv1/internal/model"
)

// Policy selects the stop recomputation convention.
type Policy string

const (
	PolicyLadder Policy = "ladder"
	PolicyOffset Policy = "offset"
)

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool {
	return p == PolicyLadder || p == PolicyOffset
}

// minTickPaise is the NSE price tick (5 paise); candidates are clamped one
// tick inside the entry price.
const minTickPaise = 5

// ModifyIntent proposes a new stop trigger for an order's STOP_LOSS_LEG.
// It re-enters the regular validate -> gateway -> aggregate path.
type ModifyIntent struct {
	OrderID string
	NewStop int64 // paise
}

type trailState struct {
	ref    int64 // ladder: last cleared rung; offset: high/low-water mark
	offset int64 // offset policy: fixed entry-to-stop distance
}

// Engine tracks per-order trail state. Observe is called on the order's
// serialized event stream; the internal lock only protects the state map
// across orders.
type Engine struct {
	policy Policy

	mu     sync.Mutex
	states map[string]*trailState
}

// New creates an engine with the given policy.
func New(policy Policy) *Engine {
	if !policy.Valid() {
		policy = PolicyLadder
	}
	return &Engine{
		policy: policy,
		states: make(map[string]*trailState),
	}
}

// Observe consumes one LTP observation for an order snapshot and returns a
// modify intent when the stop should move. ok is false when the order has no
// active trailing stop or the computed stop is unchanged.
func (e *Engine) Observe(ord model.Order, ltp int64) (ModifyIntent, bool) {
	stop := ord.Leg(model.LegStopLoss)
	entry := ord.Leg(model.LegEntry)
	if stop == nil || entry == nil || stop.TrailingJump <= 0 || ltp <= 0 {
		return ModifyIntent{}, false
	}
	if stop.Status.Terminal() || stop.Status == model.LegDormant {
		return ModifyIntent{}, false
	}
	if st := ord.Status(); st.Terminal() {
		return ModifyIntent{}, false
	}

	entryRef := model.LegRef(entry)
	curStop := stop.TriggerPrice
	if curStop == 0 {
		curStop = stop.Price
	}
	if entryRef <= 0 || curStop <= 0 {
		return ModifyIntent{}, false
	}

	e.mu.Lock()
	s, ok := e.states[ord.OrderID]
	if !ok {
		s = &trailState{ref: entryRef, offset: abs(entryRef - curStop)}
		e.states[ord.OrderID] = s
	}
	e.mu.Unlock()

	var cand int64
	jump := stop.TrailingJump

	switch e.policy {
	case PolicyOffset:
		switch ord.Direction {
		case model.DirectionBuy:
			if ltp <= s.ref {
				return ModifyIntent{}, false
			}
			s.ref = ltp
			cand = ltp - s.offset
		case model.DirectionSell:
			if ltp >= s.ref {
				return ModifyIntent{}, false
			}
			s.ref = ltp
			cand = ltp + s.offset
		default:
			return ModifyIntent{}, false
		}

	default: // PolicyLadder
		switch ord.Direction {
		case model.DirectionBuy:
			steps := (ltp - s.ref) / jump
			if steps < 1 {
				return ModifyIntent{}, false
			}
			s.ref += steps * jump
			cand = curStop + steps*jump
		case model.DirectionSell:
			steps := (s.ref - ltp) / jump
			if steps < 1 {
				return ModifyIntent{}, false
			}
			s.ref -= steps * jump
			cand = curStop - steps*jump
		default:
			return ModifyIntent{}, false
		}
	}

	// Clamp inside the entry price so the ordering invariant holds.
	switch ord.Direction {
	case model.DirectionBuy:
		if cand >= entryRef {
			cand = entryRef - minTickPaise
		}
		if cand <= curStop {
			return ModifyIntent{}, false // never lower the stop on a BUY
		}
	case model.DirectionSell:
		if cand <= entryRef {
			cand = entryRef + minTickPaise
		}
		if cand >= curStop {
			return ModifyIntent{}, false // never raise the stop on a SELL
		}
	}

	return ModifyIntent{OrderID: ord.OrderID, NewStop: cand}, true
}

// Forget drops trail state for a terminal order.
func (e *Engine) Forget(orderID string) {
	e.mu.Lock()
	delete(e.states, orderID)
	e.mu.Unlock()
}

// Tracked returns the number of orders with trail state (for metrics).
func (e *Engine) Tracked() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.states)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
