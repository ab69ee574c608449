// Package coordinator resolves cancellation intents: whether a cancel
// request addresses the whole order (cascading to every leg) or a single
// secondary leg, and when an OCO sibling must be auto-cancelled.
//
// Resolution is pure; the gateway call and the aggregate mutation happen in
// the service layer once the intent is resolved.
package coordinator

import (
	"order-systemv1/internal/model"
)

// Scope says how far a cancel reaches.
type Scope string

const (
	// ScopeOrder cancels every non-terminal leg together. The caller sees
	// success only after the broker acknowledges the whole-order cancel.
	ScopeOrder Scope = "ORDER"

	// ScopeLeg cancels one exit leg; the order stays active on its sibling.
	ScopeLeg Scope = "LEG"
)

// CancelIntent is a resolved, broker-ready cancellation.
type CancelIntent struct {
	OrderID string
	Kind    model.OrderKind
	Scope   Scope
	Leg     model.LegRole // set for ScopeLeg
}

// Resolve maps (order, legRole?) to a CancelIntent.
//
//   - leg omitted, or ENTRY_LEG while entry is unfilled: whole-order cancel.
//   - TARGET_LEG / STOP_LOSS_LEG after entry fill: that leg only.
//
// Anything else is a PreconditionError, never a silent ignore.
func Resolve(ord *model.Order, leg model.LegRole) (CancelIntent, error) {
	if ord.Terminal() {
		return CancelIntent{}, &model.PreconditionError{
			Op: "cancel", OrderID: ord.OrderID, Leg: leg,
			Reason: "order is terminal",
		}
	}

	if leg == "" {
		return CancelIntent{OrderID: ord.OrderID, Kind: ord.Kind, Scope: ScopeOrder}, nil
	}

	if !leg.Valid() {
		return CancelIntent{}, &model.PreconditionError{
			Op: "cancel", OrderID: ord.OrderID, Leg: leg,
			Reason: "unknown leg role",
		}
	}

	l := ord.Leg(leg)
	if l == nil {
		return CancelIntent{}, &model.PreconditionError{
			Op: "cancel", OrderID: ord.OrderID, Leg: leg,
			Reason: "order has no such leg",
		}
	}

	if leg == model.LegEntry {
		if ord.EntryFilled() {
			return CancelIntent{}, &model.PreconditionError{
				Op: "cancel", OrderID: ord.OrderID, Leg: leg,
				Reason: "entry already filled; cancel TARGET_LEG or STOP_LOSS_LEG instead",
			}
		}
		// Cancelling an unfilled entry takes the whole order with it.
		return CancelIntent{OrderID: ord.OrderID, Kind: ord.Kind, Scope: ScopeOrder}, nil
	}

	// TARGET / STOP_LOSS: only addressable once armed.
	if l.Status == model.LegDormant || !ord.EntryFilled() {
		return CancelIntent{}, &model.PreconditionError{
			Op: "cancel", OrderID: ord.OrderID, Leg: leg,
			Reason: "leg not armed: entry has not filled",
		}
	}
	if l.Status.Terminal() {
		return CancelIntent{}, &model.PreconditionError{
			Op: "cancel", OrderID: ord.OrderID, Leg: leg,
			Reason: "leg already " + string(l.Status),
		}
	}

	return CancelIntent{OrderID: ord.OrderID, Kind: ord.Kind, Scope: ScopeLeg, Leg: leg}, nil
}

// SiblingToAutoCancel implements the one automatic cascade: when one leg of
// a target/stop pair trades, the survivor is cancelled. Returns the sibling
// role and true when a cancel should be issued; false when there is nothing
// to do (no sibling, or the sibling is already terminal), which makes
// repeated application a no-op.
func SiblingToAutoCancel(ord *model.Order, tradedLeg model.LegRole) (model.LegRole, bool) {
	sib := tradedLeg.Sibling()
	if sib == "" {
		return "", false
	}
	l := ord.Leg(sib)
	if l == nil || l.Status.Terminal() || l.Status == model.LegDormant {
		return "", false
	}
	return sib, true
}
