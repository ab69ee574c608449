// Package order holds the in-memory aggregate mirroring the broker's
// last-known state for one conditional order, and the Book registry that
// indexes aggregates by order ID and security.
//
// An Aggregate is owned by the per-order event stream (see dispatch): all
// mutation goes through its Apply* methods on that stream, so the aggregate
// itself carries no lock.
package order

import (
	"time"

	"order-systemv1/internal/model"
)

// Aggregate wraps one Order and enforces update legality: fills only grow,
// terminal legs are frozen, and broker updates apply in sequence order.
type Aggregate struct {
	ord model.Order
}

// New wraps a validated, broker-acknowledged order.
func New(ord model.Order) *Aggregate {
	return &Aggregate{ord: ord}
}

// Snapshot returns a deep copy of the current state.
func (a *Aggregate) Snapshot() model.Order {
	return a.ord.Clone()
}

// OrderID returns the broker order id.
func (a *Aggregate) OrderID() string { return a.ord.OrderID }

// Status returns the derived order-level status.
func (a *Aggregate) Status() model.OrderStatus { return a.ord.Status() }

// ApplyLegUpdate applies one broker-reported leg status change. It is the
// only way leg state changes from the broker side.
//
// Returns changed=false for duplicate or out-of-order deliveries (seq at or
// below the last applied) and for identical terminal redeliveries; both are
// no-ops, not errors. An update that would un-terminate a leg, shrink its
// filled quantity, or overfill it is a StaleUpdateError.
func (a *Aggregate) ApplyLegUpdate(u model.LegUpdate) (bool, error) {
	leg := a.ord.Leg(u.Leg)
	if leg == nil {
		return false, &model.PreconditionError{
			Op: "leg_update", OrderID: a.ord.OrderID, Leg: u.Leg,
			Reason: "order has no such leg",
		}
	}

	if u.Seq != 0 && u.Seq <= a.ord.LastSeq {
		return false, nil // duplicate or out-of-order delivery
	}

	if leg.Status.Terminal() {
		if u.Status == leg.Status && u.FilledQty == leg.FilledQty {
			a.noteSeq(u.Seq)
			return false, nil // broker redelivered the terminal state
		}
		return false, &model.StaleUpdateError{
			OrderID: a.ord.OrderID, Leg: u.Leg, From: leg.Status, To: u.Status,
			Reason: "leg already terminal",
		}
	}

	if u.FilledQty < leg.FilledQty {
		return false, &model.StaleUpdateError{
			OrderID: a.ord.OrderID, Leg: u.Leg, From: leg.Status, To: u.Status,
			Reason: "filled quantity decreased",
		}
	}
	if u.FilledQty > leg.Qty {
		return false, &model.StaleUpdateError{
			OrderID: a.ord.OrderID, Leg: u.Leg, From: leg.Status, To: u.Status,
			Reason: "filled quantity exceeds allotted quantity",
		}
	}

	if u.Status != leg.Status && !leg.Status.CanTransitionTo(u.Status) {
		return false, &model.StaleUpdateError{
			OrderID: a.ord.OrderID, Leg: u.Leg, From: leg.Status, To: u.Status,
			Reason: "transition not permitted",
		}
	}

	leg.Status = u.Status
	leg.FilledQty = u.FilledQty
	leg.UpdatedAt = u.TS

	// Entry fill arms the dormant exit legs of a SUPER order.
	if u.Leg == model.LegEntry &&
		(u.Status == model.LegTraded || u.Status == model.LegPartTraded) {
		a.armExitLegs(u.TS)
	}

	a.noteSeq(u.Seq)
	a.ord.UpdatedAt = u.TS
	return true, nil
}

func (a *Aggregate) armExitLegs(ts time.Time) {
	for _, role := range []model.LegRole{model.LegTarget, model.LegStopLoss} {
		if l := a.ord.Leg(role); l != nil && l.Status == model.LegDormant {
			l.Status = model.LegPending
			l.UpdatedAt = ts
		}
	}
}

func (a *Aggregate) noteSeq(seq int64) {
	if seq > a.ord.LastSeq {
		a.ord.LastSeq = seq
	}
}

// ApplyModify applies broker-acknowledged field changes to the named leg.
// Target/stop prices address their own legs regardless of which leg the
// modify was issued against, mirroring the broker's behavior.
func (a *Aggregate) ApplyModify(leg model.LegRole, fields model.ModifyFields) error {
	l := a.ord.Leg(leg)
	if l == nil {
		return &model.PreconditionError{
			Op: "modify", OrderID: a.ord.OrderID, Leg: leg,
			Reason: "order has no such leg",
		}
	}
	if l.Status.Terminal() {
		return &model.PreconditionError{
			Op: "modify", OrderID: a.ord.OrderID, Leg: leg,
			Reason: "leg is terminal",
		}
	}

	if fields.Qty != nil {
		l.Qty = *fields.Qty
	}
	if fields.Price != nil {
		l.Price = *fields.Price
	}
	if fields.TriggerPrice != nil {
		l.TriggerPrice = *fields.TriggerPrice
	}
	if fields.DisclosedQty != nil {
		l.DisclosedQty = *fields.DisclosedQty
	}
	if fields.TargetPrice != nil {
		if t := a.ord.Leg(model.LegTarget); t != nil && !t.Status.Terminal() {
			t.Price = *fields.TargetPrice
		}
	}
	if fields.StopLossPrice != nil {
		if s := a.ord.Leg(model.LegStopLoss); s != nil && !s.Status.Terminal() {
			s.TriggerPrice = *fields.StopLossPrice
		}
	}
	if fields.TrailingJump != nil {
		if s := a.ord.Leg(model.LegStopLoss); s != nil {
			s.TrailingJump = *fields.TrailingJump
		}
	}

	now := time.Now().UTC()
	l.UpdatedAt = now
	a.ord.UpdatedAt = now
	return nil
}

// ApplyCancel marks legs cancelled after a broker-acknowledged cancel.
// With leg == "" every non-terminal leg is cancelled (whole-order cancel);
// otherwise only the named leg. Already-terminal legs are left untouched,
// which makes re-application idempotent.
func (a *Aggregate) ApplyCancel(leg model.LegRole) {
	now := time.Now().UTC()
	for i := range a.ord.Legs {
		l := &a.ord.Legs[i]
		if leg != "" && l.Role != leg {
			continue
		}
		if l.Status.Terminal() {
			continue
		}
		l.Status = model.LegCancelled
		l.UpdatedAt = now
	}
	a.ord.UpdatedAt = now
}

// InvariantViolations re-evaluates the price and quantity invariants against
// the current leg prices. A broker-side inconsistency (for example a fill
// that breaks the target/stop ordering) is surfaced here, never hidden.
func (a *Aggregate) InvariantViolations() []model.FieldViolation {
	var viols []model.FieldViolation

	for i := range a.ord.Legs {
		l := &a.ord.Legs[i]
		if l.Qty <= 0 {
			viols = append(viols, model.FieldViolation{
				Field: "quantity", Code: "gt",
				Message: string(l.Role) + " quantity must be positive",
			})
		}
		if l.FilledQty > l.Qty {
			viols = append(viols, model.FieldViolation{
				Field: "filledQty", Code: "lte",
				Message: string(l.Role) + " filled quantity exceeds allotted",
			})
		}
		if l.TrailingJump < 0 {
			viols = append(viols, model.FieldViolation{
				Field: "trailingJump", Code: "gte",
				Message: "trailing jump must be >= 0",
			})
		}
		if l.TrailingJump > 0 && l.Role != model.LegStopLoss {
			viols = append(viols, model.FieldViolation{
				Field: "trailingJump", Code: "leg",
				Message: "trailing jump set on non-stop leg",
			})
		}
		viols = append(viols, model.DisclosedViolations(l.DisclosedQty, l.Qty)...)
	}

	entry, target, stop := a.ord.Leg(model.LegEntry), a.ord.Leg(model.LegTarget), a.ord.Leg(model.LegStopLoss)
	switch {
	case a.ord.Kind == model.KindSuper && entry != nil && target != nil && stop != nil:
		// Ordering only matters while both exits are still working.
		if !target.Status.Terminal() && !stop.Status.Terminal() {
			viols = append(viols, model.PriceOrderViolations(
				a.ord.Direction, model.LegRef(entry), model.LegRef(target), model.LegRef(stop))...)
		}
	case a.ord.Kind == model.KindForever && a.ord.Flag == model.FlagOCO && target != nil && stop != nil:
		if !target.Status.Terminal() && !stop.Status.Terminal() {
			viols = append(viols, model.OCOOrderViolations(
				a.ord.Direction, model.LegRef(stop), model.LegRef(target), "price1")...)
		}
	}
	return viols
}
