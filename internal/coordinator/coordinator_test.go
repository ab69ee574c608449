package coordinator

import (
	"errors"
	"testing"

	"order-systemv1/internal/model"
)

func superOrder(entryStatus model.LegStatus, exitStatus model.LegStatus) *model.Order {
	filled := int64(0)
	if entryStatus == model.LegTraded {
		filled = 10
	}
	return &model.Order{
		OrderID:   "112111182045",
		Direction: model.DirectionBuy,
		Kind:      model.KindSuper,
		Qty:       10,
		Legs: []model.Leg{
			{Role: model.LegEntry, Price: 10000, Qty: 10, Status: entryStatus, FilledQty: filled},
			{Role: model.LegTarget, Price: 11000, Qty: 10, Status: exitStatus},
			{Role: model.LegStopLoss, TriggerPrice: 9500, Qty: 10, Status: exitStatus},
		},
	}
}

func TestCancelBeforeEntryFillIsWholeOrder(t *testing.T) {
	ord := superOrder(model.LegPending, model.LegDormant)

	for _, leg := range []model.LegRole{"", model.LegEntry} {
		intent, err := Resolve(ord, leg)
		if err != nil {
			t.Fatalf("leg=%q: %v", leg, err)
		}
		if intent.Scope != ScopeOrder {
			t.Errorf("leg=%q: got scope %s, want ORDER", leg, intent.Scope)
		}
	}
}

func TestCancelExitLegAfterEntryFill(t *testing.T) {
	ord := superOrder(model.LegTraded, model.LegPending)

	intent, err := Resolve(ord, model.LegTarget)
	if err != nil {
		t.Fatal(err)
	}
	if intent.Scope != ScopeLeg || intent.Leg != model.LegTarget {
		t.Fatalf("got %+v, want leg-scope TARGET_LEG", intent)
	}
}

func TestCancelUnarmedLegIsPrecondition(t *testing.T) {
	ord := superOrder(model.LegPending, model.LegDormant)

	_, err := Resolve(ord, model.LegTarget)
	var pre *model.PreconditionError
	if !errors.As(err, &pre) {
		t.Fatalf("cancelling dormant target should be PreconditionError, got %v", err)
	}
}

func TestCancelEntryAfterFillIsPrecondition(t *testing.T) {
	ord := superOrder(model.LegTraded, model.LegPending)

	_, err := Resolve(ord, model.LegEntry)
	var pre *model.PreconditionError
	if !errors.As(err, &pre) {
		t.Fatalf("cancelling filled entry should be PreconditionError, got %v", err)
	}
}

func TestCancelTerminalOrderIsPrecondition(t *testing.T) {
	ord := superOrder(model.LegTraded, model.LegPending)
	for i := range ord.Legs {
		ord.Legs[i].Status = model.LegCancelled
	}
	ord.Legs[0].Status = model.LegTraded

	_, err := Resolve(ord, "")
	var pre *model.PreconditionError
	if !errors.As(err, &pre) {
		t.Fatalf("cancelling terminal order should be PreconditionError, got %v", err)
	}
}

func TestCancelTerminalLegIsPrecondition(t *testing.T) {
	ord := superOrder(model.LegTraded, model.LegPending)
	ord.Leg(model.LegTarget).Status = model.LegCancelled

	_, err := Resolve(ord, model.LegTarget)
	var pre *model.PreconditionError
	if !errors.As(err, &pre) {
		t.Fatalf("re-cancelling cancelled leg should be PreconditionError, got %v", err)
	}
}

func TestSiblingAutoCancel(t *testing.T) {
	ord := superOrder(model.LegTraded, model.LegPending)
	ord.Leg(model.LegTarget).Status = model.LegTraded

	sib, ok := SiblingToAutoCancel(ord, model.LegTarget)
	if !ok || sib != model.LegStopLoss {
		t.Fatalf("got (%s,%v), want (STOP_LOSS_LEG,true)", sib, ok)
	}

	// Once the sibling is cancelled, re-application is a no-op.
	ord.Leg(model.LegStopLoss).Status = model.LegCancelled
	if _, ok := SiblingToAutoCancel(ord, model.LegTarget); ok {
		t.Fatal("auto-cancel should be idempotent")
	}
}

func TestSiblingAutoCancelEntryNoOp(t *testing.T) {
	ord := superOrder(model.LegTraded, model.LegPending)
	if _, ok := SiblingToAutoCancel(ord, model.LegEntry); ok {
		t.Fatal("entry leg has no sibling")
	}
}

func TestForeverOCOResolution(t *testing.T) {
	ord := &model.Order{
		OrderID:   "5132208051113",
		Direction: model.DirectionSell,
		Kind:      model.KindForever,
		Flag:      model.FlagOCO,
		Qty:       5,
		Legs: []model.Leg{
			{Role: model.LegStopLoss, Price: 5000, TriggerPrice: 4900, Qty: 5, Status: model.LegPending},
			{Role: model.LegTarget, Price: 5500, TriggerPrice: 5400, Qty: 5, Status: model.LegPending},
		},
	}

	// Forever legs are armed from placement: single-leg cancel works.
	intent, err := Resolve(ord, model.LegStopLoss)
	if err != nil {
		t.Fatal(err)
	}
	if intent.Scope != ScopeLeg {
		t.Fatalf("got scope %s, want LEG", intent.Scope)
	}

	// No entry leg to address.
	_, err = Resolve(ord, model.LegEntry)
	var pre *model.PreconditionError
	if !errors.As(err, &pre) {
		t.Fatalf("ENTRY_LEG on OCO forever order should be PreconditionError, got %v", err)
	}
}
