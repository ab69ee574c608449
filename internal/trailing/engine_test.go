package trailing

import (
	"testing"

	"order-systemv1/internal/model"
)

// trailOrder: BUY 10 qty, entry 100.00, target 110.00, stop 95.00,
// trailing jump 2.00, entry filled (exits armed). Prices in paise.
func trailOrder() model.Order {
	return model.Order{
		OrderID:   "112111182045",
		Direction: model.DirectionBuy,
		Kind:      model.KindSuper,
		Qty:       10,
		Instrument: model.Instrument{
			SecurityID:      "11536",
			ExchangeSegment: "NSE_EQ",
		},
		Legs: []model.Leg{
			{Role: model.LegEntry, Price: 10000, Qty: 10, FilledQty: 10, Status: model.LegTraded},
			{Role: model.LegTarget, Price: 11000, Qty: 10, Status: model.LegPending},
			{Role: model.LegStopLoss, TriggerPrice: 9500, TrailingJump: 200, Qty: 10, Status: model.LegPending},
		},
	}
}

func TestLadderAdvancesByWholeJumps(t *testing.T) {
	e := New(PolicyLadder)
	ord := trailOrder()

	// LTP 105.00: two full jumps above the 100.00 reference -> stop 99.00.
	intent, ok := e.Observe(ord, 10500)
	if !ok {
		t.Fatal("expected a modify intent at 105.00")
	}
	if intent.NewStop != 9900 {
		t.Fatalf("new stop: got %d, want 9900", intent.NewStop)
	}

	// The modify was acked: snapshot now carries the new stop.
	ord.Leg(model.LegStopLoss).TriggerPrice = 9900

	// Retreat to 102.00: the stop never moves against the position.
	if _, ok := e.Observe(ord, 10200); ok {
		t.Fatal("stop lowered on a BUY after price retreat")
	}

	// 105.80 has not cleared the 104.00 reference by a full jump: no intent.
	if _, ok := e.Observe(ord, 10580); ok {
		t.Fatal("intent emitted before a full jump was cleared")
	}

	// 106.00 clears one more jump -> stop 101.00... clamped below entry?
	// 9900+200=10100 > entry 10000, so the candidate clamps to 9995.
	intent, ok = e.Observe(ord, 10600)
	if !ok {
		t.Fatal("expected a modify intent at 106.00")
	}
	if intent.NewStop != 9995 {
		t.Fatalf("clamped stop: got %d, want 9995", intent.NewStop)
	}
}

func TestNeverEmitsUnchangedStop(t *testing.T) {
	e := New(PolicyLadder)
	ord := trailOrder()

	intent, ok := e.Observe(ord, 10500)
	if !ok {
		t.Fatal("expected intent")
	}
	ord.Leg(model.LegStopLoss).TriggerPrice = intent.NewStop

	// Same tick again: reference already advanced, nothing to emit.
	if _, ok := e.Observe(ord, 10500); ok {
		t.Fatal("duplicate tick produced a redundant modify")
	}
}

func TestMonotoneStopOnRandomWalk(t *testing.T) {
	e := New(PolicyLadder)
	ord := trailOrder()

	last := ord.Leg(model.LegStopLoss).TriggerPrice
	ticks := []int64{10100, 10350, 10180, 10420, 10900, 10300, 11000, 10050}
	for _, ltp := range ticks {
		if intent, ok := e.Observe(ord, ltp); ok {
			if intent.NewStop <= last {
				t.Fatalf("stop moved down: %d -> %d at ltp %d", last, intent.NewStop, ltp)
			}
			last = intent.NewStop
			ord.Leg(model.LegStopLoss).TriggerPrice = last
		}
	}
}

func TestSellDirectionTrailsDown(t *testing.T) {
	e := New(PolicyLadder)
	ord := trailOrder()
	ord.Direction = model.DirectionSell
	ord.Leg(model.LegTarget).Price = 9000
	ord.Leg(model.LegStopLoss).TriggerPrice = 10500

	// Short position: price falls to 95.00, stop comes down.
	intent, ok := e.Observe(ord, 9500)
	if !ok {
		t.Fatal("expected intent on favorable SELL move")
	}
	if intent.NewStop >= 10500 {
		t.Fatalf("stop did not come down: %d", intent.NewStop)
	}
	ord.Leg(model.LegStopLoss).TriggerPrice = intent.NewStop

	// Price bounces back up: never raise the stop on a SELL.
	if _, ok := e.Observe(ord, 10200); ok {
		t.Fatal("stop raised on a SELL")
	}
}

func TestOffsetPolicyFollowsHighWaterMark(t *testing.T) {
	e := New(PolicyOffset)
	ord := trailOrder() // entry 100.00, stop 95.00 -> offset 5.00

	intent, ok := e.Observe(ord, 10300)
	if !ok {
		t.Fatal("expected intent")
	}
	if intent.NewStop != 9800 {
		t.Fatalf("offset stop: got %d, want 9800", intent.NewStop)
	}
	ord.Leg(model.LegStopLoss).TriggerPrice = 9800

	// Below the high-water mark: no movement.
	if _, ok := e.Observe(ord, 10100); ok {
		t.Fatal("intent emitted below high-water mark")
	}
}

func TestInactiveOrdersIgnored(t *testing.T) {
	e := New(PolicyLadder)

	// No trailing jump configured.
	ord := trailOrder()
	ord.Leg(model.LegStopLoss).TrailingJump = 0
	if _, ok := e.Observe(ord, 10500); ok {
		t.Fatal("intent for order without trailing")
	}

	// Exit legs still dormant (entry unfilled).
	ord = trailOrder()
	ord.Leg(model.LegEntry).Status = model.LegPending
	ord.Leg(model.LegEntry).FilledQty = 0
	ord.Leg(model.LegTarget).Status = model.LegDormant
	ord.Leg(model.LegStopLoss).Status = model.LegDormant
	if _, ok := e.Observe(ord, 10500); ok {
		t.Fatal("intent for unarmed stop leg")
	}

	// Stop already cancelled.
	ord = trailOrder()
	ord.Leg(model.LegStopLoss).Status = model.LegCancelled
	if _, ok := e.Observe(ord, 10500); ok {
		t.Fatal("intent for cancelled stop leg")
	}
}

func TestForgetDropsState(t *testing.T) {
	e := New(PolicyLadder)
	ord := trailOrder()
	if _, ok := e.Observe(ord, 10500); !ok {
		t.Fatal("expected intent")
	}
	if e.Tracked() != 1 {
		t.Fatalf("tracked: got %d, want 1", e.Tracked())
	}
	e.Forget(ord.OrderID)
	if e.Tracked() != 0 {
		t.Fatalf("tracked after forget: got %d, want 0", e.Tracked())
	}
}
