package model

import "testing"

func TestLegTransitions(t *testing.T) {
	cases := []struct {
		from, to LegStatus
		ok       bool
	}{
		{LegPending, LegTriggered, true},
		{LegPending, LegTraded, true},
		{LegPending, LegPartTraded, true},
		{LegTriggered, LegPartTraded, true},
		{LegPartTraded, LegPartTraded, true}, // successive partial fills
		{LegPartTraded, LegTraded, true},
		{LegDormant, LegPending, true}, // arming
		{LegPending, LegCancelled, true},
		{LegTriggered, LegRejected, true},

		{LegTraded, LegPending, false},
		{LegTraded, LegCancelled, false},
		{LegCancelled, LegPending, false},
		{LegRejected, LegTraded, false},
		{LegTriggered, LegPending, false},
		{LegPartTraded, LegPending, false},
		{LegDormant, LegTriggered, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.ok {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.ok)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []LegStatus{LegTraded, LegCancelled, LegRejected} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []LegStatus{LegDormant, LegPending, LegTriggered, LegPartTraded} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

// makeSuper builds a BUY super order with entry 100.00, target 110.00,
// stop 95.00 (prices in paise).
func makeSuper() *Order {
	return &Order{
		OrderID:   "112111182045",
		ClientID:  "1000000132",
		Direction: DirectionBuy,
		Kind:      KindSuper,
		Qty:       10,
		Instrument: Instrument{
			SecurityID:      "11536",
			ExchangeSegment: "NSE_EQ",
			ProductType:     "CNC",
		},
		Legs: []Leg{
			{Role: LegEntry, OrderType: OrderTypeLimit, Price: 10000, Qty: 10, Status: LegPending},
			{Role: LegTarget, OrderType: OrderTypeLimit, Price: 11000, Qty: 10, Status: LegDormant},
			{Role: LegStopLoss, OrderType: OrderTypeStopLossMarket, TriggerPrice: 9500, TrailingJump: 200, Qty: 10, Status: LegDormant},
		},
	}
}

func TestDerivedOrderStatus(t *testing.T) {
	o := makeSuper()
	if got := o.Status(); got != OrderPending {
		t.Fatalf("fresh super order: got %s, want PENDING", got)
	}

	o.Leg(LegEntry).Status = LegPartTraded
	o.Leg(LegEntry).FilledQty = 4
	o.Leg(LegTarget).Status = LegPending
	o.Leg(LegStopLoss).Status = LegPending
	if got := o.Status(); got != OrderPartTraded {
		t.Fatalf("partially filled entry: got %s, want PART_TRADED", got)
	}

	o.Leg(LegEntry).Status = LegTraded
	o.Leg(LegEntry).FilledQty = 10
	if got := o.Status(); got != OrderTraded {
		t.Fatalf("filled entry: got %s, want TRADED", got)
	}

	o.Leg(LegTarget).Status = LegTraded
	if got := o.Status(); got != OrderClosed {
		t.Fatalf("target traded: got %s, want CLOSED", got)
	}
}

func TestDerivedOrderStatusCancelled(t *testing.T) {
	o := makeSuper()
	for i := range o.Legs {
		o.Legs[i].Status = LegCancelled
	}
	if got := o.Status(); got != OrderCancelled {
		t.Fatalf("all legs cancelled: got %s, want CANCELLED", got)
	}

	o.Leg(LegEntry).Status = LegRejected
	if got := o.Status(); got != OrderRejected {
		t.Fatalf("rejected entry: got %s, want REJECTED", got)
	}
}

func TestForeverOrderStatus(t *testing.T) {
	o := &Order{
		Direction: DirectionSell,
		Kind:      KindForever,
		Flag:      FlagOCO,
		Qty:       5,
		Legs: []Leg{
			{Role: LegStopLoss, OrderType: OrderTypeStopLoss, Price: 5000, TriggerPrice: 4900, Qty: 5, Status: LegPending},
			{Role: LegTarget, OrderType: OrderTypeStopLoss, Price: 5500, TriggerPrice: 5400, Qty: 5, Status: LegPending},
		},
	}
	if got := o.Status(); got != OrderPending {
		t.Fatalf("fresh OCO: got %s, want PENDING", got)
	}
	if !o.EntryFilled() {
		t.Fatal("forever order legs should count as armed")
	}

	o.Leg(LegTarget).Status = LegTraded
	o.Leg(LegStopLoss).Status = LegCancelled
	if got := o.Status(); got != OrderTraded {
		t.Fatalf("target traded: got %s, want TRADED", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	o := makeSuper()
	cp := o.Clone()
	cp.Legs[0].Status = LegTraded
	if o.Legs[0].Status == LegTraded {
		t.Fatal("Clone shares leg storage with the original")
	}
}
