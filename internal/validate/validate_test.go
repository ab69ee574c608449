package validate

import (
	"errors"
	"math/rand"
	"testing"

	"order-systemv1/internal/model"
)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

func superReq(dir string) SuperOrderRequest {
	return SuperOrderRequest{
		ClientID:        "1000000132",
		TransactionType: dir,
		ExchangeSegment: "NSE_EQ",
		ProductType:     "CNC",
		OrderType:       "LIMIT",
		SecurityID:      "11536",
		Quantity:        10,
		Price:           100,
		TargetPrice:     110,
		StopLossPrice:   95,
		TrailingJump:    f64(2),
	}
}

func violationFields(t *testing.T, err error) map[string]bool {
	t.Helper()
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	fields := make(map[string]bool)
	for _, v := range verr.Violations {
		fields[v.Field] = true
	}
	return fields
}

func TestSuperOrderBuyAccepted(t *testing.T) {
	va := New()
	ord, err := va.SuperOrder(superReq("BUY"))
	if err != nil {
		t.Fatalf("valid BUY request rejected: %v", err)
	}
	if ord.Kind != model.KindSuper || len(ord.Legs) != 3 {
		t.Fatalf("unexpected normalized order: %+v", ord)
	}
	if got := ord.Leg(model.LegEntry).Price; got != 10000 {
		t.Errorf("entry price: got %d paise, want 10000", got)
	}
	if got := ord.Leg(model.LegStopLoss).TrailingJump; got != 200 {
		t.Errorf("trailing jump: got %d paise, want 200", got)
	}
	if ord.Leg(model.LegTarget).Status != model.LegDormant {
		t.Error("target leg should start dormant")
	}
}

// The same price triple valid for BUY must be rejected for SELL.
func TestSuperOrderDirectionBranch(t *testing.T) {
	va := New()
	req := superReq("SELL")
	_, err := va.SuperOrder(req)
	if err == nil {
		t.Fatal("SELL with BUY-shaped prices accepted")
	}
	fields := violationFields(t, err)
	if !fields["targetPrice"] || !fields["stopLossPrice"] {
		t.Errorf("expected violations on targetPrice and stopLossPrice, got %v", fields)
	}

	// Flip the triple and SELL becomes valid.
	req.TargetPrice, req.StopLossPrice = 95, 110
	if _, err := va.SuperOrder(req); err != nil {
		t.Fatalf("valid SELL request rejected: %v", err)
	}
}

// Property check from random triples: acceptance must match the direction
// rule exactly.
func TestSuperOrderPriceOrderingProperty(t *testing.T) {
	va := New()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		entry := 50 + rng.Float64()*100
		target := 50 + rng.Float64()*100
		stop := 50 + rng.Float64()*100
		dir := "BUY"
		if i%2 == 1 {
			dir = "SELL"
		}

		req := superReq(dir)
		req.Price, req.TargetPrice, req.StopLossPrice = entry, target, stop
		_, err := va.SuperOrder(req)

		e, tg, st := paise(entry), paise(target), paise(stop)
		var want bool
		if dir == "BUY" {
			want = tg > e && st < e
		} else {
			want = tg < e && st > e
		}
		if got := err == nil; got != want {
			t.Fatalf("%s entry=%v target=%v stop=%v: accepted=%v, want %v (err=%v)",
				dir, entry, target, stop, got, want, err)
		}
	}
}

func TestSuperOrderCollectsAllViolations(t *testing.T) {
	va := New()
	req := SuperOrderRequest{
		TransactionType: "HOLD", // bad enum
		OrderType:       "LIMIT",
		Quantity:        0,
	}
	_, err := va.SuperOrder(req)
	fields := violationFields(t, err)
	for _, want := range []string{"dhanClientId", "exchangeSegment", "securityId", "quantity", "price", "targetPrice", "stopLossPrice", "trailingJump"} {
		if !fields[want] {
			t.Errorf("missing violation for %s (got %v)", want, fields)
		}
	}
}

func TestSuperOrderTrailingJumpExplicitZero(t *testing.T) {
	va := New()
	req := superReq("BUY")
	req.TrailingJump = f64(0)
	if _, err := va.SuperOrder(req); err != nil {
		t.Fatalf("explicit zero trailing jump rejected: %v", err)
	}
	req.TrailingJump = nil
	if _, err := va.SuperOrder(req); err == nil {
		t.Fatal("absent trailing jump accepted")
	}
}

func TestOrderTypeRequirements(t *testing.T) {
	va := New()

	req := superReq("BUY")
	req.OrderType = "MARKET"
	req.Price = 0
	req.TriggerPrice = 0
	// MARKET requires neither price nor trigger; ordering falls back to the
	// target/stop checks only when an entry reference exists.
	if _, err := va.SuperOrder(req); err != nil {
		t.Fatalf("market super order rejected: %v", err)
	}

	req = superReq("BUY")
	req.OrderType = "STOP_LOSS"
	req.TriggerPrice = 0
	_, err := va.SuperOrder(req)
	if err == nil {
		t.Fatal("STOP_LOSS entry without trigger accepted")
	}
	if fields := violationFields(t, err); !fields["triggerPrice"] {
		t.Errorf("expected triggerPrice violation, got %v", fields)
	}
}

func TestDisclosedQuantityRule(t *testing.T) {
	va := New()
	req := superReq("BUY")
	req.Quantity = 100
	req.DisclosedQty = 29
	_, err := va.SuperOrder(req)
	if err == nil {
		t.Fatal("disclosed qty below 30% accepted")
	}
	req.DisclosedQty = 30
	if _, err := va.SuperOrder(req); err != nil {
		t.Fatalf("disclosed qty at 30%% rejected: %v", err)
	}
}

func ocoReq() ForeverOrderRequest {
	return ForeverOrderRequest{
		ClientID:        "1000000132",
		OrderFlag:       "OCO",
		TransactionType: "SELL",
		ExchangeSegment: "NSE_EQ",
		ProductType:     "CNC",
		OrderType:       "STOP_LOSS",
		SecurityID:      "11536",
		Quantity:        5,
		Price:           50,
		TriggerPrice:    49,
		Price1:          55,
		TriggerPrice1:   54,
		Quantity1:       5,
	}
}

func TestForeverOCOAccepted(t *testing.T) {
	va := New()
	ord, err := va.ForeverOrder(ocoReq())
	if err != nil {
		t.Fatalf("valid OCO rejected: %v", err)
	}
	if len(ord.Legs) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(ord.Legs))
	}
	if ord.Leg(model.LegTarget) == nil || ord.Leg(model.LegStopLoss) == nil {
		t.Fatal("OCO legs should be TARGET + STOP_LOSS")
	}
	if ord.Leg(model.LegTarget).Status != model.LegPending {
		t.Error("forever legs should be armed from placement")
	}
}

// Scenario from the order model: primary 50/49, target must sit above for a
// SELL exit; target price 48 is rejected on price1.
func TestForeverOCOTargetWrongSide(t *testing.T) {
	va := New()
	req := ocoReq()
	req.Price1 = 48
	req.TriggerPrice1 = 47
	_, err := va.ForeverOrder(req)
	if err == nil {
		t.Fatal("OCO with target below primary accepted for SELL")
	}
	fields := violationFields(t, err)
	if !fields["price1"] {
		t.Errorf("expected violation on price1, got %v", fields)
	}
}

func TestForeverOCOMissingSecondTriple(t *testing.T) {
	va := New()
	req := ocoReq()
	req.Price1, req.TriggerPrice1, req.Quantity1 = 0, 0, 0
	_, err := va.ForeverOrder(req)
	fields := violationFields(t, err)
	for _, want := range []string{"price1", "triggerPrice1", "quantity1"} {
		if !fields[want] {
			t.Errorf("missing violation for %s", want)
		}
	}
}

func TestForeverSingle(t *testing.T) {
	va := New()
	req := ocoReq()
	req.OrderFlag = "SINGLE"
	req.Price1, req.TriggerPrice1, req.Quantity1 = 0, 0, 0
	ord, err := va.ForeverOrder(req)
	if err != nil {
		t.Fatalf("valid SINGLE rejected: %v", err)
	}
	if len(ord.Legs) != 1 || ord.Legs[0].Role != model.LegEntry {
		t.Fatalf("SINGLE should normalize to one entry leg, got %+v", ord.Legs)
	}
}

func TestModifyRequiresMutableField(t *testing.T) {
	va := New()
	cur := mustSuper(t, va)
	_, _, err := va.Modify(ModifyRequest{OrderID: cur.OrderID, LegName: "TARGET_LEG"}, cur)
	if err == nil {
		t.Fatal("empty modify accepted")
	}
}

// Modify validation runs against the live aggregate: moving the target below
// the unmodified entry must fail even though the request alone looks fine.
func TestModifyCheckedAgainstLiveLegs(t *testing.T) {
	va := New()
	cur := mustSuper(t, va)

	_, _, err := va.Modify(ModifyRequest{
		OrderID:     cur.OrderID,
		LegName:     "TARGET_LEG",
		TargetPrice: f64(99), // entry is 100
	}, cur)
	if err == nil {
		t.Fatal("target below entry accepted for BUY")
	}

	leg, fields, err := va.Modify(ModifyRequest{
		OrderID:     cur.OrderID,
		LegName:     "TARGET_LEG",
		TargetPrice: f64(115),
	}, cur)
	if err != nil {
		t.Fatalf("valid target raise rejected: %v", err)
	}
	if leg != model.LegTarget || fields.TargetPrice == nil || *fields.TargetPrice != 11500 {
		t.Fatalf("unexpected normalization: leg=%s fields=%+v", leg, fields)
	}
}

func TestModifyTrailingJumpOnWrongLeg(t *testing.T) {
	va := New()
	cur := mustSuper(t, va)
	_, _, err := va.Modify(ModifyRequest{
		OrderID:      cur.OrderID,
		LegName:      "TARGET_LEG",
		TrailingJump: f64(3),
	}, cur)
	if err == nil {
		t.Fatal("nonzero trailing jump on target leg accepted")
	}
}

func TestModifyUnknownLeg(t *testing.T) {
	va := New()
	req := ocoReq()
	req.OrderFlag = "SINGLE"
	req.Price1, req.TriggerPrice1, req.Quantity1 = 0, 0, 0
	cur, err := va.ForeverOrder(req)
	if err != nil {
		t.Fatal(err)
	}
	cur.OrderID = "5132208051113"

	_, _, err = va.Modify(ModifyRequest{
		OrderID:  cur.OrderID,
		LegName:  "TARGET_LEG",
		Quantity: i64(3),
	}, cur)
	if err == nil {
		t.Fatal("modify of nonexistent leg accepted")
	}
}

func mustSuper(t *testing.T, va *Validator) *model.Order {
	t.Helper()
	ord, err := va.SuperOrder(superReq("BUY"))
	if err != nil {
		t.Fatal(err)
	}
	ord.OrderID = "112111182045"
	return ord
}
