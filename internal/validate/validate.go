package validate

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"order-systemv1/internal/model"
)

// Validator holds the struct-tag engine. It is safe for concurrent use.
type Validator struct {
	v *validator.Validate
}

// New creates a Validator that reports violations under JSON field names.
func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return &Validator{v: v}
}

func paise(rupee float64) int64 {
	return model.RupeesToPaise(decimal.NewFromFloat(rupee))
}

func (va *Validator) structViolations(s any) []model.FieldViolation {
	err := va.v.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []model.FieldViolation{{Field: "request", Code: "invalid", Message: err.Error()}}
	}
	out := make([]model.FieldViolation, 0, len(verrs))
	for _, e := range verrs {
		out = append(out, model.FieldViolation{
			Field:   e.Field(),
			Code:    e.Tag(),
			Message: "failed on tag '" + e.Tag() + "'",
		})
	}
	return out
}

// SuperOrder validates a Place request for a Super Order and normalizes it
// into a not-yet-placed model.Order (OrderID empty, exit legs dormant).
func (va *Validator) SuperOrder(req SuperOrderRequest) (*model.Order, error) {
	viols := va.structViolations(req)

	dir := model.Direction(req.TransactionType)
	otype := model.OrderType(req.OrderType)

	if otype.RequiresPrice() && req.Price <= 0 {
		viols = append(viols, model.FieldViolation{
			Field: "price", Code: "required",
			Message: "price required for " + req.OrderType + " orders",
		})
	}
	if otype.RequiresTrigger() && req.TriggerPrice <= 0 {
		viols = append(viols, model.FieldViolation{
			Field: "triggerPrice", Code: "required",
			Message: "trigger price required for " + req.OrderType + " orders",
		})
	}
	if req.TargetPrice <= 0 {
		viols = append(viols, model.FieldViolation{
			Field: "targetPrice", Code: "required", Message: "target price required",
		})
	}
	if req.StopLossPrice <= 0 {
		viols = append(viols, model.FieldViolation{
			Field: "stopLossPrice", Code: "required", Message: "stop-loss price required",
		})
	}
	switch {
	case req.TrailingJump == nil:
		viols = append(viols, model.FieldViolation{
			Field: "trailingJump", Code: "required",
			Message: "trailing jump required (0 disables trailing)",
		})
	case *req.TrailingJump < 0:
		viols = append(viols, model.FieldViolation{
			Field: "trailingJump", Code: "gte", Message: "trailing jump must be >= 0",
		})
	}

	viols = append(viols, model.DisclosedViolations(req.DisclosedQty, req.Quantity)...)

	// Direction-dependent ordering: the same triple that is valid for BUY is
	// invalid for SELL, so the check must branch on the transaction type.
	entryRef := req.Price
	if entryRef <= 0 {
		entryRef = req.TriggerPrice
	}
	if dir.Valid() && entryRef > 0 && req.TargetPrice > 0 && req.StopLossPrice > 0 {
		viols = append(viols, model.PriceOrderViolations(dir, paise(entryRef), paise(req.TargetPrice), paise(req.StopLossPrice))...)
	}

	if len(viols) > 0 {
		return nil, &model.ValidationError{Violations: viols}
	}

	now := time.Now().UTC()
	jump := int64(0)
	if req.TrailingJump != nil {
		jump = paise(*req.TrailingJump)
	}
	ord := &model.Order{
		CorrelationID: req.CorrelationID,
		ClientID:      req.ClientID,
		Instrument: model.Instrument{
			SecurityID:      req.SecurityID,
			ExchangeSegment: req.ExchangeSegment,
			ProductType:     req.ProductType,
		},
		Direction: dir,
		Kind:      model.KindSuper,
		Qty:       req.Quantity,
		CreatedAt: now,
		UpdatedAt: now,
		Legs: []model.Leg{
			{
				Role:         model.LegEntry,
				OrderType:    otype,
				Price:        paise(req.Price),
				TriggerPrice: paise(req.TriggerPrice),
				Qty:          req.Quantity,
				DisclosedQty: req.DisclosedQty,
				Status:       model.LegPending,
				UpdatedAt:    now,
			},
			{
				Role:      model.LegTarget,
				OrderType: model.OrderTypeLimit,
				Price:     paise(req.TargetPrice),
				Qty:       req.Quantity,
				Status:    model.LegDormant,
				UpdatedAt: now,
			},
			{
				Role:         model.LegStopLoss,
				OrderType:    model.OrderTypeStopLossMarket,
				TriggerPrice: paise(req.StopLossPrice),
				TrailingJump: jump,
				Qty:          req.Quantity,
				Status:       model.LegDormant,
				UpdatedAt:    now,
			},
		},
	}
	return ord, nil
}

// ForeverOrder validates a Place request for a Forever Order (SINGLE or OCO
// pair) and normalizes it into a not-yet-placed model.Order.
func (va *Validator) ForeverOrder(req ForeverOrderRequest) (*model.Order, error) {
	viols := va.structViolations(req)

	dir := model.Direction(req.TransactionType)
	otype := model.OrderType(req.OrderType)

	if otype.RequiresPrice() && req.Price <= 0 {
		viols = append(viols, model.FieldViolation{
			Field: "price", Code: "required",
			Message: "price required for " + req.OrderType + " orders",
		})
	}
	if otype.RequiresTrigger() && req.TriggerPrice <= 0 {
		viols = append(viols, model.FieldViolation{
			Field: "triggerPrice", Code: "required",
			Message: "trigger price required for " + req.OrderType + " orders",
		})
	}
	viols = append(viols, model.DisclosedViolations(req.DisclosedQty, req.Quantity)...)

	oco := model.OrderFlag(req.OrderFlag) == model.FlagOCO
	if oco {
		// The linked target leg needs its own full price/trigger/qty triple.
		if req.Price1 <= 0 {
			viols = append(viols, model.FieldViolation{
				Field: "price1", Code: "required", Message: "OCO target price required",
			})
		}
		if req.TriggerPrice1 <= 0 {
			viols = append(viols, model.FieldViolation{
				Field: "triggerPrice1", Code: "required", Message: "OCO target trigger required",
			})
		}
		if req.Quantity1 <= 0 {
			viols = append(viols, model.FieldViolation{
				Field: "quantity1", Code: "required", Message: "OCO target quantity required",
			})
		}

		// The target leg must sit on the profitable side of the primary leg.
		if dir.Valid() && req.Price > 0 && req.Price1 > 0 {
			viols = append(viols, model.OCOOrderViolations(dir, paise(req.Price), paise(req.Price1), "price1")...)
		}
		if dir.Valid() && req.TriggerPrice > 0 && req.TriggerPrice1 > 0 {
			viols = append(viols, model.OCOOrderViolations(dir, paise(req.TriggerPrice), paise(req.TriggerPrice1), "triggerPrice1")...)
		}
	}

	if len(viols) > 0 {
		return nil, &model.ValidationError{Violations: viols}
	}

	now := time.Now().UTC()
	ord := &model.Order{
		CorrelationID: req.CorrelationID,
		ClientID:      req.ClientID,
		Instrument: model.Instrument{
			SecurityID:      req.SecurityID,
			ExchangeSegment: req.ExchangeSegment,
			ProductType:     req.ProductType,
		},
		Direction: dir,
		Kind:      model.KindForever,
		Flag:      model.OrderFlag(req.OrderFlag),
		Qty:       req.Quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if oco {
		ord.Legs = []model.Leg{
			{
				Role:         model.LegStopLoss,
				OrderType:    otype,
				Price:        paise(req.Price),
				TriggerPrice: paise(req.TriggerPrice),
				Qty:          req.Quantity,
				DisclosedQty: req.DisclosedQty,
				Status:       model.LegPending,
				UpdatedAt:    now,
			},
			{
				Role:         model.LegTarget,
				OrderType:    otype,
				Price:        paise(req.Price1),
				TriggerPrice: paise(req.TriggerPrice1),
				Qty:          req.Quantity1,
				Status:       model.LegPending,
				UpdatedAt:    now,
			},
		}
	} else {
		ord.Legs = []model.Leg{
			{
				Role:         model.LegEntry,
				OrderType:    otype,
				Price:        paise(req.Price),
				TriggerPrice: paise(req.TriggerPrice),
				Qty:          req.Quantity,
				DisclosedQty: req.DisclosedQty,
				Status:       model.LegPending,
				UpdatedAt:    now,
			},
		}
	}
	return ord, nil
}

// Modify validates a modify request against the live aggregate snapshot and
// returns the addressed leg plus normalized (paise) fields. The
// post-modification values must still satisfy the direction-dependent
// ordering using the other, unmodified legs' current prices.
func (va *Validator) Modify(req ModifyRequest, cur *model.Order) (model.LegRole, model.ModifyFields, error) {
	viols := va.structViolations(req)

	if req.empty() {
		viols = append(viols, model.FieldViolation{
			Field: "request", Code: "empty",
			Message: "at least one mutable field must be present",
		})
	}

	leg := model.LegRole(req.LegName)
	if cur != nil && leg.Valid() && cur.Leg(leg) == nil {
		viols = append(viols, model.FieldViolation{
			Field: "legName", Code: "unknown",
			Message: "order has no " + req.LegName,
		})
	}

	if req.Quantity != nil && *req.Quantity <= 0 {
		viols = append(viols, model.FieldViolation{
			Field: "quantity", Code: "gt", Message: "quantity must be positive",
		})
	}
	if req.TrailingJump != nil {
		if *req.TrailingJump < 0 {
			viols = append(viols, model.FieldViolation{
				Field: "trailingJump", Code: "gte", Message: "trailing jump must be >= 0",
			})
		}
		if leg != model.LegStopLoss && *req.TrailingJump > 0 {
			viols = append(viols, model.FieldViolation{
				Field: "trailingJump", Code: "leg",
				Message: "trailing jump is only meaningful on STOP_LOSS_LEG",
			})
		}
	}

	var fields model.ModifyFields
	if req.Quantity != nil {
		fields.Qty = req.Quantity
	}
	if req.DisclosedQty != nil {
		fields.DisclosedQty = req.DisclosedQty
	}
	for _, f := range []struct {
		in  *float64
		out **int64
	}{
		{req.Price, &fields.Price},
		{req.TriggerPrice, &fields.TriggerPrice},
		{req.TargetPrice, &fields.TargetPrice},
		{req.StopLossPrice, &fields.StopLossPrice},
		{req.TrailingJump, &fields.TrailingJump},
	} {
		if f.in != nil {
			p := paise(*f.in)
			*f.out = &p
		}
	}

	if cur != nil && cur.Leg(leg) != nil {
		qty := cur.Leg(leg).Qty
		if fields.Qty != nil {
			qty = *fields.Qty
		}
		disc := cur.Leg(leg).DisclosedQty
		if fields.DisclosedQty != nil {
			disc = *fields.DisclosedQty
		}
		viols = append(viols, model.DisclosedViolations(disc, qty)...)

		viols = append(viols, postModifyOrderingViolations(cur, leg, fields)...)
	}

	if len(viols) > 0 {
		return "", model.ModifyFields{}, &model.ValidationError{Violations: viols}
	}
	return leg, fields, nil
}

// postModifyOrderingViolations applies the proposed fields to a copy of the
// order and re-checks the direction rule against the untouched legs.
func postModifyOrderingViolations(cur *model.Order, leg model.LegRole, fields model.ModifyFields) []model.FieldViolation {
	if cur.Kind == model.KindForever && cur.Flag != model.FlagOCO {
		return nil // single-leg order, nothing to order against
	}

	cp := cur.Clone()
	l := cp.Leg(leg)
	if fields.Price != nil {
		l.Price = *fields.Price
	}
	if fields.TriggerPrice != nil {
		l.TriggerPrice = *fields.TriggerPrice
	}
	if fields.TargetPrice != nil {
		if t := cp.Leg(model.LegTarget); t != nil {
			t.Price = *fields.TargetPrice
		}
	}
	if fields.StopLossPrice != nil {
		if s := cp.Leg(model.LegStopLoss); s != nil {
			s.TriggerPrice = *fields.StopLossPrice
		}
	}

	if cur.Kind == model.KindForever {
		// OCO pair: keep the target on the profitable side of the primary.
		primary, target := cp.Leg(model.LegStopLoss), cp.Leg(model.LegTarget)
		if primary == nil || target == nil {
			return nil
		}
		return model.OCOOrderViolations(cp.Direction, model.LegRef(primary), model.LegRef(target), "price1")
	}

	entry, target, stop := cp.Leg(model.LegEntry), cp.Leg(model.LegTarget), cp.Leg(model.LegStopLoss)
	if entry == nil || target == nil || stop == nil {
		return nil
	}
	return model.PriceOrderViolations(cp.Direction, model.LegRef(entry), model.LegRef(target), model.LegRef(stop))
}
