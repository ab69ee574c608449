package model

// MinDisclosedPct: exchanges require disclosed quantity, when used, to be at
// least this percentage of the order quantity.
const MinDisclosedPct = 30

// LegRef is the price used in ordering comparisons: trigger price for
// stop-type legs, limit price otherwise.
func LegRef(l *Leg) int64 {
	if l.Role == LegStopLoss && l.TriggerPrice > 0 {
		return l.TriggerPrice
	}
	if l.Price > 0 {
		return l.Price
	}
	return l.TriggerPrice
}

// PriceOrderViolations enforces BUY: target > entry > stop and
// SELL: target < entry < stop. All prices in paise.
func PriceOrderViolations(dir Direction, entry, target, stop int64) []FieldViolation {
	var viols []FieldViolation
	switch dir {
	case DirectionBuy:
		if target <= entry {
			viols = append(viols, FieldViolation{
				Field: "targetPrice", Code: "price_order",
				Message: "target price must be above entry price for BUY",
			})
		}
		if stop >= entry {
			viols = append(viols, FieldViolation{
				Field: "stopLossPrice", Code: "price_order",
				Message: "stop-loss price must be below entry price for BUY",
			})
		}
	case DirectionSell:
		if target >= entry {
			viols = append(viols, FieldViolation{
				Field: "targetPrice", Code: "price_order",
				Message: "target price must be below entry price for SELL",
			})
		}
		if stop <= entry {
			viols = append(viols, FieldViolation{
				Field: "stopLossPrice", Code: "price_order",
				Message: "stop-loss price must be above entry price for SELL",
			})
		}
	}
	return viols
}

// OCOOrderViolations keeps the linked target leg on the profitable side of
// the primary leg: above it for SELL exits, below it for BUY (short cover).
func OCOOrderViolations(dir Direction, primary, target int64, field string) []FieldViolation {
	bad := (dir == DirectionSell && target <= primary) ||
		(dir == DirectionBuy && target >= primary)
	if !bad {
		return nil
	}
	return []FieldViolation{{
		Field: field, Code: "price_order",
		Message: "OCO target on the wrong side of the primary leg for " + string(dir),
	}}
}

// DisclosedViolations enforces the disclosed-quantity floor.
func DisclosedViolations(disclosed, qty int64) []FieldViolation {
	if disclosed <= 0 {
		return nil
	}
	if disclosed > qty {
		return []FieldViolation{{
			Field: "disclosedQuantity", Code: "lte",
			Message: "disclosed quantity cannot exceed quantity",
		}}
	}
	if disclosed*100 < qty*MinDisclosedPct {
		return []FieldViolation{{
			Field: "disclosedQuantity", Code: "min_pct",
			Message: "disclosed quantity must be at least 30% of quantity",
		}}
	}
	return nil
}
