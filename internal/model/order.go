package model

import "time"

// Direction is the transaction side of an order. Every price-ordering rule
// in this package branches on it.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionBuy || d == DirectionSell
}

// OrderKind distinguishes the two conditional order families.
type OrderKind string

const (
	KindSuper   OrderKind = "SUPER"
	KindForever OrderKind = "FOREVER"
)

// OrderFlag qualifies Forever orders.
type OrderFlag string

const (
	FlagSingle OrderFlag = "SINGLE"
	FlagOCO    OrderFlag = "OCO"
)

// OrderType is the broker execution type of a leg.
type OrderType string

const (
	OrderTypeMarket         OrderType = "MARKET"
	OrderTypeLimit          OrderType = "LIMIT"
	OrderTypeStopLoss       OrderType = "STOP_LOSS"
	OrderTypeStopLossMarket OrderType = "STOP_LOSS_MARKET"
)

// RequiresPrice reports whether the order type needs a limit price.
func (t OrderType) RequiresPrice() bool {
	return t == OrderTypeLimit || t == OrderTypeStopLoss
}

// RequiresTrigger reports whether the order type needs a trigger price.
func (t OrderType) RequiresTrigger() bool {
	return t == OrderTypeStopLoss || t == OrderTypeStopLossMarket
}

// LegRole identifies a leg within a conditional order. The values match the
// broker's wire names so they can be used directly in API paths.
type LegRole string

const (
	LegEntry    LegRole = "ENTRY_LEG"
	LegTarget   LegRole = "TARGET_LEG"
	LegStopLoss LegRole = "STOP_LOSS_LEG"
)

// Valid reports whether r is a known leg role.
func (r LegRole) Valid() bool {
	return r == LegEntry || r == LegTarget || r == LegStopLoss
}

// Sibling returns the paired exit leg for TARGET/STOP_LOSS, or "" for ENTRY.
func (r LegRole) Sibling() LegRole {
	switch r {
	case LegTarget:
		return LegStopLoss
	case LegStopLoss:
		return LegTarget
	default:
		return ""
	}
}

// Instrument identifies the security an order trades.
type Instrument struct {
	SecurityID      string `json:"security_id"`
	ExchangeSegment string `json:"exchange_segment"` // NSE_EQ, NSE_FNO, BSE_EQ, MCX_COMM
	ProductType     string `json:"product_type"`     // CNC, INTRADAY, MARGIN, MTF
}

// Leg is one executable price/quantity unit within a conditional order.
// All prices are in paise.
type Leg struct {
	Role         LegRole   `json:"role"`
	OrderType    OrderType `json:"order_type"`
	Price        int64     `json:"price"`         // limit price in paise (0 for market)
	TriggerPrice int64     `json:"trigger_price"` // activation price in paise
	TrailingJump int64     `json:"trailing_jump"` // paise; 0 means no trailing
	Qty          int64     `json:"qty"`           // allotted quantity
	DisclosedQty int64     `json:"disclosed_qty"`
	FilledQty    int64     `json:"filled_qty"`
	Status       LegStatus `json:"status"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RemainingQty is the unfilled portion of the leg's allotted quantity.
func (l *Leg) RemainingQty() int64 {
	return l.Qty - l.FilledQty
}

// Order is one user-submitted conditional order mirrored from the broker's
// order book. Leg state changes only through order.Aggregate.
type Order struct {
	OrderID       string     `json:"order_id"`       // broker-assigned, opaque
	CorrelationID string     `json:"correlation_id"` // client idempotency token, optional
	ClientID      string     `json:"client_id"`
	Instrument    Instrument `json:"instrument"`
	Direction     Direction  `json:"direction"`
	Kind          OrderKind  `json:"kind"`
	Flag          OrderFlag  `json:"flag,omitempty"` // FOREVER only
	Qty           int64      `json:"qty"`
	Legs          []Leg      `json:"legs"`
	LastSeq       int64      `json:"last_seq"` // highest broker update sequence applied
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Leg returns the leg with the given role, or nil.
func (o *Order) Leg(role LegRole) *Leg {
	for i := range o.Legs {
		if o.Legs[i].Role == role {
			return &o.Legs[i]
		}
	}
	return nil
}

// EntryFilled reports whether the entry leg has any fill. Forever orders
// carry no entry leg; their legs are armed from placement, so this returns
// true for them.
func (o *Order) EntryFilled() bool {
	entry := o.Leg(LegEntry)
	if entry == nil {
		return o.Kind == KindForever
	}
	return entry.Status == LegTraded || entry.Status == LegPartTraded || entry.FilledQty > 0
}

// Status derives the order-level status from the constituent legs. It is
// never stored independently.
func (o *Order) Status() OrderStatus {
	entry := o.Leg(LegEntry)

	if entry != nil {
		switch entry.Status {
		case LegRejected:
			return OrderRejected
		case LegCancelled:
			return OrderCancelled
		case LegPending, LegTriggered, LegDormant:
			return OrderPending
		}
		// Entry partially or fully traded: the order is live on its exits.
		if o.exitLegTraded() {
			return OrderClosed
		}
		if entry.Status == LegPartTraded {
			return OrderPartTraded
		}
		return OrderTraded
	}

	// Forever orders: status folds over all legs.
	anyTraded, allTerminal, anyRejected := false, true, false
	for i := range o.Legs {
		switch o.Legs[i].Status {
		case LegTraded:
			anyTraded = true
		case LegPartTraded:
			return OrderPartTraded
		case LegRejected:
			anyRejected = true
		case LegCancelled:
		default:
			allTerminal = false
		}
	}
	switch {
	case anyTraded:
		return OrderTraded
	case !allTerminal:
		return OrderPending
	case anyRejected:
		return OrderRejected
	default:
		return OrderCancelled
	}
}

func (o *Order) exitLegTraded() bool {
	for _, role := range []LegRole{LegTarget, LegStopLoss} {
		if l := o.Leg(role); l != nil && l.Status == LegTraded {
			return true
		}
	}
	return false
}

// Terminal reports whether every leg has reached a terminal status.
func (o *Order) Terminal() bool {
	for i := range o.Legs {
		if !o.Legs[i].Status.Terminal() {
			return false
		}
	}
	return len(o.Legs) > 0
}

// Clone returns a deep copy safe to hand to readers outside the per-order
// event stream.
func (o *Order) Clone() Order {
	cp := *o
	cp.Legs = make([]Leg, len(o.Legs))
	copy(cp.Legs, o.Legs)
	return cp
}

// ModifyFields carries the mutable fields of a modify request. Nil pointers
// mean "leave unchanged"; at least one must be set.
type ModifyFields struct {
	Qty           *int64 `json:"qty,omitempty"`
	Price         *int64 `json:"price,omitempty"`
	TriggerPrice  *int64 `json:"trigger_price,omitempty"`
	DisclosedQty  *int64 `json:"disclosed_qty,omitempty"`
	TargetPrice   *int64 `json:"target_price,omitempty"`
	StopLossPrice *int64 `json:"stop_loss_price,omitempty"`
	TrailingJump  *int64 `json:"trailing_jump,omitempty"`
}

// Empty reports whether no mutable field is present.
func (f ModifyFields) Empty() bool {
	return f.Qty == nil && f.Price == nil && f.TriggerPrice == nil &&
		f.DisclosedQty == nil && f.TargetPrice == nil &&
		f.StopLossPrice == nil && f.TrailingJump == nil
}
