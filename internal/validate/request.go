// Package validate implements pure request validation for conditional
// orders. Validation never performs I/O: place requests are checked in
// isolation, modify requests against a snapshot of the live aggregate.
//
// Struct-tag rules (required fields, enums) run through
// go-playground/validator; the direction-dependent price-ordering rules are
// applied by hand on top, and all violations are collected into a single
// model.ValidationError rather than short-circuiting.
package validate

// Prices in request payloads are rupee values as sent by callers; the
// normalizer converts them to paise via shopspring/decimal.

// SuperOrderRequest places an Entry + Target + Stop-Loss order. TrailingJump
// is required but may be explicitly zero (no trailing).
type SuperOrderRequest struct {
	ClientID        string `json:"dhanClientId" validate:"required"`
	CorrelationID   string `json:"correlationId" validate:"omitempty,max=25"`
	TransactionType string `json:"transactionType" validate:"required,oneof=BUY SELL"`
	ExchangeSegment string `json:"exchangeSegment" validate:"required,oneof=NSE_EQ NSE_FNO BSE_EQ BSE_FNO MCX_COMM"`
	ProductType     string `json:"productType" validate:"required,oneof=CNC INTRADAY MARGIN MTF"`
	OrderType       string `json:"orderType" validate:"required,oneof=MARKET LIMIT STOP_LOSS STOP_LOSS_MARKET"`
	SecurityID      string `json:"securityId" validate:"required"`
	Quantity        int64  `json:"quantity" validate:"required,gt=0"`
	DisclosedQty    int64  `json:"disclosedQuantity" validate:"gte=0"`

	Price         float64  `json:"price"`         // entry limit price, rupees
	TriggerPrice  float64  `json:"triggerPrice"`  // entry trigger, for SL entry types
	TargetPrice   float64  `json:"targetPrice"`
	StopLossPrice float64  `json:"stopLossPrice"`
	TrailingJump  *float64 `json:"trailingJump"` // pointer: zero is valid, absent is not
}

// ForeverOrderRequest places a SINGLE trigger order or an OCO pair. For OCO
// the primary leg is the stop-side trigger and the "1"-suffixed triple is the
// linked target leg, matching the broker wire format.
type ForeverOrderRequest struct {
	ClientID        string `json:"dhanClientId" validate:"required"`
	CorrelationID   string `json:"correlationId" validate:"omitempty,max=25"`
	OrderFlag       string `json:"orderFlag" validate:"required,oneof=SINGLE OCO"`
	TransactionType string `json:"transactionType" validate:"required,oneof=BUY SELL"`
	ExchangeSegment string `json:"exchangeSegment" validate:"required,oneof=NSE_EQ NSE_FNO BSE_EQ BSE_FNO MCX_COMM"`
	ProductType     string `json:"productType" validate:"required,oneof=CNC INTRADAY MARGIN MTF"`
	OrderType       string `json:"orderType" validate:"required,oneof=MARKET LIMIT STOP_LOSS STOP_LOSS_MARKET"`
	SecurityID      string `json:"securityId" validate:"required"`
	Quantity        int64  `json:"quantity" validate:"required,gt=0"`
	DisclosedQty    int64  `json:"disclosedQuantity" validate:"gte=0"`

	Price        float64 `json:"price"`
	TriggerPrice float64 `json:"triggerPrice"`

	// Linked target leg, OCO only.
	Price1        float64 `json:"price1"`
	TriggerPrice1 float64 `json:"triggerPrice1"`
	Quantity1     int64   `json:"quantity1"`
}

// ModifyRequest changes one named leg of an existing order. At least one
// mutable field must be present; post-modification values are validated
// against the live aggregate's other legs, not the request in isolation.
type ModifyRequest struct {
	OrderID string `json:"orderId" validate:"required"`
	LegName string `json:"legName" validate:"required,oneof=ENTRY_LEG TARGET_LEG STOP_LOSS_LEG"`

	Quantity      *int64   `json:"quantity"`
	Price         *float64 `json:"price"`
	TriggerPrice  *float64 `json:"triggerPrice"`
	DisclosedQty  *int64   `json:"disclosedQuantity"`
	TargetPrice   *float64 `json:"targetPrice"`
	StopLossPrice *float64 `json:"stopLossPrice"`
	TrailingJump  *float64 `json:"trailingJump"`
}

func (r ModifyRequest) empty() bool {
	return r.Quantity == nil && r.Price == nil && r.TriggerPrice == nil &&
		r.DisclosedQty == nil && r.TargetPrice == nil &&
		r.StopLossPrice == nil && r.TrailingJump == nil
}
