package dhanconnect

import (
	"context"
	"net/http"
)

// Prices on the wire are rupee values (float JSON numbers), matching the
// broker's payloads.

// SuperOrderRequest places an entry + target + stop-loss order.
type SuperOrderRequest struct {
	DhanClientID    string  `json:"dhanClientId"`
	CorrelationID   string  `json:"correlationId,omitempty"`
	TransactionType string  `json:"transactionType"`
	ExchangeSegment string  `json:"exchangeSegment"`
	ProductType     string  `json:"productType"`
	OrderType       string  `json:"orderType"`
	SecurityID      string  `json:"securityId"`
	Quantity        int64   `json:"quantity"`
	DisclosedQty    int64   `json:"disclosedQuantity,omitempty"`
	Price           float64 `json:"price,omitempty"`
	TriggerPrice    float64 `json:"triggerPrice,omitempty"`
	TargetPrice     float64 `json:"targetPrice"`
	StopLossPrice   float64 `json:"stopLossPrice"`
	TrailingJump    float64 `json:"trailingJump"`
}

// ModifyLegRequest changes fields of one leg of an existing order. legName is
// carried in the body for super orders, per the API.
type ModifyLegRequest struct {
	DhanClientID  string   `json:"dhanClientId"`
	OrderID       string   `json:"orderId"`
	LegName       string   `json:"legName,omitempty"`
	OrderType     string   `json:"orderType,omitempty"`
	Quantity      *int64   `json:"quantity,omitempty"`
	DisclosedQty  *int64   `json:"disclosedQuantity,omitempty"`
	Price         *float64 `json:"price,omitempty"`
	TriggerPrice  *float64 `json:"triggerPrice,omitempty"`
	TargetPrice   *float64 `json:"targetPrice,omitempty"`
	StopLossPrice *float64 `json:"stopLossPrice,omitempty"`
	TrailingJump  *float64 `json:"trailingJump,omitempty"`
}

// ForeverOrderRequest places a SINGLE trigger order or an OCO pair.
type ForeverOrderRequest struct {
	DhanClientID    string  `json:"dhanClientId"`
	CorrelationID   string  `json:"correlationId,omitempty"`
	OrderFlag       string  `json:"orderFlag"`
	TransactionType string  `json:"transactionType"`
	ExchangeSegment string  `json:"exchangeSegment"`
	ProductType     string  `json:"productType"`
	OrderType       string  `json:"orderType"`
	SecurityID      string  `json:"securityId"`
	Quantity        int64   `json:"quantity"`
	DisclosedQty    int64   `json:"disclosedQuantity,omitempty"`
	Price           float64 `json:"price,omitempty"`
	TriggerPrice    float64 `json:"triggerPrice"`
	Price1          float64 `json:"price1,omitempty"`
	TriggerPrice1   float64 `json:"triggerPrice1,omitempty"`
	Quantity1       int64   `json:"quantity1,omitempty"`
}

// OrderAck is the broker's acknowledgement of a mutating call.
type OrderAck struct {
	OrderID     string `json:"orderId"`
	OrderStatus string `json:"orderStatus"`
}

// BookLeg is one leg row inside an order book entry.
type BookLeg struct {
	LegName      string  `json:"legName"`
	OrderType    string  `json:"orderType"`
	Price        float64 `json:"price"`
	TriggerPrice float64 `json:"triggerPrice"`
	TrailingJump float64 `json:"trailingJump"`
	Quantity     int64   `json:"quantity"`
	DisclosedQty int64   `json:"disclosedQuantity"`
	FilledQty    int64   `json:"filledQty"`
	OrderStatus  string  `json:"orderStatus"`
}

// BookEntry is the broker's view of one conditional order.
type BookEntry struct {
	DhanClientID    string    `json:"dhanClientId"`
	OrderID         string    `json:"orderId"`
	CorrelationID   string    `json:"correlationId"`
	OrderFlag       string    `json:"orderFlag"`
	TransactionType string    `json:"transactionType"`
	ExchangeSegment string    `json:"exchangeSegment"`
	ProductType     string    `json:"productType"`
	SecurityID      string    `json:"securityId"`
	Quantity        int64     `json:"quantity"`
	LegDetails      []BookLeg `json:"legDetails"`
	CreateTime      string    `json:"createTime"`
	UpdateTime      string    `json:"updateTime"`
}

// ---- Super Orders ----

func (dc *Client) PlaceSuperOrder(ctx context.Context, req SuperOrderRequest) (OrderAck, error) {
	if req.DhanClientID == "" {
		req.DhanClientID = dc.clientID
	}
	reqURL, err := dc.buildURL("super.place")
	if err != nil {
		return OrderAck{}, err
	}
	var ack OrderAck
	err = dc.doJSON(ctx, http.MethodPost, reqURL, req, &ack)
	return ack, err
}

func (dc *Client) ModifySuperOrder(ctx context.Context, orderID string, req ModifyLegRequest) (OrderAck, error) {
	if req.DhanClientID == "" {
		req.DhanClientID = dc.clientID
	}
	req.OrderID = orderID
	reqURL, err := dc.buildURL("super.modify", orderID)
	if err != nil {
		return OrderAck{}, err
	}
	var ack OrderAck
	err = dc.doJSON(ctx, http.MethodPut, reqURL, req, &ack)
	return ack, err
}

// CancelSuperOrder cancels one leg by name, or the whole order with the
// ENTRY_LEG sentinel while the entry is still pending.
func (dc *Client) CancelSuperOrder(ctx context.Context, orderID, legName string) (OrderAck, error) {
	reqURL, err := dc.buildURL("super.cancel", orderID, legName)
	if err != nil {
		return OrderAck{}, err
	}
	var ack OrderAck
	err = dc.doJSON(ctx, http.MethodDelete, reqURL, nil, &ack)
	return ack, err
}

func (dc *Client) SuperOrderBook(ctx context.Context) ([]BookEntry, error) {
	reqURL, err := dc.buildURL("super.book")
	if err != nil {
		return nil, err
	}
	var out []BookEntry
	err = dc.doJSON(ctx, http.MethodGet, reqURL, nil, &out)
	return out, err
}

// ---- Forever Orders ----

func (dc *Client) PlaceForeverOrder(ctx context.Context, req ForeverOrderRequest) (OrderAck, error) {
	if req.DhanClientID == "" {
		req.DhanClientID = dc.clientID
	}
	reqURL, err := dc.buildURL("forever.place")
	if err != nil {
		return OrderAck{}, err
	}
	var ack OrderAck
	err = dc.doJSON(ctx, http.MethodPost, reqURL, req, &ack)
	return ack, err
}

func (dc *Client) ModifyForeverOrder(ctx context.Context, orderID string, req ModifyLegRequest) (OrderAck, error) {
	if req.DhanClientID == "" {
		req.DhanClientID = dc.clientID
	}
	req.OrderID = orderID
	reqURL, err := dc.buildURL("forever.modify", orderID)
	if err != nil {
		return OrderAck{}, err
	}
	var ack OrderAck
	err = dc.doJSON(ctx, http.MethodPut, reqURL, req, &ack)
	return ack, err
}

// CancelForeverOrder cancels a forever order. For OCO pairs legName narrows
// the cancel to one leg; empty cancels the whole order.
func (dc *Client) CancelForeverOrder(ctx context.Context, orderID, legName string) (OrderAck, error) {
	reqURL, err := dc.buildURL("forever.cancel", orderID)
	if err != nil {
		return OrderAck{}, err
	}
	if legName != "" {
		reqURL += "?legName=" + legName
	}
	var ack OrderAck
	err = dc.doJSON(ctx, http.MethodDelete, reqURL, nil, &ack)
	return ack, err
}

func (dc *Client) ForeverOrderBook(ctx context.Context) ([]BookEntry, error) {
	reqURL, err := dc.buildURL("forever.book")
	if err != nil {
		return nil, err
	}
	var out []BookEntry
	err = dc.doJSON(ctx, http.MethodGet, reqURL, nil, &out)
	return out, err
}
