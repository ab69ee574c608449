// Package broker adapts the dhanconnect HTTP client to the model.Gateway
// port: internal paise prices become rupee JSON numbers on the way out, book
// entries become model.Order snapshots on the way in, and every failure is
// wrapped in a model.GatewayError carrying the broker's rejection reason.
package broker

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"order-systemv1/internal/model"
	"order-systemv1/pkg/dhanconnect"
)

// Adapter implements model.Gateway over a dhanconnect.Client.
type Adapter struct {
	dc *dhanconnect.Client
}

// New wraps a configured client.
func New(dc *dhanconnect.Client) *Adapter {
	return &Adapter{dc: dc}
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *dhanconnect.APIError
	if errors.As(err, &apiErr) {
		return &model.GatewayError{
			Op: op, StatusCode: apiErr.StatusCode,
			Code: apiErr.Code, Message: apiErr.Message,
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &model.GatewayError{Op: op, Timeout: true, Err: err}
	}
	return &model.GatewayError{Op: op, Err: err}
}

// PlaceOrder submits a validated order, routed by kind.
func (a *Adapter) PlaceOrder(ctx context.Context, ord *model.Order) (model.PlaceAck, error) {
	var (
		ack dhanconnect.OrderAck
		err error
	)
	switch ord.Kind {
	case model.KindForever:
		ack, err = a.dc.PlaceForeverOrder(ctx, foreverRequest(ord))
	default:
		ack, err = a.dc.PlaceSuperOrder(ctx, superRequest(ord))
	}
	if err != nil {
		return model.PlaceAck{}, wrapErr("place", err)
	}
	return model.PlaceAck{OrderID: ack.OrderID, OrderStatus: ack.OrderStatus}, nil
}

// ModifyOrder changes fields of one named leg.
func (a *Adapter) ModifyOrder(ctx context.Context, orderID string, kind model.OrderKind, leg model.LegRole, fields model.ModifyFields) (model.PlaceAck, error) {
	req := dhanconnect.ModifyLegRequest{LegName: string(leg)}
	req.Quantity = fields.Qty
	req.DisclosedQty = fields.DisclosedQty
	req.Price = rupeePtr(fields.Price)
	req.TriggerPrice = rupeePtr(fields.TriggerPrice)
	req.TargetPrice = rupeePtr(fields.TargetPrice)
	req.StopLossPrice = rupeePtr(fields.StopLossPrice)
	req.TrailingJump = rupeePtr(fields.TrailingJump)

	var (
		ack dhanconnect.OrderAck
		err error
	)
	switch kind {
	case model.KindForever:
		ack, err = a.dc.ModifyForeverOrder(ctx, orderID, req)
	default:
		ack, err = a.dc.ModifySuperOrder(ctx, orderID, req)
	}
	if err != nil {
		return model.PlaceAck{}, wrapErr("modify", err)
	}
	return model.PlaceAck{OrderID: ack.OrderID, OrderStatus: ack.OrderStatus}, nil
}

// CancelOrder cancels a whole order (leg == "") or a single leg. The super
// endpoint always takes a leg name in the path; a whole-order cancel
// addresses the entry leg, which the broker cascades.
func (a *Adapter) CancelOrder(ctx context.Context, orderID string, kind model.OrderKind, leg model.LegRole) (model.PlaceAck, error) {
	var (
		ack dhanconnect.OrderAck
		err error
	)
	switch kind {
	case model.KindForever:
		ack, err = a.dc.CancelForeverOrder(ctx, orderID, string(leg))
	default:
		legName := string(leg)
		if legName == "" {
			legName = string(model.LegEntry)
		}
		ack, err = a.dc.CancelSuperOrder(ctx, orderID, legName)
	}
	if err != nil {
		return model.PlaceAck{}, wrapErr("cancel", err)
	}
	return model.PlaceAck{OrderID: ack.OrderID, OrderStatus: ack.OrderStatus}, nil
}

// OrderBook merges the super and forever books into model snapshots.
func (a *Adapter) OrderBook(ctx context.Context) ([]model.Order, error) {
	super, err := a.dc.SuperOrderBook(ctx)
	if err != nil {
		return nil, wrapErr("order_book", err)
	}
	forever, err := a.dc.ForeverOrderBook(ctx)
	if err != nil {
		return nil, wrapErr("order_book", err)
	}

	out := make([]model.Order, 0, len(super)+len(forever))
	for _, e := range super {
		out = append(out, bookOrder(e, model.KindSuper))
	}
	for _, e := range forever {
		out = append(out, bookOrder(e, model.KindForever))
	}
	return out, nil
}

// ---- wire conversion ----

func rupeePtr(paise *int64) *float64 {
	if paise == nil {
		return nil
	}
	f := model.RupeeFloat(*paise)
	return &f
}

func superRequest(ord *model.Order) dhanconnect.SuperOrderRequest {
	entry := ord.Leg(model.LegEntry)
	target := ord.Leg(model.LegTarget)
	stop := ord.Leg(model.LegStopLoss)
	return dhanconnect.SuperOrderRequest{
		DhanClientID:    ord.ClientID,
		CorrelationID:   ord.CorrelationID,
		TransactionType: string(ord.Direction),
		ExchangeSegment: ord.Instrument.ExchangeSegment,
		ProductType:     ord.Instrument.ProductType,
		OrderType:       string(entry.OrderType),
		SecurityID:      ord.Instrument.SecurityID,
		Quantity:        ord.Qty,
		DisclosedQty:    entry.DisclosedQty,
		Price:           model.RupeeFloat(entry.Price),
		TriggerPrice:    model.RupeeFloat(entry.TriggerPrice),
		TargetPrice:     model.RupeeFloat(target.Price),
		StopLossPrice:   model.RupeeFloat(stop.TriggerPrice),
		TrailingJump:    model.RupeeFloat(stop.TrailingJump),
	}
}

func foreverRequest(ord *model.Order) dhanconnect.ForeverOrderRequest {
	req := dhanconnect.ForeverOrderRequest{
		DhanClientID:    ord.ClientID,
		CorrelationID:   ord.CorrelationID,
		OrderFlag:       string(ord.Flag),
		TransactionType: string(ord.Direction),
		ExchangeSegment: ord.Instrument.ExchangeSegment,
		ProductType:     ord.Instrument.ProductType,
		SecurityID:      ord.Instrument.SecurityID,
		Quantity:        ord.Qty,
	}
	if ord.Flag == model.FlagOCO {
		primary := ord.Leg(model.LegStopLoss)
		target := ord.Leg(model.LegTarget)
		req.OrderType = string(primary.OrderType)
		req.DisclosedQty = primary.DisclosedQty
		req.Price = model.RupeeFloat(primary.Price)
		req.TriggerPrice = model.RupeeFloat(primary.TriggerPrice)
		req.Price1 = model.RupeeFloat(target.Price)
		req.TriggerPrice1 = model.RupeeFloat(target.TriggerPrice)
		req.Quantity1 = target.Qty
	} else {
		entry := ord.Leg(model.LegEntry)
		req.OrderType = string(entry.OrderType)
		req.DisclosedQty = entry.DisclosedQty
		req.Price = model.RupeeFloat(entry.Price)
		req.TriggerPrice = model.RupeeFloat(entry.TriggerPrice)
	}
	return req
}

func paise(rupee float64) int64 {
	return model.RupeesToPaise(decimal.NewFromFloat(rupee))
}

func bookOrder(e dhanconnect.BookEntry, kind model.OrderKind) model.Order {
	ord := model.Order{
		OrderID:       e.OrderID,
		CorrelationID: e.CorrelationID,
		ClientID:      e.DhanClientID,
		Instrument: model.Instrument{
			SecurityID:      e.SecurityID,
			ExchangeSegment: e.ExchangeSegment,
			ProductType:     e.ProductType,
		},
		Direction: model.Direction(e.TransactionType),
		Kind:      kind,
		Flag:      model.OrderFlag(e.OrderFlag),
		Qty:       e.Quantity,
		CreatedAt: parseBookTime(e.CreateTime),
		UpdatedAt: parseBookTime(e.UpdateTime),
	}
	for _, l := range e.LegDetails {
		status := model.LegStatus(l.OrderStatus)
		if !status.Valid() {
			status = model.LegPending
		}
		ord.Legs = append(ord.Legs, model.Leg{
			Role:         model.LegRole(l.LegName),
			OrderType:    model.OrderType(l.OrderType),
			Price:        paise(l.Price),
			TriggerPrice: paise(l.TriggerPrice),
			TrailingJump: paise(l.TrailingJump),
			Qty:          l.Quantity,
			DisclosedQty: l.DisclosedQty,
			FilledQty:    l.FilledQty,
			Status:       status,
			UpdatedAt:    ord.UpdatedAt,
		})
	}
	return ord
}

func parseBookTime(s string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}
