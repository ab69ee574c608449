package metrics

import (
	"context"
	"time"

	"order-systemv1/internal/model"
)

// InstrumentGateway wraps a gateway with per-operation latency and error
// counters. It changes no behaviour; errors pass through untouched.
func InstrumentGateway(gw model.Gateway, m *Metrics) model.Gateway {
	return &instrumentedGateway{gw: gw, m: m}
}

type instrumentedGateway struct {
	gw model.Gateway
	m  *Metrics
}

func (g *instrumentedGateway) observe(op string, start time.Time, err error) {
	g.m.GatewayLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		g.m.GatewayErrors.WithLabelValues(op).Inc()
	}
}

func (g *instrumentedGateway) PlaceOrder(ctx context.Context, ord *model.Order) (model.PlaceAck, error) {
	start := time.Now()
	ack, err := g.gw.PlaceOrder(ctx, ord)
	g.observe("place", start, err)
	return ack, err
}

func (g *instrumentedGateway) ModifyOrder(ctx context.Context, orderID string, kind model.OrderKind, leg model.LegRole, fields model.ModifyFields) (model.PlaceAck, error) {
	start := time.Now()
	ack, err := g.gw.ModifyOrder(ctx, orderID, kind, leg, fields)
	g.observe("modify", start, err)
	return ack, err
}

func (g *instrumentedGateway) CancelOrder(ctx context.Context, orderID string, kind model.OrderKind, leg model.LegRole) (model.PlaceAck, error) {
	start := time.Now()
	ack, err := g.gw.CancelOrder(ctx, orderID, kind, leg)
	g.observe("cancel", start, err)
	return ack, err
}

func (g *instrumentedGateway) OrderBook(ctx context.Context) ([]model.Order, error) {
	start := time.Now()
	book, err := g.gw.OrderBook(ctx)
	g.observe("order_book", start, err)
	return book, err
}
