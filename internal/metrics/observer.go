package metrics

import (
	"context"

	"order-systemv1/internal/model"
)

// Observer consumes order events off the bus and bumps counters.
type Observer struct {
	m *Metrics
}

// NewObserver creates a bus subscriber that feeds the metrics.
func NewObserver(m *Metrics) *Observer {
	return &Observer{m: m}
}

// Run consumes events until ctx is cancelled or the channel closes.
func (o *Observer) Run(ctx context.Context, events <-chan model.OrderEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			o.Observe(ev)
		}
	}
}

// Observe records one event.
func (o *Observer) Observe(ev model.OrderEvent) {
	switch ev.Type {
	case model.EventPlaced:
		o.m.OrdersPlaced.WithLabelValues(string(ev.Snapshot.Kind)).Inc()
	case model.EventCancelled:
		o.m.OrdersCancelled.Inc()
	case model.EventLegUpdate:
		o.m.LegUpdates.Inc()
		if ev.Status == model.OrderRejected {
			o.m.OrdersRejected.Inc()
		}
	case model.EventTrailingMove:
		o.m.TrailingMoves.Inc()
	case model.EventOCOAutoCancel:
		o.m.OCOAutoCancels.Inc()
	case model.EventInconsistency:
		o.m.Inconsistencies.Inc()
	}
}
