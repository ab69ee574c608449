// Package service orchestrates the order lifecycle: requests are validated,
// sent to the broker gateway, and only on an explicit ack applied to the
// in-memory aggregate. All per-order work runs on the dispatch shards so no
// two mutations of the same order ever interleave.
package service

import (
	"context"
	"errors"
	"log"
	"time"

	"order-systemv1/internal/coordinator"
	"order-systemv1/internal/dispatch"
	"order-systemv1/internal/model"
	"order-systemv1/internal/order"
	"order-systemv1/internal/trailing"
	"order-systemv1/internal/validate"
)

// Deps are the collaborators the service drives. Journal and Cache may be
// nil; persistence is then skipped.
type Deps struct {
	Validator  *validate.Validator
	Gateway    model.Gateway
	Book       *order.Book
	Dispatcher *dispatch.Dispatcher
	Trail      *trailing.Engine
	Journal    model.JournalWriter
	Cache      model.SnapshotCache
}

// Service is the single entry point for order mutations. HTTP handlers, the
// broker feed, and the tick stream all call into it.
type Service struct {
	val     *validate.Validator
	gw      model.Gateway
	book    *order.Book
	disp    *dispatch.Dispatcher
	trail   *trailing.Engine
	journal model.JournalWriter
	cache   model.SnapshotCache

	gwTimeout time.Duration
	events    chan model.OrderEvent
}

// New wires a Service. gwTimeout bounds every broker call; the broker is
// slower than every local step, so this is the only timeout the core needs.
func New(d Deps, gwTimeout time.Duration) *Service {
	if gwTimeout <= 0 {
		gwTimeout = 5 * time.Second
	}
	return &Service{
		val:       d.Validator,
		gw:        d.Gateway,
		book:      d.Book,
		disp:      d.Dispatcher,
		trail:     d.Trail,
		journal:   d.Journal,
		cache:     d.Cache,
		gwTimeout: gwTimeout,
		events:    make(chan model.OrderEvent, 1024),
	}
}

// Events exposes the post-mutation event stream consumed by the fanout bus.
func (s *Service) Events() <-chan model.OrderEvent { return s.events }

// PlaceSuperOrder validates, submits, and registers a Super Order. The
// returned snapshot carries the broker-assigned order id.
func (s *Service) PlaceSuperOrder(ctx context.Context, req validate.SuperOrderRequest) (model.Order, error) {
	ord, err := s.val.SuperOrder(req)
	if err != nil {
		return model.Order{}, err
	}
	return s.place(ctx, ord)
}

// PlaceForeverOrder validates, submits, and registers a Forever Order
// (SINGLE or OCO).
func (s *Service) PlaceForeverOrder(ctx context.Context, req validate.ForeverOrderRequest) (model.Order, error) {
	ord, err := s.val.ForeverOrder(req)
	if err != nil {
		return model.Order{}, err
	}
	return s.place(ctx, ord)
}

func (s *Service) place(ctx context.Context, ord *model.Order) (model.Order, error) {
	gctx, cancel := context.WithTimeout(ctx, s.gwTimeout)
	defer cancel()
	ack, err := s.gw.PlaceOrder(gctx, ord)
	if err != nil {
		return model.Order{}, err
	}

	ord.OrderID = ack.OrderID
	agg := order.New(*ord)
	s.book.Put(agg)

	snap := agg.Snapshot()
	s.emit(model.OrderEvent{
		Type: model.EventPlaced, OrderID: snap.OrderID,
		Status: snap.Status(), Snapshot: snap, TS: time.Now().UTC(),
	})
	return snap, nil
}

// ModifyLeg validates a leg modification against the live aggregate, sends
// it to the broker, and applies it on the order's serialized stream.
func (s *Service) ModifyLeg(ctx context.Context, req validate.ModifyRequest) (model.Order, error) {
	agg := s.book.Get(req.OrderID)
	if agg == nil {
		return model.Order{}, model.ErrOrderNotFound
	}

	var (
		snap model.Order
		err  error
	)
	derr := s.disp.Do(ctx, req.OrderID, func() {
		cur := agg.Snapshot()
		leg, fields, verr := s.val.Modify(req, &cur)
		if verr != nil {
			err = verr
			return
		}
		if l := cur.Leg(leg); l != nil && l.Status.Terminal() {
			err = &model.PreconditionError{
				Op: "modify", OrderID: cur.OrderID, Leg: leg,
				Reason: "leg is terminal",
			}
			return
		}

		gctx, cancel := context.WithTimeout(ctx, s.gwTimeout)
		defer cancel()
		if _, gerr := s.gw.ModifyOrder(gctx, cur.OrderID, cur.Kind, leg, fields); gerr != nil {
			err = gerr
			return
		}

		if aerr := agg.ApplyModify(leg, fields); aerr != nil {
			err = aerr
			return
		}
		snap = agg.Snapshot()
		s.emit(model.OrderEvent{
			Type: model.EventModified, OrderID: snap.OrderID, Leg: leg,
			Status: snap.Status(), Snapshot: snap, TS: time.Now().UTC(),
		})
	})
	if derr != nil {
		return model.Order{}, derr
	}
	return snap, err
}

// Cancel resolves and executes a cancellation. An empty leg cancels the
// whole order; TARGET_LEG/STOP_LOSS_LEG cancel one armed exit leg.
func (s *Service) Cancel(ctx context.Context, orderID string, leg model.LegRole) (model.Order, error) {
	agg := s.book.Get(orderID)
	if agg == nil {
		return model.Order{}, model.ErrOrderNotFound
	}

	var (
		snap model.Order
		err  error
	)
	derr := s.disp.Do(ctx, orderID, func() {
		cur := agg.Snapshot()
		intent, rerr := coordinator.Resolve(&cur, leg)
		if rerr != nil {
			err = rerr
			return
		}

		gctx, cancel := context.WithTimeout(ctx, s.gwTimeout)
		defer cancel()
		if _, gerr := s.gw.CancelOrder(gctx, intent.OrderID, intent.Kind, intent.Leg); gerr != nil {
			err = gerr
			return
		}

		agg.ApplyCancel(intent.Leg)
		snap = agg.Snapshot()
		s.emit(model.OrderEvent{
			Type: model.EventCancelled, OrderID: snap.OrderID, Leg: intent.Leg,
			Status: snap.Status(), Snapshot: snap, TS: time.Now().UTC(),
		})
		s.retireIfTerminal(&snap)
	})
	if derr != nil {
		return model.Order{}, derr
	}
	return snap, err
}

// HandleLegUpdate ingests one broker push. Unknown orders are logged and
// dropped (reconcile picks them up); stale updates surface as an
// INCONSISTENCY event, never as silent state coercion.
func (s *Service) HandleLegUpdate(u model.LegUpdate) error {
	agg := s.book.Get(u.OrderID)
	if agg == nil {
		log.Printf("[service] leg update for unknown order %s, dropping", u.OrderID)
		return model.ErrOrderNotFound
	}
	return s.disp.Submit(u.OrderID, func() {
		changed, err := agg.ApplyLegUpdate(u)
		if err != nil {
			var stale *model.StaleUpdateError
			if errors.As(err, &stale) {
				snap := agg.Snapshot()
				s.emit(model.OrderEvent{
					Type: model.EventInconsistency, OrderID: u.OrderID, Leg: u.Leg,
					Status: snap.Status(), Snapshot: snap, Detail: stale.Error(),
					TS: time.Now().UTC(),
				})
			}
			log.Printf("[service] leg update rejected for %s: %v", u.OrderID, err)
			return
		}
		if !changed {
			return
		}

		snap := agg.Snapshot()
		s.emit(model.OrderEvent{
			Type: model.EventLegUpdate, OrderID: u.OrderID, Leg: u.Leg,
			Status: snap.Status(), Snapshot: snap, TS: time.Now().UTC(),
		})

		if viols := agg.InvariantViolations(); len(viols) > 0 {
			s.emit(model.OrderEvent{
				Type: model.EventInconsistency, OrderID: u.OrderID, Leg: u.Leg,
				Status: snap.Status(), Snapshot: snap,
				Detail: (&model.ValidationError{Violations: viols}).Error(),
				TS:     time.Now().UTC(),
			})
		}

		if u.Status == model.LegTraded {
			s.autoCancelSibling(agg, u.Leg)
		}
		snap = agg.Snapshot()
		s.retireIfTerminal(&snap)
	})
}

// autoCancelSibling runs the one automatic cascade: when one exit leg of a
// pair trades, the survivor is cancelled at the broker. Runs on the order's
// serialized stream.
func (s *Service) autoCancelSibling(agg *order.Aggregate, tradedLeg model.LegRole) {
	cur := agg.Snapshot()
	sib, ok := coordinator.SiblingToAutoCancel(&cur, tradedLeg)
	if !ok {
		return
	}

	gctx, cancel := context.WithTimeout(context.Background(), s.gwTimeout)
	defer cancel()
	if _, err := s.gw.CancelOrder(gctx, cur.OrderID, cur.Kind, sib); err != nil {
		// Local state stays as-is; the next reconcile pass retries.
		log.Printf("[service] auto-cancel of %s %s failed: %v", cur.OrderID, sib, err)
		return
	}

	agg.ApplyCancel(sib)
	snap := agg.Snapshot()
	s.emit(model.OrderEvent{
		Type: model.EventOCOAutoCancel, OrderID: snap.OrderID, Leg: sib,
		Status: snap.Status(), Snapshot: snap, TS: time.Now().UTC(),
	})
}

// HandleTick routes one price observation to every live order on that
// security. Each resulting stop modification runs on its order's stream and
// goes through the broker before the aggregate moves.
func (s *Service) HandleTick(t model.Tick) {
	for _, id := range s.book.OrderIDsBySecurity(t.SecurityID) {
		id := id
		err := s.disp.Submit(id, func() {
			agg := s.book.Get(id)
			if agg == nil {
				return
			}
			cur := agg.Snapshot()
			intent, ok := s.trail.Observe(cur, t.LTP)
			if !ok {
				return
			}

			gctx, cancel := context.WithTimeout(context.Background(), s.gwTimeout)
			defer cancel()
			fields := model.ModifyFields{StopLossPrice: &intent.NewStop}
			if _, err := s.gw.ModifyOrder(gctx, id, cur.Kind, model.LegStopLoss, fields); err != nil {
				log.Printf("[service] trailing modify for %s failed: %v", id, err)
				return
			}

			if err := agg.ApplyModify(model.LegStopLoss, fields); err != nil {
				log.Printf("[service] trailing apply for %s failed: %v", id, err)
				return
			}
			snap := agg.Snapshot()
			s.emit(model.OrderEvent{
				Type: model.EventTrailingMove, OrderID: id, Leg: model.LegStopLoss,
				Status: snap.Status(), Snapshot: snap, TS: time.Now().UTC(),
			})
		})
		if err != nil {
			log.Printf("[service] tick dropped for %s: %v", id, err)
		}
	}
}

// Order returns a deep copy of one order's last-known state.
func (s *Service) Order(orderID string) (model.Order, error) {
	agg := s.book.Get(orderID)
	if agg == nil {
		return model.Order{}, model.ErrOrderNotFound
	}
	return agg.Snapshot(), nil
}

// Orders returns deep copies of every registered order.
func (s *Service) Orders() []model.Order {
	return s.book.Snapshots()
}

// Restore registers an externally recovered snapshot (warm start from the
// cache, or a reconcile pass against the broker's order book).
func (s *Service) Restore(ord model.Order) {
	s.book.Put(order.New(ord))
}

// retireIfTerminal drops bookkeeping for an order whose every leg is done.
// The aggregate itself stays in the Book so reads keep working.
func (s *Service) retireIfTerminal(snap *model.Order) {
	if !snap.Terminal() {
		return
	}
	s.trail.Forget(snap.OrderID)
	if s.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.gwTimeout)
		defer cancel()
		if err := s.cache.DeleteSnapshot(ctx, snap.OrderID); err != nil {
			log.Printf("[service] snapshot delete for %s failed: %v", snap.OrderID, err)
		}
	}
}

// emit journals, caches, and fans out one event. The events channel never
// blocks the order stream; a full channel drops the event for streaming
// consumers while the journal stays complete.
func (s *Service) emit(ev model.OrderEvent) {
	if s.journal != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.gwTimeout)
		if err := s.journal.AppendEvent(ctx, ev); err != nil {
			log.Printf("[service] journal append failed: %v", err)
		}
		cancel()
	}
	if s.cache != nil && ev.Type != model.EventInconsistency {
		ctx, cancel := context.WithTimeout(context.Background(), s.gwTimeout)
		if err := s.cache.SaveSnapshot(ctx, ev.Snapshot); err != nil {
			log.Printf("[service] snapshot save failed: %v", err)
		}
		cancel()
	}
	select {
	case s.events <- ev:
	default:
		log.Printf("[service] event channel full, dropping %s for %s", ev.Type, ev.OrderID)
	}
}
