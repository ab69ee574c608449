// Package reconcile aligns local order state with the broker's order book.
// The broker is the system of record: on cold start, and periodically to
// cover missed pushes, the book is fetched and divergent or unknown orders
// are restored from it.
package reconcile

import (
	"context"
	"log"
	"time"

	"order-systemv1/internal/model"
)

// Registry is the local state the reconciler repairs (the service layer).
type Registry interface {
	Order(orderID string) (model.Order, error)
	Restore(ord model.Order)
}

// Config tunes the fetch retry and the periodic pass.
type Config struct {
	Interval       time.Duration // between passes; default 60s
	MaxRetries     int           // per fetch; default 5
	InitialBackoff time.Duration // default 500ms, doubles per attempt
}

// Reconciler runs the reconcile loop.
type Reconciler struct {
	gw  model.Gateway
	reg Registry
	cfg Config

	// OnRestore is an optional metrics hook.
	OnRestore func(n int)
}

// New creates a reconciler.
func New(gw model.Gateway, reg Registry, cfg Config) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	return &Reconciler{gw: gw, reg: reg, cfg: cfg}
}

// WarmStart restores cached snapshots before the first broker fetch, so
// reads work immediately after a restart.
func (r *Reconciler) WarmStart(ctx context.Context, cache model.SnapshotCache) {
	if cache == nil {
		return
	}
	snaps, err := cache.LoadSnapshots(ctx)
	if err != nil {
		log.Printf("[reconcile] warm start skipped: %v", err)
		return
	}
	for _, ord := range snaps {
		r.reg.Restore(ord)
	}
	log.Printf("[reconcile] warm start restored %d orders", len(snaps))
}

// Run performs one immediate pass, then one per interval until ctx ends.
// OnRestore, when set, is called with the restore count of each pass.
func (r *Reconciler) Run(ctx context.Context) {
	if n := r.Pass(ctx); n > 0 && r.OnRestore != nil {
		r.OnRestore(n)
	}
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Pass(ctx); n > 0 && r.OnRestore != nil {
				r.OnRestore(n)
			}
		}
	}
}

// Pass fetches the broker book with retries and repairs local state.
// Returns the number of orders restored.
func (r *Reconciler) Pass(ctx context.Context) int {
	book, err := r.fetchBook(ctx)
	if err != nil {
		log.Printf("[reconcile] order book fetch failed: %v", err)
		return 0
	}

	restored := 0
	for _, remote := range book {
		local, err := r.reg.Order(remote.OrderID)
		if err != nil {
			// Unknown locally (cold start or a missed placement push).
			r.reg.Restore(remote)
			restored++
			continue
		}
		if diverged(local, remote) {
			log.Printf("[reconcile] order %s diverged from broker, restoring", remote.OrderID)
			r.reg.Restore(remote)
			restored++
		}
	}
	if restored > 0 {
		log.Printf("[reconcile] pass restored %d orders", restored)
	}
	return restored
}

func (r *Reconciler) fetchBook(ctx context.Context) ([]model.Order, error) {
	backoff := r.cfg.InitialBackoff
	var lastErr error
	for attempt := 0; attempt < r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		book, err := r.gw.OrderBook(ctx)
		if err == nil {
			return book, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// diverged reports whether the broker sees the order further along than we
// do. Fill quantities only ever grow and legs only move toward terminal, so
// a remote value behind ours means a stale book read, not a divergence.
func diverged(local, remote model.Order) bool {
	for i := range remote.Legs {
		rl := &remote.Legs[i]
		ll := local.Leg(rl.Role)
		if ll == nil {
			return true
		}
		if rl.FilledQty > ll.FilledQty {
			return true
		}
		if rl.Status != ll.Status && rl.Status.Terminal() && !ll.Status.Terminal() {
			return true
		}
	}
	return false
}
