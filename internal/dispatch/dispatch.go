// Package dispatch serializes work per order. Leg-state transitions and
// invariant checks are not commutative, so every event for the same order id
// (user request, broker push, price tick) must run on a single goroutine,
// while events for different orders run in parallel.
//
// Orders are hashed onto a fixed set of shard goroutines, each draining its
// own queue in FIFO order. A full shard rejects new work instead of
// blocking the producer.
package dispatch

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
)

// ErrQueueFull is returned when the target shard's queue is saturated.
var ErrQueueFull = errors.New("dispatch: shard queue full")

// ErrStopped is returned after the dispatcher has shut down.
var ErrStopped = errors.New("dispatch: stopped")

// Dispatcher routes closures to shard goroutines by key.
type Dispatcher struct {
	shards []chan func()

	mu      sync.RWMutex
	stopped bool
}

// New creates a dispatcher with the given shard count and per-shard queue
// depth. Both are clamped to at least 1.
func New(shards, depth int) *Dispatcher {
	if shards < 1 {
		shards = 1
	}
	if depth < 1 {
		depth = 1
	}
	d := &Dispatcher{shards: make([]chan func(), shards)}
	for i := range d.shards {
		d.shards[i] = make(chan func(), depth)
	}
	return d
}

// Run starts the shard workers and blocks until ctx is cancelled. Queued
// work on each shard is drained before the worker exits.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, ch := range d.shards {
		wg.Add(1)
		go func(ch chan func()) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					d.mu.Lock()
					d.stopped = true
					d.mu.Unlock()
					for {
						select {
						case fn := <-ch:
							fn()
						default:
							return
						}
					}
				case fn := <-ch:
					fn()
				}
			}
		}(ch)
	}
	wg.Wait()
}

func (d *Dispatcher) shard(key string) chan func() {
	h := fnv.New32a()
	h.Write([]byte(key))
	return d.shards[int(h.Sum32())%len(d.shards)]
}

// Submit enqueues fn on key's shard without waiting for execution.
func (d *Dispatcher) Submit(key string, fn func()) error {
	d.mu.RLock()
	stopped := d.stopped
	d.mu.RUnlock()
	if stopped {
		return ErrStopped
	}
	select {
	case d.shard(key) <- fn:
		return nil
	default:
		return ErrQueueFull
	}
}

// Do enqueues fn on key's shard and waits for it to finish, or for ctx to
// expire. On ctx expiry the closure may still run later; callers must not
// capture state that outlives the call unsafely.
func (d *Dispatcher) Do(ctx context.Context, key string, fn func()) error {
	done := make(chan struct{})
	err := d.Submit(key, func() {
		defer close(done)
		fn()
	})
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Depth returns the total queued closures across shards (for metrics).
func (d *Dispatcher) Depth() int {
	n := 0
	for _, ch := range d.shards {
		n += len(ch)
	}
	return n
}
