package order

import (
	"sync"

	"order-systemv1/internal/model"
)

// Book is the registry of live aggregates. Mutation of an individual
// aggregate happens on its serialized per-order stream; the Book's lock only
// guards the maps for concurrent registration and external reads.
type Book struct {
	mu         sync.RWMutex
	orders     map[string]*Aggregate
	bySecurity map[string]map[string]struct{} // securityID -> set of orderIDs
}

// NewBook creates an empty registry.
func NewBook() *Book {
	return &Book{
		orders:     make(map[string]*Aggregate),
		bySecurity: make(map[string]map[string]struct{}),
	}
}

// Put registers (or replaces) an aggregate.
func (b *Book) Put(a *Aggregate) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := a.OrderID()
	if prev, ok := b.orders[id]; ok {
		b.unindex(prev)
	}
	b.orders[id] = a
	sec := a.ord.Instrument.SecurityID
	if b.bySecurity[sec] == nil {
		b.bySecurity[sec] = make(map[string]struct{})
	}
	b.bySecurity[sec][id] = struct{}{}
}

// Get returns the aggregate for orderID, or nil.
func (b *Book) Get(orderID string) *Aggregate {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.orders[orderID]
}

// Remove drops a terminal order from the registry.
func (b *Book) Remove(orderID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if a, ok := b.orders[orderID]; ok {
		b.unindex(a)
		delete(b.orders, orderID)
	}
}

func (b *Book) unindex(a *Aggregate) {
	sec := a.ord.Instrument.SecurityID
	if set, ok := b.bySecurity[sec]; ok {
		delete(set, a.OrderID())
		if len(set) == 0 {
			delete(b.bySecurity, sec)
		}
	}
}

// OrderIDsBySecurity returns the ids of orders trading the given security.
// Used by the trailing engine to route price ticks.
func (b *Book) OrderIDsBySecurity(securityID string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	set := b.bySecurity[securityID]
	if len(set) == 0 {
		return nil
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// Snapshots returns deep copies of every registered order.
func (b *Book) Snapshots() []model.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]model.Order, 0, len(b.orders))
	for _, a := range b.orders {
		out = append(out, a.Snapshot())
	}
	return out
}

// Len returns the number of registered orders.
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.orders)
}
