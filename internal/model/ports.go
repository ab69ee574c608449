package model

import "context"

// ── Port Interfaces ──
// These interfaces decouple the order core from concrete infrastructure
// (broker HTTP client, Redis, SQLite, notification backends). Each
// implementation satisfies one or more of these interfaces.

// PlaceAck is the broker's acknowledgement of a mutating call.
type PlaceAck struct {
	OrderID     string `json:"order_id"`
	OrderStatus string `json:"order_status"`
}

// Gateway is the broker order API. It is the system of record: the core
// never assumes a mutation succeeded without an explicit ack, and mutating
// calls are never retried blindly.
type Gateway interface {
	// PlaceOrder submits a validated, not-yet-placed order. ord.OrderID is
	// empty; the broker assigns one in the ack.
	PlaceOrder(ctx context.Context, ord *Order) (PlaceAck, error)

	// ModifyOrder changes fields of one named leg.
	ModifyOrder(ctx context.Context, orderID string, kind OrderKind, leg LegRole, fields ModifyFields) (PlaceAck, error)

	// CancelOrder cancels a whole order (leg == "") or a single leg.
	CancelOrder(ctx context.Context, orderID string, kind OrderKind, leg LegRole) (PlaceAck, error)

	// OrderBook returns the broker's view of all conditional orders, used
	// to reconcile local state on cold start or after a missed push.
	OrderBook(ctx context.Context) ([]Order, error)
}

// JournalWriter persists order events durably (SQLite).
type JournalWriter interface {
	// AppendEvent records one order event. Blocking, batched internally.
	AppendEvent(ctx context.Context, ev OrderEvent) error

	// Close releases underlying resources.
	Close() error
}

// SnapshotCache mirrors last-known aggregate state (Redis).
type SnapshotCache interface {
	// SaveSnapshot upserts the order snapshot.
	SaveSnapshot(ctx context.Context, ord Order) error

	// LoadSnapshots returns all cached snapshots (warm start before the
	// gateway reconcile completes).
	LoadSnapshots(ctx context.Context) ([]Order, error)

	// DeleteSnapshot removes a terminal order's snapshot.
	DeleteSnapshot(ctx context.Context, orderID string) error

	// Close releases underlying resources.
	Close() error
}
