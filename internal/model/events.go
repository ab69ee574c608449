package model

import (
	"encoding/json"
	"time"
)

// LegUpdate is one broker-reported status change for a leg. Seq orders
// updates per order; the aggregate drops anything at or below LastSeq.
type LegUpdate struct {
	OrderID   string    `json:"order_id"`
	Leg       LegRole   `json:"leg"`
	Status    LegStatus `json:"status"`
	FilledQty int64     `json:"filled_qty"`
	FillPrice int64     `json:"fill_price"` // paise, 0 if not a fill
	Seq       int64     `json:"seq"`
	TS        time.Time `json:"ts"`
}

// Tick is one last-traded-price observation for a security.
type Tick struct {
	SecurityID      string    `json:"security_id"`
	ExchangeSegment string    `json:"exchange_segment"`
	LTP             int64     `json:"ltp"` // paise
	TS              time.Time `json:"ts"`
}

// EventType classifies order events emitted on the bus, journal, and stream.
type EventType string

const (
	EventPlaced        EventType = "PLACED"
	EventLegUpdate     EventType = "LEG_UPDATE"
	EventModified      EventType = "MODIFIED"
	EventCancelled     EventType = "CANCELLED"
	EventOCOAutoCancel EventType = "OCO_AUTO_CANCEL"
	EventTrailingMove  EventType = "TRAILING_MOVE"
	EventInconsistency EventType = "INCONSISTENCY"
)

// OrderEvent is the unit published to subscribers after every accepted
// mutation. Snapshot is a deep copy; consumers may retain it.
type OrderEvent struct {
	Type     EventType   `json:"type"`
	OrderID  string      `json:"order_id"`
	Leg      LegRole     `json:"leg,omitempty"`
	Status   OrderStatus `json:"status"`
	Snapshot Order       `json:"snapshot"`
	Detail   string      `json:"detail,omitempty"`
	TS       time.Time   `json:"ts"`
}

// JSON marshals the event for the journal and the stream hub.
func (e OrderEvent) JSON() []byte {
	b, _ := json.Marshal(e)
	return b
}
