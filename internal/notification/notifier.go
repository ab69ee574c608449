// Package notification delivers order lifecycle alerts to external channels
// (Telegram, webhooks) by consuming the event bus.
package notification

import (
	"context"
	"fmt"
	"log"

	"order-systemv1/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	OrderID string     `json:"order_id,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Watcher consumes order events and alerts the noteworthy ones. Delivery
// failures are logged, never retried; the journal is the durable record.
type Watcher struct {
	notifiers []Notifier
}

// NewWatcher creates a watcher fanning alerts to the given backends.
func NewWatcher(notifiers ...Notifier) *Watcher {
	return &Watcher{notifiers: notifiers}
}

// Run consumes events until ctx is cancelled or the channel closes.
func (w *Watcher) Run(ctx context.Context, events <-chan model.OrderEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			alert, ok := AlertFor(ev)
			if !ok {
				continue
			}
			for _, n := range w.notifiers {
				if err := n.Send(ctx, alert); err != nil {
					log.Printf("[notify] delivery failed: %v", err)
				}
			}
		}
	}
}

// AlertFor maps an order event to an alert; ok is false for events not worth
// pushing (routine placements and modifies).
func AlertFor(ev model.OrderEvent) (Alert, bool) {
	switch ev.Type {
	case model.EventInconsistency:
		return Alert{
			Level:   AlertCritical,
			Title:   "Order state inconsistency",
			Message: fmt.Sprintf("order %s: %s", ev.OrderID, ev.Detail),
			OrderID: ev.OrderID,
		}, true

	case model.EventOCOAutoCancel:
		return Alert{
			Level:   AlertInfo,
			Title:   "OCO leg auto-cancelled",
			Message: fmt.Sprintf("order %s: %s cancelled after its sibling traded", ev.OrderID, ev.Leg),
			OrderID: ev.OrderID,
		}, true

	case model.EventLegUpdate:
		switch ev.Status {
		case model.OrderRejected:
			return Alert{
				Level:   AlertWarning,
				Title:   "Order rejected",
				Message: fmt.Sprintf("order %s rejected by the exchange", ev.OrderID),
				OrderID: ev.OrderID,
			}, true
		case model.OrderClosed:
			return Alert{
				Level:   AlertInfo,
				Title:   "Position closed",
				Message: fmt.Sprintf("order %s closed via %s", ev.OrderID, ev.Leg),
				OrderID: ev.OrderID,
			}, true
		}
	}
	return Alert{}, false
}
