package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"order-systemv1/internal/model"
)

func newJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := New(Config{DBPath: filepath.Join(t.TempDir(), "orders.db")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestAppendAndReadBack(t *testing.T) {
	j := newJournal(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()

	ts := time.Date(2021, 11, 18, 10, 30, 0, 0, time.UTC)
	events := []model.OrderEvent{
		{Type: model.EventPlaced, OrderID: "112111182045", Status: model.OrderPending, TS: ts},
		{Type: model.EventLegUpdate, OrderID: "112111182045", Leg: model.LegEntry, Status: model.OrderTraded, TS: ts.Add(time.Minute)},
		{Type: model.EventLegUpdate, OrderID: "999999999999", Leg: model.LegEntry, Status: model.OrderPending, TS: ts},
	}
	for _, ev := range events {
		if err := j.AppendEvent(context.Background(), ev); err != nil {
			t.Fatal(err)
		}
	}

	// Shutdown flushes the queue.
	cancel()
	<-done

	got, err := j.EventsForOrder(context.Background(), "112111182045", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("events: got %d, want 2", len(got))
	}
	if got[0].Type != model.EventPlaced || got[1].Leg != model.LegEntry {
		t.Fatalf("order of events: %+v", got)
	}
	if !got[1].TS.Equal(ts.Add(time.Minute)) {
		t.Fatalf("ts roundtrip: got %v", got[1].TS)
	}
}

func TestTimerFlushWithoutShutdown(t *testing.T) {
	j := newJournal(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go j.Run(ctx)

	if err := j.AppendEvent(context.Background(), model.OrderEvent{
		Type: model.EventCancelled, OrderID: "112111182045",
		Status: model.OrderCancelled, TS: time.Now().UTC(),
	}); err != nil {
		t.Fatal(err)
	}

	// The flush timer fires within defaultFlushDelay.
	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := j.EventsForOrder(context.Background(), "112111182045", 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) == 1 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("event not flushed by timer")
		}
		time.Sleep(50 * time.Millisecond)
	}
}
