package bus

import (
	"context"
	"testing"
	"time"

	"order-systemv1/internal/model"
)

func TestFanOut_BroadcastsToAll(t *testing.T) {
	fo := New(10)
	out1 := fo.Subscribe()
	out2 := fo.Subscribe()

	input := make(chan model.OrderEvent, 10)
	ctx, cancel := context.WithCancel(context.Background())
	go fo.Run(ctx, input)

	ev := model.OrderEvent{
		Type:    model.EventLegUpdate,
		OrderID: "112111182045",
		Leg:     model.LegEntry,
		Status:  model.OrderTraded,
	}

	input <- ev
	time.Sleep(50 * time.Millisecond)

	select {
	case e := <-out1:
		if e.OrderID != "112111182045" {
			t.Errorf("out1: expected order 112111182045, got %s", e.OrderID)
		}
	case <-time.After(time.Second):
		t.Fatal("out1: timed out waiting for event")
	}

	select {
	case e := <-out2:
		if e.OrderID != "112111182045" {
			t.Errorf("out2: expected order 112111182045, got %s", e.OrderID)
		}
	case <-time.After(time.Second):
		t.Fatal("out2: timed out waiting for event")
	}

	cancel()
}

func TestFanOut_DropsForSlowConsumer(t *testing.T) {
	fo := New(1)
	slow := fo.Subscribe()

	dropped := 0
	fo.OnDrop = func(int) { dropped++ }

	input := make(chan model.OrderEvent, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fo.Run(ctx, input)

	for i := 0; i < 3; i++ {
		input <- model.OrderEvent{Type: model.EventLegUpdate, OrderID: "112111182045"}
	}
	time.Sleep(100 * time.Millisecond)

	if dropped == 0 {
		t.Fatal("no drops recorded for the saturated subscriber")
	}
	if len(slow) != 1 {
		t.Fatalf("slow channel: got %d buffered, want 1", len(slow))
	}
}
