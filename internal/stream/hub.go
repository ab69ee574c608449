// Package stream pushes order events to dashboard WebSocket clients. The hub
// consumes the fanout bus, keeps the latest snapshot per order for initial
// state, and buffers recent envelopes for gap backfill via seq numbers.
package stream

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"order-systemv1/internal/model"
)

// Hub manages WebSocket clients and order event fan-out.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]latestEntry // orderID -> last envelope
	seq     int64

	replay *ReplayBuffer
}

type latestEntry struct {
	Data []byte
	TS   time.Time
	Seq  int64
}

// NewHub creates a hub with the given replay capacity.
func NewHub(replayCapacity int) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		latest:  make(map[string]latestEntry),
		replay:  NewReplayBuffer(replayCapacity),
	}
}

// Run consumes the event stream until ctx is cancelled or events closes.
func (h *Hub) Run(ctx context.Context, events <-chan model.OrderEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.broadcast(ev)
		}
	}
}

// broadcast builds the envelope once and sends it to every matching client.
// The envelope is hand-crafted to avoid re-marshalling per client.
func (h *Hub) broadcast(ev model.OrderEvent) {
	data := ev.JSON()
	now := time.Now().UTC()

	h.mu.Lock()
	h.seq++
	seq := h.seq
	h.mu.Unlock()

	buf := make([]byte, 0, len(data)+96)
	buf = append(buf, `{"type":"order_event","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, '}')

	h.replay.Push(seq, buf)

	h.mu.Lock()
	h.latest[ev.OrderID] = latestEntry{Data: buf, TS: now, Seq: seq}
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !client.matchesOrder(ev.OrderID) {
			continue
		}
		select {
		case client.send <- buf:
		default:
		}
	}
}

// HandleWSRequest registers an upgraded connection. fromSeq > 0 requests a
// replay of buffered envelopes after that sequence before live delivery.
func (h *Hub) HandleWSRequest(conn *websocket.Conn, fromSeq int64) {
	client := &Client{
		conn:   conn,
		send:   make(chan []byte, 256),
		hub:    h,
		orders: make(map[string]bool),
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("[stream] ws client connected (%d total)", count)

	go client.sendInitialState(fromSeq)
	go client.writePump()
	go client.readPump()
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// ReplayRange returns buffered envelopes with seq in [fromSeq, toSeq],
// backing the missed-events REST endpoint.
func (h *Hub) ReplayRange(fromSeq, toSeq int64) [][]byte {
	entries := h.replay.Range(fromSeq, toSeq)
	result := make([][]byte, len(entries))
	for i, e := range entries {
		result[i] = e.Data
	}
	return result
}

// Seq returns the latest broadcast sequence number.
func (h *Hub) Seq() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// subscribeMsg is the client -> hub control frame.
type subscribeMsg struct {
	Type     string   `json:"type"` // SUBSCRIBE or UNSUBSCRIBE
	OrderIDs []string `json:"orderIds"`
	Ping     int64    `json:"ping"`
}

func pongFrame(ping int64) []byte {
	b, _ := json.Marshal(map[string]any{
		"type":      "pong",
		"ping":      ping,
		"server_ts": time.Now().UnixMilli(),
	})
	return b
}
