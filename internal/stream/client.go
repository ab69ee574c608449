package stream

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// Subscribed order ids; empty means receive everything.
	subMu  sync.RWMutex
	orders map[string]bool
}

func (c *Client) matchesOrder(orderID string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	if len(c.orders) == 0 {
		return true
	}
	return c.orders[orderID]
}

// sendInitialState delivers either a replay from fromSeq or the latest
// envelope per order.
func (c *Client) sendInitialState(fromSeq int64) {
	if fromSeq > 0 {
		for _, buf := range c.hub.ReplayRange(fromSeq+1, c.hub.Seq()) {
			select {
			case c.send <- buf:
			default:
				return
			}
		}
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	for _, entry := range c.hub.latest {
		select {
		case c.send <- entry.Data:
		default:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			// Write coalescing: batch queued messages into a single frame
			// with newline separators.
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		log.Println("[stream] ws client disconnected")
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var m subscribeMsg
		if json.Unmarshal(msg, &m) != nil {
			continue
		}

		switch m.Type {
		case "SUBSCRIBE":
			c.subMu.Lock()
			for _, id := range m.OrderIDs {
				c.orders[id] = true
			}
			c.subMu.Unlock()
			log.Printf("[stream] client subscribed: orders=%v", m.OrderIDs)

		case "UNSUBSCRIBE":
			c.subMu.Lock()
			for _, id := range m.OrderIDs {
				delete(c.orders, id)
			}
			c.subMu.Unlock()

		default:
			if m.Ping > 0 {
				select {
				case c.send <- pongFrame(m.Ping):
				default:
				}
			}
		}
	}
}
