// Package feed maintains the broker's push WebSocket and normalizes its two
// message families: order leg updates and last-traded-price ticks.
//
// Leg updates are delivered blocking (they must not be lost while the
// process is up); ticks are best-effort and dropped when the channel is full,
// since the next tick supersedes them anyway.
package feed

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"order-systemv1/internal/model"
)

// Config holds connection parameters.
type Config struct {
	URL         string // ws endpoint
	ClientID    string
	AccessToken string

	// Reconnect backoff; defaults: 1s initial, 30s cap.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Client streams broker pushes into the given channels. Run blocks until ctx
// is cancelled, reconnecting with exponential backoff on any failure.
type Client struct {
	cfg Config

	// OnReconnect is an optional metrics hook.
	OnReconnect func()
}

// New creates a feed client.
func New(cfg Config) *Client {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	return &Client{cfg: cfg}
}

const (
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
)

// Run connects and pumps messages until ctx is cancelled.
func (c *Client) Run(ctx context.Context, updates chan<- model.LegUpdate, ticks chan<- model.Tick) {
	backoff := c.cfg.InitialBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		err := c.readLoop(ctx, updates, ticks)
		if ctx.Err() != nil {
			return
		}
		log.Printf("[feed] connection lost: %v, reconnecting in %s", err, backoff)
		if c.OnReconnect != nil {
			c.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.cfg.MaxBackoff {
			backoff = c.cfg.MaxBackoff
		}
	}
}

func (c *Client) dialURL() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("clientId", c.cfg.ClientID)
	q.Set("token", c.cfg.AccessToken)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) readLoop(ctx context.Context, updates chan<- model.LegUpdate, ticks chan<- model.Tick) error {
	dialURL, err := c.dialURL()
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, dialURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Printf("[feed] connected to %s", c.cfg.URL)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Ping writer; also unblocks the reader on ctx cancel by closing.
	done := make(chan struct{})
	defer close(done)
	go func() {
		t := time.NewTicker(pingPeriod)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-done:
				return
			case <-t.C:
				conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.handleMessage(ctx, raw, updates, ticks)
	}
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type orderUpdateMsg struct {
	OrderID   string  `json:"orderId"`
	LegName   string  `json:"legName"`
	Status    string  `json:"orderStatus"`
	FilledQty int64   `json:"filledQty"`
	FillPrice float64 `json:"tradedPrice"` // rupees
	Seq       int64   `json:"seq"`
	EpochMS   int64   `json:"ts"`
}

type tickerMsg struct {
	SecurityID      string  `json:"securityId"`
	ExchangeSegment string  `json:"exchangeSegment"`
	LTP             float64 `json:"ltp"` // rupees
	EpochMS         int64   `json:"ltt"`
}

func (c *Client) handleMessage(ctx context.Context, raw []byte, updates chan<- model.LegUpdate, ticks chan<- model.Tick) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("[feed] bad frame: %v", err)
		return
	}

	switch env.Type {
	case "order_update":
		var m orderUpdateMsg
		if err := json.Unmarshal(env.Data, &m); err != nil {
			log.Printf("[feed] bad order update: %v", err)
			return
		}
		u := model.LegUpdate{
			OrderID:   m.OrderID,
			Leg:       model.LegRole(m.LegName),
			Status:    model.LegStatus(m.Status),
			FilledQty: m.FilledQty,
			FillPrice: model.RupeesToPaise(decimal.NewFromFloat(m.FillPrice)),
			Seq:       m.Seq,
			TS:        msTime(m.EpochMS),
		}
		select {
		case updates <- u:
		case <-ctx.Done():
		}

	case "ticker":
		var m tickerMsg
		if err := json.Unmarshal(env.Data, &m); err != nil {
			log.Printf("[feed] bad ticker: %v", err)
			return
		}
		t := model.Tick{
			SecurityID:      m.SecurityID,
			ExchangeSegment: m.ExchangeSegment,
			LTP:             model.RupeesToPaise(decimal.NewFromFloat(m.LTP)),
			TS:              msTime(m.EpochMS),
		}
		select {
		case ticks <- t:
		default:
			// Superseded by the next tick.
		}

	default:
		// Heartbeats and unknown frames are ignored.
	}
}

func msTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(0, ms*int64(time.Millisecond)).UTC()
}
