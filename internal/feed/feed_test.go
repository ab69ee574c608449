package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"order-systemv1/internal/model"
)

var upgrader = websocket.Upgrader{}

// wsServer serves one connection, sends frames, and closes.
func wsServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// Hold the connection open briefly so the client drains the frames.
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestOrderUpdateNormalized(t *testing.T) {
	srv := wsServer(t, []string{
		`{"type":"order_update","data":{"orderId":"112111182045","legName":"ENTRY_LEG","orderStatus":"TRADED","filledQty":10,"tradedPrice":100.50,"seq":7,"ts":1630000000000}}`,
	})

	cli := New(Config{URL: wsURL(srv), ClientID: "1000000132", AccessToken: "tok"})
	updates := make(chan model.LegUpdate, 4)
	ticks := make(chan model.Tick, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cli.Run(ctx, updates, ticks)

	select {
	case u := <-updates:
		if u.OrderID != "112111182045" || u.Leg != model.LegEntry {
			t.Fatalf("update: %+v", u)
		}
		if u.Status != model.LegTraded || u.FilledQty != 10 || u.Seq != 7 {
			t.Fatalf("update fields: %+v", u)
		}
		if u.FillPrice != 10050 {
			t.Fatalf("fill price: got %d paise, want 10050", u.FillPrice)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no update received")
	}
}

func TestTickerNormalizedAndUnknownIgnored(t *testing.T) {
	srv := wsServer(t, []string{
		`{"type":"heartbeat"}`,
		`{"type":"ticker","data":{"securityId":"11536","exchangeSegment":"NSE_EQ","ltp":105.00,"ltt":1630000000000}}`,
	})

	cli := New(Config{URL: wsURL(srv), ClientID: "1000000132", AccessToken: "tok"})
	updates := make(chan model.LegUpdate, 4)
	ticks := make(chan model.Tick, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cli.Run(ctx, updates, ticks)

	select {
	case tk := <-ticks:
		if tk.SecurityID != "11536" || tk.LTP != 10500 {
			t.Fatalf("tick: %+v", tk)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no tick received")
	}
	if len(updates) != 0 {
		t.Fatal("heartbeat produced an order update")
	}
}

func TestReconnectAfterServerClose(t *testing.T) {
	var conns int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns++
		if conns == 1 {
			conn.Close() // force a reconnect
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(
			`{"type":"ticker","data":{"securityId":"11536","exchangeSegment":"NSE_EQ","ltp":101.00}}`))
		time.Sleep(200 * time.Millisecond)
		conn.Close()
	}))
	defer srv.Close()

	reconnects := 0
	cli := New(Config{
		URL: wsURL(srv), ClientID: "1000000132", AccessToken: "tok",
		InitialBackoff: 10 * time.Millisecond,
	})
	cli.OnReconnect = func() { reconnects++ }

	updates := make(chan model.LegUpdate, 4)
	ticks := make(chan model.Tick, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cli.Run(ctx, updates, ticks)

	select {
	case <-ticks:
	case <-time.After(5 * time.Second):
		t.Fatal("no tick after reconnect")
	}
	if reconnects == 0 {
		t.Fatal("reconnect hook not invoked")
	}
}
