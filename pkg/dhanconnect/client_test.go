package dhanconnect

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		ClientID:    "1000000132",
		AccessToken: "token-123",
		RootURL:     srv.URL,
	})
}

func TestPlaceSuperOrder(t *testing.T) {
	var gotPath, gotToken string
	var gotReq SuperOrderRequest
	dc := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		gotToken = r.Header.Get("access-token")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Error(err)
		}
		json.NewEncoder(w).Encode(OrderAck{OrderID: "112111182045", OrderStatus: "PENDING"})
	})

	ack, err := dc.PlaceSuperOrder(context.Background(), SuperOrderRequest{
		TransactionType: "BUY",
		ExchangeSegment: "NSE_EQ",
		ProductType:     "INTRADAY",
		OrderType:       "LIMIT",
		SecurityID:      "11536",
		Quantity:        5,
		Price:           1500,
		TargetPrice:     1600,
		StopLossPrice:   1400,
		TrailingJump:    10,
	})
	if err != nil {
		t.Fatal(err)
	}
	if ack.OrderID != "112111182045" {
		t.Fatalf("order id: got %s", ack.OrderID)
	}
	if gotPath != "POST /v2/super/orders" {
		t.Fatalf("path: got %s", gotPath)
	}
	if gotToken != "token-123" {
		t.Fatalf("access-token header: got %s", gotToken)
	}
	// The client id is filled in from the config when absent.
	if gotReq.DhanClientID != "1000000132" {
		t.Fatalf("dhanClientId: got %s", gotReq.DhanClientID)
	}
}

func TestCancelSuperOrderLegInPath(t *testing.T) {
	var gotPath string
	dc := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		json.NewEncoder(w).Encode(OrderAck{OrderID: "112111182045", OrderStatus: "CANCELLED"})
	})

	if _, err := dc.CancelSuperOrder(context.Background(), "112111182045", "TARGET_LEG"); err != nil {
		t.Fatal(err)
	}
	if gotPath != "DELETE /v2/super/orders/112111182045/TARGET_LEG" {
		t.Fatalf("path: got %s", gotPath)
	}
}

func TestModifySuperOrderCarriesLegName(t *testing.T) {
	var gotPath string
	var gotReq ModifyLegRequest
	dc := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(OrderAck{OrderID: "112111182045", OrderStatus: "TRANSIT"})
	})

	sl := 99.5
	_, err := dc.ModifySuperOrder(context.Background(), "112111182045", ModifyLegRequest{
		LegName:       "STOP_LOSS_LEG",
		StopLossPrice: &sl,
	})
	if err != nil {
		t.Fatal(err)
	}
	if gotPath != "PUT /v2/super/orders/112111182045" {
		t.Fatalf("path: got %s", gotPath)
	}
	if gotReq.LegName != "STOP_LOSS_LEG" || gotReq.OrderID != "112111182045" {
		t.Fatalf("body: %+v", gotReq)
	}
	if gotReq.Price != nil || gotReq.StopLossPrice == nil || *gotReq.StopLossPrice != 99.5 {
		t.Fatalf("fields: %+v", gotReq)
	}
}

func TestAPIErrorDecoded(t *testing.T) {
	dc := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"errorCode":    "DH-905",
			"errorMessage": "Invalid order quantity",
		})
	})

	_, err := dc.PlaceSuperOrder(context.Background(), SuperOrderRequest{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("got %v, want APIError", err)
	}
	if apiErr.StatusCode != 400 || apiErr.Code != "DH-905" {
		t.Fatalf("api error: %+v", apiErr)
	}
}

func TestForeverOrderBook(t *testing.T) {
	dc := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/forever/orders" || r.Method != http.MethodGet {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode([]BookEntry{{
			OrderID:   "5132208051113",
			OrderFlag: "OCO",
			LegDetails: []BookLeg{
				{LegName: "STOP_LOSS_LEG", TriggerPrice: 49, OrderStatus: "PENDING"},
				{LegName: "TARGET_LEG", TriggerPrice: 54, OrderStatus: "PENDING"},
			},
		}})
	})

	book, err := dc.ForeverOrderBook(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(book) != 1 || len(book[0].LegDetails) != 2 {
		t.Fatalf("book: %+v", book)
	}
}

func TestGenerateSessionRequiresSecret(t *testing.T) {
	dc := New(Config{ClientID: "1000000132"})
	if err := dc.GenerateSession(context.Background()); err == nil {
		t.Fatal("expected error without a TOTP secret")
	}
}

func TestGenerateSessionStoresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["totp"] == "" {
			t.Error("no totp code in login payload")
		}
		json.NewEncoder(w).Encode(map[string]string{"accessToken": "fresh-token"})
	}))
	defer srv.Close()

	dc := New(Config{
		ClientID:   "1000000132",
		TOTPSecret: "JBSWY3DPEHPK3PXP",
		RootURL:    srv.URL,
	})
	if err := dc.GenerateSession(context.Background()); err != nil {
		t.Fatal(err)
	}
	if dc.accessToken != "fresh-token" {
		t.Fatalf("token not stored: %q", dc.accessToken)
	}
}
