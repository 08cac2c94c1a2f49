package broker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/optlens/optlens/internal/models"
)

var testNow = time.Date(2026, 8, 26, 15, 0, 0, 0, time.UTC)

func testClient(t *testing.T, handler http.Handler) *EtradeAPI {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewEtradeAPI("ck", "cs", "at", "as", false).
		WithHTTPClient(server.Client()).
		WithBaseURL(server.URL).
		WithClock(func() time.Time { return testNow })
}

func TestAPIError_Error(t *testing.T) {
	err := &APIError{Status: 429, Body: "too many requests"}
	want := "API error 429: too many requests"
	if got := err.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestNewEtradeAPI_BaseURLs(t *testing.T) {
	if got := NewEtradeAPI("k", "s", "t", "ts", false).baseURL; got != "https://api.etrade.com" {
		t.Fatalf("production baseURL = %q", got)
	}
	if got := NewEtradeAPI("k", "s", "t", "ts", true).baseURL; got != "https://apisb.etrade.com" {
		t.Fatalf("sandbox baseURL = %q", got)
	}
}

func TestBaseSymbolOf(t *testing.T) {
	tests := []struct {
		symbol       string
		securityType string
		want         string
	}{
		{"SPY Aug 26 '26 $440 Put", models.SecurityOption, "SPY"},
		{"QQQ--260925C00470000", models.SecurityOption, "QQQ"},
		{"AAPL", models.SecurityEquity, "AAPL"},
		{"BRK.B", models.SecurityEquity, "BRK.B"},
		{"123ABC", models.SecurityOption, "123ABC"},
		{"", models.SecurityOption, ""},
	}
	for _, tt := range tests {
		if got := baseSymbolOf(tt.symbol, tt.securityType); got != tt.want {
			t.Errorf("baseSymbolOf(%q, %q) = %q, want %q", tt.symbol, tt.securityType, got, tt.want)
		}
	}
}

func TestOneOrMany_UnmarshalJSON(t *testing.T) {
	type item struct {
		Name string `json:"name"`
	}
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"array", `[{"name":"a"},{"name":"b"}]`, 2},
		{"single object", `{"name":"a"}`, 1},
		{"null", `null`, 0},
		{"empty array", `[]`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got oneOrMany[item]
			if err := json.Unmarshal([]byte(tt.in), &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestListAccounts(t *testing.T) {
	api := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/accounts/list" {
			t.Errorf("path = %q", r.URL.Path)
		}
		// Single account arrives as an object, not a one-element array.
		io.WriteString(w, `{"AccountListResponse":{"Accounts":{"Account":
			{"accountId":"840","accountIdKey":"abc123","accountName":"Brokerage","accountStatus":"ACTIVE"}}}}`)
	}))

	accounts, err := api.ListAccounts(context.Background())
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("len(accounts) = %d, want 1", len(accounts))
	}
	if accounts[0].AccountIDKey != "abc123" {
		t.Errorf("AccountIDKey = %q", accounts[0].AccountIDKey)
	}
}

func TestGetPositions_Normalization(t *testing.T) {
	api := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/accounts/abc123/portfolio" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("view"); got != "COMPLETE" {
			t.Errorf("view = %q", got)
		}
		io.WriteString(w, `{"PortfolioResponse":{"AccountPortfolio":{"Position":[
			{
				"Product":{"symbol":"SPY Sep 25 '26 $440 Put","securityType":"OPTN","callPut":"PUT",
					"strikePrice":440,"expiryYear":2026,"expiryMonth":9,"expiryDay":25},
				"Quick":{"lastTrade":6.2,"change":-0.35,"changePct":-5.3},
				"Complete":{"delta":-0.31,"theta":-0.042,"ivPct":18.5,"costPerShare":5.8},
				"symbolDescription":"SPY Sep 25 '26 $440 Put",
				"quantity":-1,"pricePaid":5.8,"marketValue":-620,
				"daysGain":35,"totalGainPct":-6.9,"dateAcquired":1755000000000
			},
			{
				"Product":{"symbol":"AAPL","securityType":"EQ"},
				"Quick":{"lastTrade":231.4},
				"quantity":100,"pricePaid":182.5,"marketValue":23140,"totalCost":18250,
				"totalGain":4890,"totalGainPct":26.8
			}
		]}}}`)
	}))

	positions, err := api.GetPositions(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("GetPositions: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("len(positions) = %d, want 2", len(positions))
	}

	opt := positions[0]
	if opt.BaseSymbol != "SPY" {
		t.Errorf("BaseSymbol = %q, want SPY", opt.BaseSymbol)
	}
	if opt.Quantity != -1 {
		t.Errorf("Quantity = %d, want -1", opt.Quantity)
	}
	// totalCost absent: falls back to quantity*pricePaid.
	if opt.TotalCost != -5.8 {
		t.Errorf("TotalCost = %v, want -5.8", opt.TotalCost)
	}
	// totalGain absent: falls back to marketValue-totalCost.
	if want := -620 - (-5.8); opt.TotalGain != want {
		t.Errorf("TotalGain = %v, want %v", opt.TotalGain, want)
	}
	if opt.DTE == nil || *opt.DTE != 30 {
		t.Errorf("DTE = %v, want 30", opt.DTE)
	}
	if opt.Delta == nil || *opt.Delta != -0.31 {
		t.Errorf("Delta = %v", opt.Delta)
	}
	if opt.IV == nil || *opt.IV != 18.5 {
		t.Errorf("IV = %v", opt.IV)
	}
	if opt.LastPrice != 6.2 {
		t.Errorf("LastPrice = %v", opt.LastPrice)
	}
	if opt.DaysGain != 35 {
		t.Errorf("DaysGain = %v", opt.DaysGain)
	}
	if opt.DateAcquired == nil || *opt.DateAcquired != 1755000000000 {
		t.Errorf("DateAcquired = %v", opt.DateAcquired)
	}

	eq := positions[1]
	if eq.BaseSymbol != "AAPL" || eq.SecurityType != models.SecurityEquity {
		t.Errorf("equity = %+v", eq)
	}
	if eq.TotalCost != 18250 || eq.TotalGain != 4890 {
		t.Errorf("equity cost/gain = %v/%v", eq.TotalCost, eq.TotalGain)
	}
	if eq.DTE != nil {
		t.Errorf("equity DTE = %v, want nil", eq.DTE)
	}
	// Description falls back to the security type when absent.
	if eq.Description != models.SecurityEquity {
		t.Errorf("equity Description = %q", eq.Description)
	}
}

func TestGetOpenOrders_Flattening(t *testing.T) {
	api := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("status"); got != "OPEN" {
			t.Errorf("status = %q", got)
		}
		io.WriteString(w, `{"OrdersResponse":{"Order":[{
			"orderId":4242,"orderType":"SPREADS",
			"OrderDetail":[
				{"priceType":"MARKET","Instrument":{"Product":{"symbol":"X","securityType":"EQ"},"orderedQuantity":1,"orderAction":"SELL"}},
				{"limitPrice":3.0,"priceType":"NET_DEBIT","orderTerm":"GOOD_UNTIL_CANCEL","status":"OPEN",
				 "Instrument":[
					{"Product":{"symbol":"SPY Sep 25 '26 $440 Put","securityType":"OPTN","callPut":"PUT",
						"strikePrice":440,"expiryYear":2026,"expiryMonth":9,"expiryDay":25},
					 "orderedQuantity":1,"orderAction":"BUY_CLOSE"},
					{"Product":{"symbol":"","securityType":"OPTN"},"orderedQuantity":1,"orderAction":"SELL_CLOSE"}
				 ]}
			]}]}}`)
	}))

	orders, err := api.GetOpenOrders(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("GetOpenOrders: %v", err)
	}
	// The unpriced detail is dropped, the priced one survives.
	if len(orders) != 1 {
		t.Fatalf("len(orders) = %d, want 1", len(orders))
	}

	order := orders[0]
	if order.OrderID != 4242 || order.LimitPrice != 3.0 || order.PriceType != models.PriceTypeNetDebit {
		t.Errorf("order = %+v", order)
	}
	// The symbol-less instrument is dropped.
	if len(order.Legs) != 1 {
		t.Fatalf("len(legs) = %d, want 1", len(order.Legs))
	}
	if order.BaseSymbol != "SPY" {
		t.Errorf("BaseSymbol = %q", order.BaseSymbol)
	}
	leg := order.Legs[0]
	if leg.OrderAction != models.ActionBuyClose || leg.Strike() != 440 {
		t.Errorf("leg = %+v", leg)
	}
}

func TestPlaceExitOrder_PreviewThenPlace(t *testing.T) {
	var previewBody, placeBody map[string]any
	api := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/accounts/abc123/orders/preview":
			if err := json.NewDecoder(r.Body).Decode(&previewBody); err != nil {
				t.Fatalf("decode preview body: %v", err)
			}
			io.WriteString(w, `{"PreviewOrderResponse":{"PreviewIds":{"previewId":321}}}`)
		case "/v1/accounts/abc123/orders/place":
			if err := json.NewDecoder(r.Body).Decode(&placeBody); err != nil {
				t.Fatalf("decode place body: %v", err)
			}
			io.WriteString(w, `{"PlaceOrderResponse":{"OrderIds":[{"orderId":777}]}}`)
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))

	confirmation, err := api.PlaceExitOrder(context.Background(), "abc123", ExitOrderRequest{
		Symbol:       "SPY Sep 25 '26 $440 Put",
		SecurityType: models.SecurityOption,
		OrderAction:  models.ActionBuyClose,
		Quantity:     1,
		LimitPrice:   3.00,
		ExpiryDate:   "2026-09-25",
		CallPut:      models.Put,
		StrikePrice:  440,
	})
	if err != nil {
		t.Fatalf("PlaceExitOrder: %v", err)
	}
	if confirmation.OrderID != 777 {
		t.Errorf("OrderID = %d, want 777", confirmation.OrderID)
	}
	if len(confirmation.ClientOrderID) != 20 {
		t.Errorf("ClientOrderID = %q, want 20 chars", confirmation.ClientOrderID)
	}

	preview := previewBody["PreviewOrderRequest"].(map[string]any)
	if preview["orderType"] != "OPTN" {
		t.Errorf("preview orderType = %v", preview["orderType"])
	}
	order := preview["Order"].(map[string]any)
	if order["priceType"] != models.PriceTypeLimit || order["orderTerm"] != orderTermGTC {
		t.Errorf("order = %+v", order)
	}
	instrument := order["Instrument"].([]any)[0].(map[string]any)
	product := instrument["Product"].(map[string]any)
	// The option root goes in the symbol field.
	if product["symbol"] != "SPY" {
		t.Errorf("product symbol = %v, want SPY", product["symbol"])
	}
	if product["expiryYear"] != float64(2026) || product["expiryMonth"] != float64(9) || product["expiryDay"] != float64(25) {
		t.Errorf("product expiry = %+v", product)
	}

	place := placeBody["PlaceOrderRequest"].(map[string]any)
	previewIDs := place["PreviewIds"].(map[string]any)
	if previewIDs["previewId"] != float64(321) {
		t.Errorf("place previewId = %v", previewIDs["previewId"])
	}
	if place["clientOrderId"] != preview["clientOrderId"] {
		t.Errorf("clientOrderId changed between preview and place")
	}
}

func TestPlaceSpreadExitOrder_Validation(t *testing.T) {
	api := NewEtradeAPI("ck", "cs", "at", "as", false)

	if _, err := api.PlaceSpreadExitOrder(context.Background(), "k", SpreadOrderRequest{
		PriceType: models.PriceTypeNetDebit,
	}); err == nil {
		t.Error("expected error for empty legs")
	}

	if _, err := api.PlaceSpreadExitOrder(context.Background(), "k", SpreadOrderRequest{
		Legs:      []SpreadLeg{{Symbol: "SPY", Quantity: 1, ExpiryDate: "2026-09-25"}},
		PriceType: "LIMIT",
	}); err == nil {
		t.Error("expected error for non-net price type")
	}

	if _, err := api.PlaceExitOrder(context.Background(), "k", ExitOrderRequest{Quantity: 0}); err == nil {
		t.Error("expected error for zero quantity")
	}
}

func TestCancelOrder_EmptyBodySuccess(t *testing.T) {
	var gotMethod string
	var gotBody map[string]any
	api := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode cancel body: %v", err)
		}
		// Successful cancels come back with an empty body.
		w.WriteHeader(http.StatusOK)
	}))

	if err := api.CancelOrder(context.Background(), "abc123", 4242); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Errorf("method = %q, want PUT", gotMethod)
	}
	req := gotBody["CancelOrderRequest"].(map[string]any)
	if req["orderId"] != float64(4242) {
		t.Errorf("orderId = %v", req["orderId"])
	}
}

func TestGetPositions_APIError(t *testing.T) {
	api := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "oauth_problem=token_expired", http.StatusUnauthorized)
	}))

	_, err := api.GetPositions(context.Background(), "abc123")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", apiErr.Status)
	}
	if !IsPermanentAPIError(err) {
		t.Error("401 should be permanent")
	}
}
