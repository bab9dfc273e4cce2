package hyperliquid

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appconfig "liqflow/config"
)

func testClient(url string) *Client {
	return NewClient(appconfig.HyperliquidConfig{
		BaseURL:           url,
		Timeout:           2 * time.Second,
		RequestsPerSecond: 100,
		BurstSize:         100,
	})
}

func TestMeta(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"universe":[{"name":"BTC"},{"name":"ETH"},{"name":""}]}`))
	}))
	defer server.Close()

	names, err := testClient(server.URL).Meta(context.Background())
	if err != nil {
		t.Fatalf("Meta failed: %v", err)
	}
	if gotBody["type"] != "meta" {
		t.Errorf("expected type=meta request, got %v", gotBody)
	}
	if len(names) != 2 || names[0] != "BTC" || names[1] != "ETH" {
		t.Errorf("unexpected universe: %v", names)
	}
}

func TestRecentTrades(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"coin":"BTC","side":"A","px":"60000","sz":"3.0","time":1700000000000,"hash":"0xabc"}]`))
	}))
	defer server.Close()

	trades, err := testClient(server.URL).RecentTrades(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("RecentTrades failed: %v", err)
	}
	if gotBody["type"] != "recentTrades" || gotBody["coin"] != "BTC" {
		t.Errorf("unexpected request body: %v", gotBody)
	}
	if len(trades) != 1 || trades[0].Hash != "0xabc" {
		t.Errorf("unexpected trades: %+v", trades)
	}
}

func TestFetchErrorOnBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := testClient(server.URL).RecentTrades(context.Background(), "BTC")
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %T", err)
	}
	if fetchErr.StatusCode != http.StatusBadGateway || fetchErr.Coin != "BTC" {
		t.Errorf("unexpected fetch error: %+v", fetchErr)
	}
}

func TestFetchErrorOnMalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"definitely":"not trades"`))
	}))
	defer server.Close()

	var fetchErr *FetchError
	if _, err := testClient(server.URL).RecentTrades(context.Background(), "BTC"); !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError for malformed payload, got %v", err)
	}
}
