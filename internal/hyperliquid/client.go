package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	appconfig "liqflow/config"
	"liqflow/internal/models"
	"liqflow/logger"

	"golang.org/x/time/rate"
)

// FetchError wraps any failure while talking to the /info endpoint. Callers
// treat it as transient: the affected coin yields zero trades and the scan
// moves on.
type FetchError struct {
	Op         string
	Coin       string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Coin != "" {
		return fmt.Sprintf("hyperliquid %s for %s failed: %v", e.Op, e.Coin, e.Err)
	}
	return fmt.Sprintf("hyperliquid %s failed: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Client talks to the Hyperliquid public info API. All operations are JSON
// POSTs against a single endpoint, distinguished by the "type" field of the
// request body. Requests share a token-bucket limiter so batch fan-out cannot
// burst past the API's tolerance.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	log     *logger.Log
}

// NewClient builds a client from the source configuration.
func NewClient(cfg appconfig.HyperliquidConfig) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = rps
	}
	return &Client{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     logger.GetLogger(),
	}
}

func (c *Client) post(ctx context.Context, op, coin string, payload interface{}) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{Op: op, Coin: coin, Err: err}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &FetchError{Op: op, Coin: coin, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, &FetchError{Op: op, Coin: coin, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &FetchError{Op: op, Coin: coin, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Op: op, Coin: coin, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{
			Op:         op,
			Coin:       coin,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	return data, nil
}

// Meta fetches the perp universe and returns the asset names in listing
// order.
func (c *Client) Meta(ctx context.Context) ([]string, error) {
	data, err := c.post(ctx, "meta", "", map[string]string{"type": "meta"})
	if err != nil {
		return nil, err
	}

	var meta struct {
		Universe []struct {
			Name string `json:"name"`
		} `json:"universe"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, &FetchError{Op: "meta", Err: fmt.Errorf("failed to parse universe payload: %w", err)}
	}

	names := make([]string, 0, len(meta.Universe))
	for _, asset := range meta.Universe {
		if asset.Name != "" {
			names = append(names, asset.Name)
		}
	}
	return names, nil
}

// RecentTrades fetches the most recent public trades for one coin.
func (c *Client) RecentTrades(ctx context.Context, coin string) ([]models.Trade, error) {
	data, err := c.post(ctx, "recentTrades", coin, map[string]string{
		"type": "recentTrades",
		"coin": coin,
	})
	if err != nil {
		return nil, err
	}

	trades, err := models.DecodeTrades(data)
	if err != nil {
		return nil, &FetchError{Op: "recentTrades", Coin: coin, Err: err}
	}
	return trades, nil
}
