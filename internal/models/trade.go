package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Side is the taker side of a trade as reported by the exchange.
type Side string

const (
	SideBuy     Side = "BUY"
	SideSell    Side = "SELL"
	SideUnknown Side = "UNKNOWN"
)

// ParseSide normalises the side encodings seen on the Hyperliquid API. The
// REST feed uses "B"/"A" (bid/ask taker) while the websocket feed uses
// "buy"/"sell".
func ParseSide(v string) Side {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "b", "buy", "bid", "long":
		return SideBuy
	case "a", "s", "sell", "ask", "short":
		return SideSell
	default:
		return SideUnknown
	}
}

// Trade is a single public trade for one coin.
type Trade struct {
	Coin  string
	Size  float64
	Price float64
	Side  Side
	// Time is the exchange event time in unix milliseconds.
	Time int64
	// Hash identifies the trade globally across coins.
	Hash string
	// Users holds the addresses on both sides of the fill when the API
	// reports them.
	Users []string
}

// Notional returns the USD value of the trade.
func (t Trade) Notional() float64 {
	return t.Size * t.Price
}

// rawTrade mirrors the wire shape of a Hyperliquid trade record. Price and
// size arrive as decimal strings.
type rawTrade struct {
	Coin  string   `json:"coin"`
	Side  string   `json:"side"`
	Px    string   `json:"px"`
	Sz    string   `json:"sz"`
	Time  int64    `json:"time"`
	Hash  string   `json:"hash"`
	Users []string `json:"users"`
}

// DecodeTrades parses a recentTrades response body. Individual malformed
// records are skipped so one bad row does not discard the batch.
func DecodeTrades(data []byte) ([]Trade, error) {
	var raw []rawTrade
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse trades payload: %w", err)
	}

	trades := make([]Trade, 0, len(raw))
	for _, r := range raw {
		px, errPx := strconv.ParseFloat(r.Px, 64)
		sz, errSz := strconv.ParseFloat(r.Sz, 64)
		if errPx != nil || errSz != nil || px < 0 || sz < 0 {
			continue
		}
		trades = append(trades, Trade{
			Coin:  r.Coin,
			Size:  sz,
			Price: px,
			Side:  ParseSide(r.Side),
			Time:  r.Time,
			Hash:  r.Hash,
			Users: r.Users,
		})
	}
	return trades, nil
}

// LiquidationEvent is a trade the detector classified as a probable forced
// liquidation. Classification is heuristic: Hyperliquid exposes no
// authoritative liquidation feed, so oversized or multi-party fills stand in
// for the real thing.
type LiquidationEvent struct {
	Coin      string
	Size      float64
	Price     float64
	Side      Side
	Time      int64
	Hash      string
	UserCount int
}

// Notional returns the USD value of the liquidated position.
func (e LiquidationEvent) Notional() float64 {
	return e.Size * e.Price
}
