package detector

import (
	"testing"
	"time"

	appconfig "liqflow/config"
	"liqflow/internal/models"
)

func testConfig() appconfig.DetectorConfig {
	return appconfig.DetectorConfig{
		MinNotionalUSD:      50000,
		OverrideNotionalUSD: 100000,
		MinUserCount:        2,
		RecencyWindow:       5 * time.Minute,
		DefaultMinSize:      5000,
		Tiers: []appconfig.TierRule{
			{Coins: []string{"BTC"}, MinSize: 2},
			{Coins: []string{"ETH"}, MinSize: 20},
			{Coins: []string{"SOL", "AVAX", "MATIC", "DOT", "LINK"}, MinSize: 1000},
			{Coins: []string{"DOGE", "XRP", "ADA"}, MinSize: 50000},
		},
	}
}

func TestClassifyScenarios(t *testing.T) {
	now := time.Now()
	recent := now.UnixMilli()
	stale := now.Add(-10 * time.Minute).UnixMilli()

	cases := []struct {
		name  string
		coin  string
		trade models.Trade
		want  bool
	}{
		{
			name: "btc size tier met",
			coin: "BTC",
			trade: models.Trade{
				Coin: "BTC", Size: 3, Price: 60000, Side: models.SideSell,
				Time: recent, Hash: "0x1",
			},
			want: true,
		},
		{
			name: "doge below notional floor",
			coin: "DOGE",
			trade: models.Trade{
				Coin: "DOGE", Size: 100, Price: 0.1, Side: models.SideBuy,
				Time: recent, Hash: "0x2",
			},
			want: false,
		},
		{
			name: "stale trade ignored",
			coin: "BTC",
			trade: models.Trade{
				Coin: "BTC", Size: 3, Price: 60000, Side: models.SideSell,
				Time: stale, Hash: "0x3",
			},
			want: false,
		},
		{
			name: "below tier without override",
			coin: "BTC",
			trade: models.Trade{
				Coin: "BTC", Size: 1.5, Price: 40000, Side: models.SideBuy,
				Time: recent, Hash: "0x4",
			},
			want: false,
		},
		{
			name: "multi user override beats tier",
			coin: "BTC",
			trade: models.Trade{
				Coin: "BTC", Size: 1.5, Price: 40000, Side: models.SideBuy,
				Time: recent, Hash: "0x5", Users: []string{"0xa", "0xb"},
			},
			want: true,
		},
		{
			name: "notional override beats tier",
			coin: "ETH",
			trade: models.Trade{
				Coin: "ETH", Size: 5, Price: 30000, Side: models.SideSell,
				Time: recent, Hash: "0x6",
			},
			want: true,
		},
		{
			name: "unknown coin uses default tier",
			coin: "WIF",
			trade: models.Trade{
				Coin: "WIF", Size: 6000, Price: 10, Side: models.SideBuy,
				Time: recent, Hash: "0x7",
			},
			want: true,
		},
	}

	det := New(testConfig())
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			events := det.Classify(c.coin, []models.Trade{c.trade}, now)
			if got := len(events) == 1; got != c.want {
				t.Fatalf("classified=%v, want %v", got, c.want)
			}
			if c.want {
				e := events[0]
				if e.Hash != c.trade.Hash || e.Side != c.trade.Side {
					t.Errorf("event fields not carried over: %+v", e)
				}
				if e.Notional() != c.trade.Notional() {
					t.Errorf("notional mismatch: %f vs %f", e.Notional(), c.trade.Notional())
				}
			}
		})
	}
}

func TestClassifyPreservesOrder(t *testing.T) {
	now := time.Now()
	recent := now.UnixMilli()
	trades := []models.Trade{
		{Coin: "BTC", Size: 3, Price: 60000, Time: recent, Hash: "first"},
		{Coin: "BTC", Size: 1, Price: 40000, Time: recent, Hash: "dropped"},
		{Coin: "BTC", Size: 4, Price: 60000, Time: recent, Hash: "second"},
	}

	events := New(testConfig()).Classify("BTC", trades, now)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Hash != "first" || events[1].Hash != "second" {
		t.Errorf("input order not preserved: %s, %s", events[0].Hash, events[1].Hash)
	}
}

func TestHighConfidence(t *testing.T) {
	det := New(testConfig())

	if !det.HighConfidence(models.LiquidationEvent{Coin: "BTC", Size: 3, Price: 60000}) {
		t.Error("notional above override should be high confidence")
	}
	if !det.HighConfidence(models.LiquidationEvent{Coin: "BTC", Size: 2, Price: 30000, UserCount: 2}) {
		t.Error("multi-user event should be high confidence")
	}
	if det.HighConfidence(models.LiquidationEvent{Coin: "BTC", Size: 2, Price: 30000}) {
		t.Error("tier-only event should not be high confidence")
	}
}
