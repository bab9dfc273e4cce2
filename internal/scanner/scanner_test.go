package scanner

import (
	"context"
	"fmt"
	"testing"
	"time"

	appconfig "liqflow/config"
	"liqflow/internal/catalog"
	alertchannel "liqflow/internal/channel/alert"
	"liqflow/internal/dedup"
	"liqflow/internal/detector"
	"liqflow/internal/models"
)

type fakeSource struct {
	trades map[string][]models.Trade
	fail   map[string]bool
}

func (f *fakeSource) RecentTrades(ctx context.Context, coin string) ([]models.Trade, error) {
	if f.fail[coin] {
		return nil, fmt.Errorf("fetch failed for %s", coin)
	}
	return f.trades[coin], nil
}

type fakeUniverse struct{ coins []string }

func (f *fakeUniverse) Meta(ctx context.Context) ([]string, error) {
	return f.coins, nil
}

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		Detector: appconfig.DetectorConfig{
			MinNotionalUSD:      50000,
			OverrideNotionalUSD: 100000,
			MinUserCount:        2,
			RecencyWindow:       5 * time.Minute,
			DefaultMinSize:      5000,
			Tiers: []appconfig.TierRule{
				{Coins: []string{"BTC"}, MinSize: 2},
			},
		},
		Scanner: appconfig.ScannerConfig{
			BatchSize:  10,
			MaxSymbols: 50,
		},
	}
}

func bigTrade(coin, hash string, now time.Time) models.Trade {
	return models.Trade{
		Coin: coin, Size: 3, Price: 60000, Side: models.SideSell,
		Time: now.UnixMilli(), Hash: hash,
	}
}

func newTestScanner(cfg *appconfig.Config, source TradeSource, ch *alertchannel.Channels) *Scanner {
	cat := catalog.New(&fakeUniverse{}, cfg.Scanner)
	s := NewScanner(cfg, source, cat, detector.New(cfg.Detector), dedup.NewSeenSet(0), ch)
	s.ctx = context.Background()
	return s
}

func TestScanBatchIsolatesFetchFailure(t *testing.T) {
	now := time.Now()
	coins := make([]string, 10)
	source := &fakeSource{trades: map[string][]models.Trade{}, fail: map[string]bool{}}
	for i := range coins {
		coins[i] = fmt.Sprintf("BTC%d", i)
		source.trades[coins[i]] = []models.Trade{bigTrade(coins[i], fmt.Sprintf("0x%d", i), now)}
	}
	source.fail[coins[3]] = true

	ch := alertchannel.NewChannels(32)
	defer ch.Close()

	s := newTestScanner(testConfig(), source, ch)
	admitted := s.scanBatch("test", coins)

	if admitted != 9 {
		t.Fatalf("one failing coin must not abort the batch: admitted %d", admitted)
	}
	if len(ch.Events) != 9 {
		t.Fatalf("expected 9 events on the channel, got %d", len(ch.Events))
	}
}

func TestScanBatchDedupsAcrossCycles(t *testing.T) {
	now := time.Now()
	source := &fakeSource{
		trades: map[string][]models.Trade{
			"BTC": {bigTrade("BTC", "0xsame", now)},
		},
	}

	ch := alertchannel.NewChannels(8)
	defer ch.Close()

	s := newTestScanner(testConfig(), source, ch)
	if got := s.scanBatch("cycle1", []string{"BTC"}); got != 1 {
		t.Fatalf("first cycle should admit the event, got %d", got)
	}
	if got := s.scanBatch("cycle2", []string{"BTC"}); got != 0 {
		t.Fatalf("second cycle must suppress the seen hash, got %d", got)
	}
	if len(ch.Events) != 1 {
		t.Fatalf("expected exactly one dispatched event, got %d", len(ch.Events))
	}
}

func TestHandleTrade(t *testing.T) {
	now := time.Now()
	ch := alertchannel.NewChannels(8)
	defer ch.Close()

	s := newTestScanner(testConfig(), &fakeSource{}, ch)
	trade := bigTrade("BTC", "0xlive", now)

	s.HandleTrade(trade)
	s.HandleTrade(trade)

	if len(ch.Events) != 1 {
		t.Fatalf("streamed trade should alert exactly once, got %d events", len(ch.Events))
	}
	event := <-ch.Events
	if event.Coin != "BTC" || event.Hash != "0xlive" {
		t.Errorf("unexpected event: %+v", event)
	}
}

func TestScannerStartStop(t *testing.T) {
	now := time.Now()
	source := &fakeSource{
		trades: map[string][]models.Trade{
			"BTC": {bigTrade("BTC", "0xonce", now)},
		},
	}

	cfg := testConfig()
	cfg.Scanner.CyclePause = 10 * time.Millisecond
	cfg.Scanner.CatalogRefresh = time.Hour

	ch := alertchannel.NewChannels(8)
	defer ch.Close()

	cat := catalog.New(&fakeUniverse{coins: []string{"BTC"}}, cfg.Scanner)
	s := NewScanner(cfg, source, cat, detector.New(cfg.Detector), dedup.NewSeenSet(0), ch)

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := s.Start(ctx); err == nil {
		t.Fatal("double start should fail")
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(ch.Events) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if len(ch.Events) == 0 {
		t.Fatal("scanner produced no events before deadline")
	}

	cancel()
	s.Stop()
}
