package scanner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	alertchannel "liqflow/internal/channel/alert"
	"liqflow/internal/models"
)

type fakeSink struct {
	mu       sync.Mutex
	messages []string
	failNext bool
}

func (f *fakeSink) Send(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return fmt.Errorf("delivery failed")
	}
	f.messages = append(f.messages, text)
	return nil
}

func (f *fakeSink) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

func TestDispatcherDeliversFormattedAlerts(t *testing.T) {
	cfg := testConfig()
	cfg.Scanner.AlertPause = time.Millisecond

	ch := alertchannel.NewChannels(8)
	defer ch.Close()

	sink := &fakeSink{}
	d := NewDispatcher(cfg, ch, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	event := models.LiquidationEvent{
		Coin: "BTC", Size: 3, Price: 60000, Side: models.SideSell, Hash: "0x1",
	}
	if !ch.Send(ctx, event) {
		t.Fatal("send failed")
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(sink.sent()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	messages := sink.sent()
	if len(messages) != 1 {
		t.Fatalf("expected 1 delivered alert, got %d", len(messages))
	}
	if !strings.Contains(messages[0], "#BTC SHORT $180K") {
		t.Errorf("unexpected alert text: %q", messages[0])
	}

	cancel()
	d.Stop()
}

func TestDispatcherDropsFailedAlertAndContinues(t *testing.T) {
	cfg := testConfig()
	cfg.Scanner.AlertPause = time.Millisecond

	ch := alertchannel.NewChannels(8)
	defer ch.Close()

	sink := &fakeSink{failNext: true}
	d := NewDispatcher(cfg, ch, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	first := models.LiquidationEvent{Coin: "BTC", Size: 3, Price: 60000, Side: models.SideSell, Hash: "0x1"}
	second := models.LiquidationEvent{Coin: "ETH", Size: 50, Price: 3000, Side: models.SideBuy, Hash: "0x2"}
	ch.Send(ctx, first)
	ch.Send(ctx, second)

	deadline := time.Now().Add(2 * time.Second)
	for len(sink.sent()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	messages := sink.sent()
	if len(messages) != 1 {
		t.Fatalf("expected the second alert to survive the first failure, got %d", len(messages))
	}
	if !strings.Contains(messages[0], "#ETH") {
		t.Errorf("expected ETH alert after dropped BTC alert, got %q", messages[0])
	}

	cancel()
	d.Stop()
}
