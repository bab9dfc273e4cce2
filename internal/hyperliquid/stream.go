package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	appconfig "liqflow/config"
	"liqflow/internal/models"
	"liqflow/logger"

	"github.com/gorilla/websocket"
)

// TradeHandler receives each trade decoded from the websocket feed.
type TradeHandler func(models.Trade)

// TradeStream subscribes to the Hyperliquid websocket trades channel for a
// fixed set of coins and forwards decoded trades to a handler. The REST scan
// cycles remain the primary source; the stream narrows the detection gap for
// the configured coins between cycles.
type TradeStream struct {
	config  *appconfig.Config
	handler TradeHandler
	ctx     context.Context
	wg      *sync.WaitGroup
	mu      sync.RWMutex
	running bool
	log     *logger.Log
	coins   []string
	dialer  *websocket.Dialer
}

// NewTradeStream constructs a stream for the coins listed in the stream
// configuration. A nil dialer falls back to the websocket default.
func NewTradeStream(cfg *appconfig.Config, handler TradeHandler, dialer *websocket.Dialer) *TradeStream {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &TradeStream{
		config:  cfg,
		handler: handler,
		wg:      &sync.WaitGroup{},
		log:     logger.GetLogger(),
		coins:   cfg.Source.Hyperliquid.Stream.Coins,
		dialer:  dialer,
	}
}

// Start launches the websocket read loop. The connection is re-established
// after errors until the context is cancelled.
func (s *TradeStream) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("trade stream already running")
	}
	s.running = true
	s.ctx = ctx
	s.mu.Unlock()

	log := s.log.WithComponent("hyperliquid_stream")
	if len(s.coins) == 0 {
		log.Warn("no coins configured for trade stream")
		return fmt.Errorf("no coins configured for trade stream")
	}

	log.WithFields(logger.Fields{"coins": len(s.coins)}).Info("starting hyperliquid trade stream")

	s.wg.Add(1)
	go s.run()
	return nil
}

// Stop waits for the read loop to exit.
func (s *TradeStream) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.log.WithComponent("hyperliquid_stream").Info("hyperliquid trade stream stopped")
}

func (s *TradeStream) run() {
	defer s.wg.Done()

	log := s.log.WithComponent("hyperliquid_stream")
	delay := s.config.Source.Hyperliquid.Stream.ReconnectDelay
	if delay <= 0 {
		delay = 5 * time.Second
	}

	for {
		if s.ctx.Err() != nil {
			return
		}

		if err := s.connectAndRead(); err != nil {
			log.WithError(err).Warn("websocket session ended")
		}

		select {
		case <-s.ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (s *TradeStream) connectAndRead() error {
	conn, _, err := s.dialer.DialContext(s.ctx, s.config.Source.Hyperliquid.WsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial websocket: %w", err)
	}
	defer conn.Close()

	for _, coin := range s.coins {
		sub := map[string]interface{}{
			"method": "subscribe",
			"subscription": map[string]string{
				"type": "trades",
				"coin": coin,
			},
		}
		if err := conn.WriteJSON(sub); err != nil {
			return fmt.Errorf("failed to subscribe to %s trades: %w", coin, err)
		}
	}

	s.log.WithComponent("hyperliquid_stream").WithFields(logger.Fields{
		"coins": len(s.coins),
	}).Info("subscribed to trade channels")

	// Unblock ReadMessage when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-s.ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}
		s.handleMessage(message)
	}
}

func (s *TradeStream) handleMessage(message []byte) {
	var envelope struct {
		Channel string          `json:"channel"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(message, &envelope); err != nil {
		s.log.WithComponent("hyperliquid_stream").WithError(err).Debug("ignoring unparsable message")
		return
	}
	if envelope.Channel != "trades" {
		return
	}

	trades, err := models.DecodeTrades(envelope.Data)
	if err != nil {
		s.log.WithComponent("hyperliquid_stream").WithError(err).Debug("ignoring malformed trades payload")
		return
	}
	for _, trade := range trades {
		s.handler(trade)
	}
}
