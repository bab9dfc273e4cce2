package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	appconfig "liqflow/config"
	"liqflow/internal/catalog"
	alertchannel "liqflow/internal/channel/alert"
	"liqflow/internal/dedup"
	"liqflow/internal/detector"
	"liqflow/internal/models"
	"liqflow/logger"
)

// TradeSource is the slice of the Hyperliquid client the scanner needs.
type TradeSource interface {
	RecentTrades(ctx context.Context, coin string) ([]models.Trade, error)
}

// Scanner drives the detection pipeline: periodic full scans over the coin
// catalog, batched concurrent fetch+classify per coin, dedup, then handoff to
// the alert channel. One scan loop owns all pacing; per-batch fan-out is
// bounded by the batch size.
type Scanner struct {
	config   *appconfig.Config
	source   TradeSource
	catalog  *catalog.Catalog
	detector *detector.Detector
	seen     *dedup.SeenSet
	channels *alertchannel.Channels
	ctx      context.Context
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log
	cycles   int64
}

// NewScanner wires the pipeline components together.
func NewScanner(cfg *appconfig.Config, source TradeSource, cat *catalog.Catalog, det *detector.Detector, seen *dedup.SeenSet, ch *alertchannel.Channels) *Scanner {
	return &Scanner{
		config:   cfg,
		source:   source,
		catalog:  cat,
		detector: det,
		seen:     seen,
		channels: ch,
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
	}
}

// Start launches the scan loop.
func (s *Scanner) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scanner already running")
	}
	s.running = true
	s.ctx = ctx
	s.mu.Unlock()

	s.log.WithComponent("scanner").WithFields(logger.Fields{
		"batch_size":  s.config.Scanner.BatchSize,
		"cycle_pause": s.config.Scanner.CyclePause.String(),
	}).Info("starting liquidation scanner")

	s.wg.Add(1)
	go s.scanLoop()
	return nil
}

// Stop waits for the scan loop to finish. The loop exits at the next
// suspension point after its context is cancelled; no new batch starts once
// cancellation is observed.
func (s *Scanner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.log.WithComponent("scanner").Info("stopping liquidation scanner")
	s.wg.Wait()
	s.log.WithComponent("scanner").Info("liquidation scanner stopped")
}

func (s *Scanner) scanLoop() {
	defer s.wg.Done()

	log := s.log.WithComponent("scanner")
	for {
		if s.ctx.Err() != nil {
			return
		}

		s.cycles++
		cycleID := uuid.NewString()[:8]
		start := time.Now()

		err := s.scanCycle(cycleID)

		pause := s.config.Scanner.CyclePause
		if err != nil {
			// An error escaping a whole cycle means the upstream is
			// unhealthy; back off longer than usual before retrying.
			pause = s.config.Scanner.ErrorCooldown
			log.WithError(err).WithFields(logger.Fields{
				"cycle": cycleID,
			}).Error("scan cycle failed, entering cooldown")
		} else {
			log.WithFields(logger.Fields{
				"cycle":       cycleID,
				"cycle_count": s.cycles,
				"duration_ms": time.Since(start).Milliseconds(),
			}).Debug("scan cycle complete")
		}

		if !s.sleep(pause) {
			return
		}
	}
}

func (s *Scanner) scanCycle(cycleID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scan cycle panic: %v", r)
		}
	}()

	log := s.log.WithComponent("scanner").WithFields(logger.Fields{"cycle": cycleID})

	if time.Since(s.catalog.LastRefresh()) >= s.config.Scanner.CatalogRefresh {
		if refreshErr := s.catalog.Refresh(s.ctx); refreshErr != nil {
			// Keep scanning with the cached (or fallback) catalog.
			log.WithError(refreshErr).Warn("catalog refresh failed, keeping cached universe")
		}
	}

	coins := s.catalog.Current(s.ctx)
	batchSize := s.config.Scanner.BatchSize

	for i := 0; i < len(coins); i += batchSize {
		if s.ctx.Err() != nil {
			return nil
		}

		end := i + batchSize
		if end > len(coins) {
			end = len(coins)
		}

		found := s.scanBatch(cycleID, coins[i:end])
		if found > 0 {
			log.WithFields(logger.Fields{
				"batch_start": i,
				"events":      found,
			}).Info("liquidations detected in batch")
		}

		if !s.sleep(s.config.Scanner.BatchPause) {
			return nil
		}
	}
	return nil
}

// scanBatch fetches and classifies every coin of the batch concurrently, then
// runs the collected events through dedup and hands survivors to the alert
// channel. A fetch failure isolates to its coin.
func (s *Scanner) scanBatch(cycleID string, coins []string) int {
	log := s.log.WithComponent("scanner").WithFields(logger.Fields{"cycle": cycleID})

	results := make([][]models.LiquidationEvent, len(coins))
	var wg sync.WaitGroup
	for i, coin := range coins {
		wg.Add(1)
		go func(idx int, coin string) {
			defer wg.Done()
			trades, err := s.source.RecentTrades(s.ctx, coin)
			if err != nil {
				log.WithError(err).WithFields(logger.Fields{
					"coin": coin,
				}).Warn("trade fetch failed, skipping coin")
				s.log.LogMetric("scanner", "fetch_errors", int64(1), "counter", logger.Fields{"coin": coin})
				return
			}
			results[idx] = s.detector.Classify(coin, trades, time.Now())
		}(i, coin)
	}
	wg.Wait()

	admitted := 0
	for _, events := range results {
		for _, event := range events {
			if !s.seen.Admit(event.Hash) {
				continue
			}
			admitted++
			if !s.channels.Send(s.ctx, event) && s.ctx.Err() == nil {
				log.WithFields(logger.Fields{
					"coin": event.Coin,
					"hash": event.Hash,
				}).Warn("alert channel full, dropping event")
			}
		}
	}
	return admitted
}

// HandleTrade feeds a single live trade from the websocket stream through the
// same classify -> dedup -> channel path as the poller.
func (s *Scanner) HandleTrade(trade models.Trade) {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()
	if ctx == nil {
		ctx = context.Background()
	}

	for _, event := range s.detector.Classify(trade.Coin, []models.Trade{trade}, time.Now()) {
		if !s.seen.Admit(event.Hash) {
			continue
		}
		if !s.channels.Send(ctx, event) && ctx.Err() == nil {
			s.log.WithComponent("scanner").WithFields(logger.Fields{
				"coin": event.Coin,
				"hash": event.Hash,
			}).Warn("alert channel full, dropping streamed event")
		}
	}
}

// sleep pauses for d or until the context is cancelled. It reports whether
// the scanner should keep running.
func (s *Scanner) sleep(d time.Duration) bool {
	if d <= 0 {
		return s.ctx.Err() == nil
	}
	select {
	case <-s.ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
