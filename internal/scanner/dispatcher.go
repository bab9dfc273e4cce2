package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	appconfig "liqflow/config"
	"liqflow/internal/alert"
	alertchannel "liqflow/internal/channel/alert"
	"liqflow/logger"
)

// Notifier is the outbound delivery boundary. The sink owns its own
// minimum-interval pacing; the dispatcher adds the inter-alert pause on top
// so bursts within a batch are spread out.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Dispatcher consumes classified events one at a time, formats them and
// delivers them to the sink. Delivery failures are logged and the alert is
// dropped; the trade hash stays recorded in the seen set so a failed alert
// is not retried on the next cycle.
type Dispatcher struct {
	config   *appconfig.Config
	channels *alertchannel.Channels
	sink     Notifier
	ctx      context.Context
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log
	alerts   int64
}

// NewDispatcher builds the dispatcher.
func NewDispatcher(cfg *appconfig.Config, ch *alertchannel.Channels, sink Notifier) *Dispatcher {
	return &Dispatcher{
		config:   cfg,
		channels: ch,
		sink:     sink,
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
	}
}

// Start begins consuming events from the alert channel.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher already running")
	}
	d.running = true
	d.ctx = ctx
	d.mu.Unlock()

	d.log.WithComponent("dispatcher").Info("starting alert dispatcher")

	d.wg.Add(1)
	go d.run()
	return nil
}

// Stop waits for the consumer to drain.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	d.wg.Wait()
	d.log.WithComponent("dispatcher").WithFields(logger.Fields{
		"alerts_sent": d.alerts,
	}).Info("alert dispatcher stopped")
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	log := d.log.WithComponent("dispatcher")
	for {
		select {
		case <-d.ctx.Done():
			return
		case event, ok := <-d.channels.Events:
			if !ok {
				return
			}

			text := alert.Format(event, d.config.Detector)
			if err := d.sink.Send(d.ctx, text); err != nil {
				if d.ctx.Err() != nil {
					return
				}
				log.WithError(err).WithFields(logger.Fields{
					"coin": event.Coin,
					"hash": event.Hash,
				}).Error("alert delivery failed, dropping")
			} else {
				d.alerts++
				log.WithFields(logger.Fields{
					"coin":     event.Coin,
					"notional": alert.FormatAmount(event.Notional()),
					"users":    event.UserCount,
					"alerts":   d.alerts,
				}).Info("liquidation alert sent")
				d.log.LogMetric("dispatcher", "alerts_sent", int64(1), "counter", logger.Fields{"coin": event.Coin})
			}

			// Spread successive alerts out even when the channel is hot.
			select {
			case <-d.ctx.Done():
				return
			case <-time.After(d.config.Scanner.AlertPause):
			}
		}
	}
}
