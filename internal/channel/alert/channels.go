package alert

import (
	"context"
	"sync"

	"liqflow/internal/models"
	"liqflow/logger"
)

type ChannelStats struct {
	EventsSent    int64
	EventsDropped int64
}

// Channels carries classified liquidation events from the scanner (and the
// optional websocket stream) to the dispatcher. Sends never block the
// producers: when the buffer is full the event is dropped and counted.
type Channels struct {
	Events chan models.LiquidationEvent

	stats      ChannelStats
	statsMutex sync.RWMutex
	log        *logger.Log
}

func NewChannels(eventBufferSize int) *Channels {
	log := logger.GetLogger()
	c := &Channels{
		Events: make(chan models.LiquidationEvent, eventBufferSize),
		log:    log,
	}

	log.WithComponent("alert_channels").WithFields(logger.Fields{
		"event_buffer_size": eventBufferSize,
	}).Info("alert channels initialized")

	return c
}

func (c *Channels) Close() {
	close(c.Events)
	c.log.WithComponent("alert_channels").Info("alert channels closed")
}

func (c *Channels) incrementSent() {
	c.statsMutex.Lock()
	c.stats.EventsSent++
	c.statsMutex.Unlock()
}

func (c *Channels) incrementDropped() {
	c.statsMutex.Lock()
	c.stats.EventsDropped++
	c.statsMutex.Unlock()
}

// Send offers an event to the dispatcher without blocking. It returns false
// when the context is done or the buffer is full.
func (c *Channels) Send(ctx context.Context, event models.LiquidationEvent) bool {
	select {
	case c.Events <- event:
		c.incrementSent()
		return true
	case <-ctx.Done():
		return false
	default:
		c.incrementDropped()
		return false
	}
}

func (c *Channels) GetStats() ChannelStats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.stats
}
