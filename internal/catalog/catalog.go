package catalog

import (
	"context"
	"sync"
	"time"

	appconfig "liqflow/config"
	"liqflow/logger"
)

// UniverseFetcher is the slice of the Hyperliquid client the catalog needs.
type UniverseFetcher interface {
	Meta(ctx context.Context) ([]string, error)
}

// Catalog caches the tradable coin universe. The set only grows within a
// process run: coins delisted upstream stay in the cache until restart so a
// scan cycle never loses symbols mid-flight. Discovery order is preserved and
// the universe is capped at MaxSymbols, matching the upstream listing order
// which places the most liquid markets first.
type Catalog struct {
	fetcher  UniverseFetcher
	log      *logger.Log
	fallback []string
	max      int

	mu          sync.Mutex
	coins       []string
	known       map[string]struct{}
	lastRefresh time.Time
}

// New builds a catalog around the given fetcher.
func New(fetcher UniverseFetcher, cfg appconfig.ScannerConfig) *Catalog {
	return &Catalog{
		fetcher:  fetcher,
		log:      logger.GetLogger(),
		fallback: cfg.FallbackCoins,
		max:      cfg.MaxSymbols,
		known:    make(map[string]struct{}),
	}
}

// Refresh fetches the universe and merges it into the cached set. On failure
// the cache is left untouched and the error is returned for the caller to
// log; a failed refresh is never fatal.
func (c *Catalog) Refresh(ctx context.Context) error {
	names, err := c.fetcher.Meta(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for _, name := range names {
		if len(c.coins) >= c.max {
			break
		}
		if _, ok := c.known[name]; ok {
			continue
		}
		c.known[name] = struct{}{}
		c.coins = append(c.coins, name)
		added++
	}
	c.lastRefresh = time.Now()

	c.log.WithComponent("catalog").WithFields(logger.Fields{
		"universe": len(names),
		"added":    added,
		"cached":   len(c.coins),
	}).Debug("catalog refreshed")
	return nil
}

// Current returns the cached coin set. An empty cache triggers a synchronous
// refresh; if that also fails the hardcoded fallback list is returned so the
// scanner always has something to poll.
func (c *Catalog) Current(ctx context.Context) []string {
	c.mu.Lock()
	cached := len(c.coins)
	c.mu.Unlock()

	if cached == 0 {
		if err := c.Refresh(ctx); err != nil {
			c.log.WithComponent("catalog").WithError(err).Warn("universe fetch failed, using fallback coins")
			return append([]string(nil), c.fallback...)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.coins) == 0 {
		return append([]string(nil), c.fallback...)
	}
	return append([]string(nil), c.coins...)
}

// LastRefresh reports when the cache was last successfully refreshed.
func (c *Catalog) LastRefresh() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRefresh
}

// Size reports the number of cached coins.
func (c *Catalog) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.coins)
}
