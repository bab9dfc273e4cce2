package detector

import (
	"time"

	appconfig "liqflow/config"
	"liqflow/internal/models"
)

// Detector flags trades that look like forced liquidations. There is no
// authoritative liquidation feed on the consumed API, so detection is an
// approximation built from trade-size heuristics: a fill large enough for its
// coin class, or one involving several counterparties, is treated as a
// liquidation. Expect false positives on whale activity and false negatives
// on small positions.
type Detector struct {
	minNotional      float64
	overrideNotional float64
	minUserCount     int
	window           time.Duration
	tiers            appconfig.DetectorConfig
}

// New resolves the tier table once at construction.
func New(cfg appconfig.DetectorConfig) *Detector {
	return &Detector{
		minNotional:      cfg.MinNotionalUSD,
		overrideNotional: cfg.OverrideNotionalUSD,
		minUserCount:     cfg.MinUserCount,
		window:           cfg.RecencyWindow,
		tiers:            cfg,
	}
}

// Classify filters a batch of trades for one coin down to probable
// liquidation events. Checks run per trade, in order: recency, the global
// notional floor, the per-class size tier, then the overrides (counterparty
// count or an exceptional notional) which classify regardless of tier.
// Input order is preserved in the output.
func (d *Detector) Classify(coin string, trades []models.Trade, now time.Time) []models.LiquidationEvent {
	cutoff := now.UnixMilli() - d.window.Milliseconds()
	minSize := d.tiers.MinSizeFor(coin)

	var events []models.LiquidationEvent
	for _, trade := range trades {
		if trade.Time < cutoff {
			continue
		}

		notional := trade.Notional()
		if notional < d.minNotional {
			continue
		}

		isLiquidation := trade.Size >= minSize
		if len(trade.Users) >= d.minUserCount || notional >= d.overrideNotional {
			isLiquidation = true
		}
		if !isLiquidation {
			continue
		}

		events = append(events, models.LiquidationEvent{
			Coin:      coin,
			Size:      trade.Size,
			Price:     trade.Price,
			Side:      trade.Side,
			Time:      trade.Time,
			Hash:      trade.Hash,
			UserCount: len(trade.Users),
		})
	}
	return events
}

// HighConfidence reports whether an event matched one of the override
// criteria rather than the size tier alone.
func (d *Detector) HighConfidence(e models.LiquidationEvent) bool {
	return e.UserCount >= d.minUserCount || e.Notional() >= d.overrideNotional
}
