package alert

import (
	"fmt"

	appconfig "liqflow/config"
	"liqflow/internal/models"
)

// Direction labels shown in alerts. SELL maps to SHORT with the green
// marker, everything else to LONG with the red one. The upstream data does
// not disambiguate which side was liquidated; this convention is applied
// consistently rather than guessed per alert.
const (
	directionLong  = "LONG"
	directionShort = "SHORT"
	markerLong     = "\U0001F534" // red circle
	markerShort    = "\U0001F7E2" // green circle
	markerHigh     = "\U0001F6A8" // rotating light
	markerLow      = "⚠️" // warning sign
)

// FormatAmount abbreviates a USD amount: 1,500,000 -> "$1.5M",
// 45,000 -> "$45K", 900 -> "$900".
func FormatAmount(usd float64) string {
	switch {
	case usd >= 1_000_000:
		return fmt.Sprintf("$%.1fM", usd/1_000_000)
	case usd >= 1_000:
		return fmt.Sprintf("$%.0fK", usd/1_000)
	default:
		return fmt.Sprintf("$%.0f", usd)
	}
}

// Format renders one liquidation event as a single alert line, e.g.
//
//	🚨 🔴 #BTC LONG $180K @$60000.0000
//
// The leading marker signals confidence: events that matched an override
// criterion get the siren, tier-only matches the warning sign. Format is a
// pure function of its inputs.
func Format(event models.LiquidationEvent, cfg appconfig.DetectorConfig) string {
	marker := markerLow
	if event.UserCount >= cfg.MinUserCount || event.Notional() >= cfg.OverrideNotionalUSD {
		marker = markerHigh
	}

	dot := markerLong
	direction := directionLong
	if event.Side == models.SideSell {
		dot = markerShort
		direction = directionShort
	}

	return fmt.Sprintf("%s %s #%s %s %s @$%.4f",
		marker, dot, event.Coin, direction, FormatAmount(event.Notional()), event.Price)
}

// StartupBanner is the message announced when the process comes up.
func StartupBanner(cfg appconfig.DetectorConfig) string {
	return fmt.Sprintf(`🚀 *LIQFLOW LIQUIDATION ALERTS*

✅ Probable liquidations detected from public trades
💰 Threshold: %s+
🔴 LONG / 🟢 SHORT
📊 Format: 🔴/🟢 #COIN DIRECTION $AMOUNT @$PRICE

🔍 Scanning...`, FormatAmount(cfg.MinNotionalUSD))
}
