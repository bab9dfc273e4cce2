package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Liqflow  AppConfig      `yaml:"liqflow"`
	Source   SourceConfig   `yaml:"source"`
	Detector DetectorConfig `yaml:"detector"`
	Scanner  ScannerConfig  `yaml:"scanner"`
	Channels ChannelsConfig `yaml:"channels"`
	Telegram TelegramConfig `yaml:"telegram"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type SourceConfig struct {
	Hyperliquid HyperliquidConfig `yaml:"hyperliquid"`
}

type HyperliquidConfig struct {
	BaseURL           string        `yaml:"base_url"`
	WsURL             string        `yaml:"ws_url"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond int           `yaml:"requests_per_second"`
	BurstSize         int           `yaml:"burst_size"`
	Stream            StreamConfig  `yaml:"stream"`
}

// StreamConfig controls the optional websocket trade stream. When enabled the
// listed coins are watched live in addition to the REST scan cycles.
type StreamConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Coins          []string      `yaml:"coins"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
}

// DetectorConfig holds the liquidation heuristics. The tier table maps coin
// classes to the minimum fill size treated as a probable liquidation; coins
// not listed in any tier fall back to DefaultMinSize.
type DetectorConfig struct {
	MinNotionalUSD      float64       `yaml:"min_notional_usd"`
	OverrideNotionalUSD float64       `yaml:"override_notional_usd"`
	MinUserCount        int           `yaml:"min_user_count"`
	RecencyWindow       time.Duration `yaml:"recency_window"`
	Tiers               []TierRule    `yaml:"tiers"`
	DefaultMinSize      float64       `yaml:"default_min_size"`
}

type TierRule struct {
	Coins   []string `yaml:"coins"`
	MinSize float64  `yaml:"min_size"`
}

type ScannerConfig struct {
	BatchSize      int           `yaml:"batch_size"`
	MaxSymbols     int           `yaml:"max_symbols"`
	AlertPause     time.Duration `yaml:"alert_pause"`
	BatchPause     time.Duration `yaml:"batch_pause"`
	CyclePause     time.Duration `yaml:"cycle_pause"`
	ErrorCooldown  time.Duration `yaml:"error_cooldown"`
	CatalogRefresh time.Duration `yaml:"catalog_refresh"`
	FallbackCoins  []string      `yaml:"fallback_coins"`
}

type ChannelsConfig struct {
	EventBuffer int `yaml:"event_buffer"`
}

type TelegramConfig struct {
	BaseURL     string        `yaml:"base_url"`
	BotToken    string        `yaml:"bot_token"`
	ChatID      string        `yaml:"chat_id"`
	MinInterval time.Duration `yaml:"min_interval"`
	Timeout     time.Duration `yaml:"timeout"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Region          string `yaml:"region"`
	Namespace       string `yaml:"namespace"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Secrets come from the environment when present so tokens never have
	// to live in the config file.
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		config.Telegram.BotToken = strings.TrimSpace(v)
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		config.Telegram.ChatID = strings.TrimSpace(v)
	}
	if v := os.Getenv("MIN_LIQUIDATION_VALUE"); v != "" {
		var notional float64
		if _, err := fmt.Sscanf(strings.TrimSpace(v), "%f", &notional); err == nil && notional > 0 {
			config.Detector.MinNotionalUSD = notional
		}
	}
	if config.Metrics.CloudWatch.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Metrics.CloudWatch.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Metrics.CloudWatch.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Metrics.CloudWatch.Region = strings.TrimSpace(v)
		}
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func defaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			Hyperliquid: HyperliquidConfig{
				BaseURL:           "https://api.hyperliquid.xyz/info",
				WsURL:             "wss://api.hyperliquid.xyz/ws",
				Timeout:           10 * time.Second,
				RequestsPerSecond: 10,
				BurstSize:         10,
				Stream: StreamConfig{
					ReconnectDelay: 5 * time.Second,
				},
			},
		},
		Detector: DetectorConfig{
			MinNotionalUSD:      50000,
			OverrideNotionalUSD: 100000,
			MinUserCount:        2,
			RecencyWindow:       5 * time.Minute,
			DefaultMinSize:      5000,
			Tiers: []TierRule{
				{Coins: []string{"BTC"}, MinSize: 2},
				{Coins: []string{"ETH"}, MinSize: 20},
				{Coins: []string{"SOL", "AVAX", "MATIC", "DOT", "LINK"}, MinSize: 1000},
				{Coins: []string{"DOGE", "XRP", "ADA"}, MinSize: 50000},
			},
		},
		Scanner: ScannerConfig{
			BatchSize:      10,
			MaxSymbols:     50,
			AlertPause:     500 * time.Millisecond,
			BatchPause:     2 * time.Second,
			CyclePause:     30 * time.Second,
			ErrorCooldown:  time.Minute,
			CatalogRefresh: time.Hour,
			FallbackCoins:  []string{"BTC", "ETH", "SOL", "AVAX", "DOGE"},
		},
		Channels: ChannelsConfig{
			EventBuffer: 256,
		},
		Telegram: TelegramConfig{
			BaseURL:     "https://api.telegram.org",
			MinInterval: time.Second,
			Timeout:     10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Liqflow.Name == "" {
		return fmt.Errorf("liqflow.name is required")
	}
	if cfg.Liqflow.Version == "" {
		return fmt.Errorf("liqflow.version is required")
	}

	if cfg.Source.Hyperliquid.BaseURL == "" {
		return fmt.Errorf("source.hyperliquid.base_url is required")
	}
	if cfg.Source.Hyperliquid.Timeout <= 0 {
		return fmt.Errorf("source.hyperliquid.timeout must be greater than 0")
	}
	if cfg.Source.Hyperliquid.Stream.Enabled && cfg.Source.Hyperliquid.WsURL == "" {
		return fmt.Errorf("source.hyperliquid.ws_url is required when the stream is enabled")
	}

	if cfg.Detector.MinNotionalUSD <= 0 {
		return fmt.Errorf("detector.min_notional_usd must be greater than 0")
	}
	if cfg.Detector.OverrideNotionalUSD < cfg.Detector.MinNotionalUSD {
		return fmt.Errorf("detector.override_notional_usd must not be below detector.min_notional_usd")
	}
	if cfg.Detector.RecencyWindow <= 0 {
		return fmt.Errorf("detector.recency_window must be greater than 0")
	}
	if cfg.Detector.DefaultMinSize <= 0 {
		return fmt.Errorf("detector.default_min_size must be greater than 0")
	}
	for i, tier := range cfg.Detector.Tiers {
		if len(tier.Coins) == 0 {
			return fmt.Errorf("detector.tiers[%d].coins must not be empty", i)
		}
		if tier.MinSize <= 0 {
			return fmt.Errorf("detector.tiers[%d].min_size must be greater than 0", i)
		}
	}

	if cfg.Scanner.BatchSize <= 0 {
		return fmt.Errorf("scanner.batch_size must be greater than 0")
	}
	if cfg.Scanner.MaxSymbols <= 0 {
		return fmt.Errorf("scanner.max_symbols must be greater than 0")
	}
	if cfg.Channels.EventBuffer <= 0 {
		return fmt.Errorf("channels.event_buffer must be greater than 0")
	}

	if cfg.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required (set TELEGRAM_BOT_TOKEN)")
	}
	if cfg.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required (set TELEGRAM_CHAT_ID)")
	}
	if cfg.Telegram.MinInterval < 0 {
		return fmt.Errorf("telegram.min_interval must not be negative")
	}

	if cfg.Metrics.CloudWatch.Enabled && cfg.Metrics.CloudWatch.Region == "" {
		return fmt.Errorf("metrics.cloudwatch.region is required when CloudWatch is enabled")
	}

	return nil
}

// MinSizeFor resolves the tier table for one coin.
func (d DetectorConfig) MinSizeFor(coin string) float64 {
	for _, tier := range d.Tiers {
		for _, c := range tier.Coins {
			if strings.EqualFold(c, coin) {
				return tier.MinSize
			}
		}
	}
	return d.DefaultMinSize
}
