package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"liqflow/config"
	"liqflow/internal/alert"
	"liqflow/internal/catalog"
	alertchannel "liqflow/internal/channel/alert"
	"liqflow/internal/dedup"
	"liqflow/internal/detector"
	"liqflow/internal/hyperliquid"
	"liqflow/internal/scanner"
	"liqflow/internal/telegram"
	"liqflow/logger"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(
			cfg.Metrics.CloudWatch.Region,
			cfg.Metrics.CloudWatch.Namespace,
			cfg.Metrics.CloudWatch.AccessKeyID,
			cfg.Metrics.CloudWatch.SecretAccessKey,
		)
	}

	log.WithFields(logger.Fields{
		"service":     cfg.Liqflow.Name,
		"version":     cfg.Liqflow.Version,
		"environment": config.AppEnvironment(),
	}).Info("starting liqflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleShutdown(cancel, log)

	client := hyperliquid.NewClient(cfg.Source.Hyperliquid)
	cat := catalog.New(client, cfg.Scanner)
	det := detector.New(cfg.Detector)
	// Hashes can only reappear inside the classification recency window, so
	// twice that bounds the seen set without changing which alerts fire.
	seen := dedup.NewSeenSet(2 * cfg.Detector.RecencyWindow)
	channels := alertchannel.NewChannels(cfg.Channels.EventBuffer)
	defer channels.Close()

	sink := telegram.NewSink(cfg.Telegram)
	dispatcher := scanner.NewDispatcher(cfg, channels, sink)
	scan := scanner.NewScanner(cfg, client, cat, det, seen, channels)

	if err := dispatcher.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start dispatcher")
		os.Exit(1)
	}
	if err := scan.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start scanner")
		os.Exit(1)
	}

	var stream *hyperliquid.TradeStream
	if cfg.Source.Hyperliquid.Stream.Enabled {
		stream = hyperliquid.NewTradeStream(cfg, scan.HandleTrade, nil)
		if err := stream.Start(ctx); err != nil {
			log.WithError(err).Warn("trade stream failed to start, continuing with REST scans only")
			stream = nil
		}
	}

	if err := sink.Send(ctx, alert.StartupBanner(cfg.Detector)); err != nil {
		log.WithError(err).Warn("failed to announce startup")
	}

	<-ctx.Done()

	scan.Stop()
	if stream != nil {
		stream.Stop()
	}
	dispatcher.Stop()

	log.WithFields(logger.Fields{
		"alerts_sent": sink.Sent(),
	}).Info("liqflow stopped")
}

func handleShutdown(cancel context.CancelFunc, log *logger.Log) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	sig := <-ch
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown requested")
	cancel()
}
