package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"willhaben-monitor/config"
	"willhaben-monitor/notify"
	"willhaben-monitor/observability"
	"willhaben-monitor/scraper/willhaben"
	"willhaben-monitor/services"
	"willhaben-monitor/storage"
	"willhaben-monitor/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := utils.NewLogger(cfg.Debug)
	logger.Info("[main] Starting willhaben monitor")
	logger.Info("[main] Category: %s | States: %v | Interval: %s",
		cfg.Search.Category, cfg.Search.States, cfg.Search.Scraper.Interval())

	observability.Start(cfg.MetricsPort)
	logger.Info("[main] Metrics available on :%s/metrics", cfg.MetricsPort)

	store, err := storage.NewFileCursorStore(cfg.CursorPath)
	if err != nil {
		logger.Error("[main] Failed to initialise cursor store: %v", err)
		return
	}

	notifier := notify.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, logger)

	client, err := willhaben.NewClient(cfg, logger)
	if err != nil {
		logger.Error("[main] Failed to create willhaben client: %v", err)
		return
	}

	monitor := services.NewMonitor(cfg, client, store, notifier, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go notifier.ResetWindowLoop(ctx)

	monitor.Run(ctx)
	logger.Info("[main] Shutting down")
}
