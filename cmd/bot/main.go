package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitos/futures_signal_bot/internal/config"
	"github.com/vitos/futures_signal_bot/internal/infrastructure/exchange"
	"github.com/vitos/futures_signal_bot/internal/infrastructure/logger"
	"github.com/vitos/futures_signal_bot/internal/infrastructure/storage"
	"github.com/vitos/futures_signal_bot/internal/usecase"
	"github.com/vitos/futures_signal_bot/internal/web"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Config
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Bot starting",
		zap.String("symbol", cfg.Exchange.Symbol),
		zap.Int("leverage", cfg.Trading.Leverage),
		zap.Float64("position_size_fraction", cfg.Trading.PositionSizeFraction),
		zap.Float64("stop_loss_fraction", cfg.Protection.StopLossFraction),
		zap.Float64("trailing_drop_fraction", cfg.Protection.TrailingDrop))

	// Credential presence only, never the values.
	log.Info("Credentials",
		zap.Int("api_key_length", len(cfg.Credentials.APIKey)),
		zap.Int("api_secret_length", len(cfg.Credentials.APISecret)),
		zap.Int("api_passphrase_length", len(cfg.Credentials.APIPassphrase)))
	if !cfg.Credentials.Loaded() {
		log.Error("Missing API credentials, venue calls will fail")
	}

	// 3. Init Storage (journal)
	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	// 4. Init Exchange (Bitget)
	bitget := exchange.NewBitgetAdapter(
		cfg.Credentials.APIKey,
		cfg.Credentials.APISecret,
		cfg.Credentials.APIPassphrase,
		cfg.Exchange.RESTEndpoint,
		cfg.Exchange.ProductType,
		cfg.Exchange.MarginCoin,
		log,
	)

	// 5. Init Services
	cache := usecase.NewMarketCache(bitget, cfg.Exchange.Symbol, cfg.CacheTTL(), log)
	tracker := usecase.NewTracker(store, log)
	executor := usecase.NewTradeExecutor(bitget, store, cfg.Exchange.Symbol, log)
	service := usecase.NewBotService(cfg, cache, tracker, executor, log)
	dedup := usecase.NewDedup(cfg.DedupWindow())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	// 6. Public ticker feed keeps the cached price fresh between REST hits.
	feed := exchange.NewTickerFeed(cfg.Exchange.WSEndpoint, cfg.Exchange.Symbol, cfg.Exchange.ProductType, log)
	feed.OnPriceUpdate(cache.PushPrice)
	feed.Start()
	defer feed.Stop()

	// 7. Risk ticker: protective checks run on their own clock, not only
	// when an external pinger hits /health.
	go func() {
		ticker := time.NewTicker(cfg.RiskTick())
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				service.EvaluateRisk(context.Background())
			case <-done:
				return
			}
		}
	}()

	// 8. Web Server
	server := web.NewServer(cfg, service, dedup, bitget, store, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// 9. Wait for Shutdown
	<-stop
	close(done)

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Shutdown error", zap.Error(err))
	}
}
