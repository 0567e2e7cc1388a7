package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"blueprint-scanner/config"
	"blueprint-scanner/internal/api"
	"blueprint-scanner/internal/backtest"
	"blueprint-scanner/internal/database"
	"blueprint-scanner/internal/events"
	"blueprint-scanner/internal/logging"
	"blueprint-scanner/internal/market"
	"blueprint-scanner/internal/notification"
	"blueprint-scanner/internal/scanner"
	"blueprint-scanner/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Setup(logging.Config{
		Level:  cfg.LoggingConfig.Level,
		Pretty: cfg.LoggingConfig.Pretty,
	})
	logger := logging.Component("main")

	eventBus := events.NewEventBus()

	var notifyManager *notification.Manager
	if cfg.NotificationConfig.Enabled {
		notifyManager = notification.NewManager()
		if cfg.NotificationConfig.Telegram.Enabled {
			notifyManager.AddNotifier(notification.NewTelegramNotifier(notification.TelegramConfig{
				BotToken: cfg.NotificationConfig.Telegram.BotToken,
				ChatID:   cfg.NotificationConfig.Telegram.ChatID,
				Enabled:  cfg.NotificationConfig.Telegram.Enabled,
			}))
			logger.Info().Msg("Telegram notifications enabled")
		}
	}

	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.RunMigrations(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}
	repo := database.NewRepository(db)

	var fetcher market.Fetcher
	if cfg.MarketConfig.MockMode {
		fetcher = market.NewMockFetcher()
		logger.Warn().Msg("Mock market data enabled")
	} else {
		fetcher = market.NewClient(cfg.MarketConfig.BaseURL, cfg.MarketConfig.FuturesBaseURL, logging.Component("market"))
	}

	if cfg.RedisConfig.Enabled {
		cache, err := market.NewCandleCache(
			cfg.RedisConfig.Addr, cfg.RedisConfig.Password, cfg.RedisConfig.DB,
			logging.Component("cache"),
		)
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, candle caching disabled")
		} else {
			fetcher = market.NewCachedFetcher(fetcher, cache)
			logger.Info().Str("addr", cfg.RedisConfig.Addr).Msg("Candle cache enabled")
		}
	}

	engine := scanner.NewEngine(fetcher, repo, eventBus, notifyManager, scanner.Config{
		WorkerCount:     cfg.ScannerConfig.WorkerCount,
		CandleLimit:     cfg.ScannerConfig.CandleLimit,
		TopAssets:       cfg.ScannerConfig.TopAssets,
		QuoteCurrency:   cfg.ScannerConfig.QuoteCurrency,
		ReferenceSymbol: cfg.ScannerConfig.ReferenceSymbol,
		RegimeTimeframe: cfg.ScannerConfig.RegimeTimeframe,
		SetupTTL:        time.Duration(cfg.ScannerConfig.SetupTTLHours) * time.Hour,
		FetchTimeout:    time.Duration(cfg.ScannerConfig.FetchTimeoutSec) * time.Second,
		ScanTimeout:     time.Duration(cfg.ScannerConfig.ScanTimeoutMin) * time.Minute,
	})
	if err := engine.RecoverStaleScan(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to recover stale scan state")
	}

	backtester := backtest.NewRunner(fetcher, repo, backtest.Defaults{
		Horizon:     cfg.BacktestConfig.Horizon,
		CandleLimit: cfg.BacktestConfig.CandleLimit,
		FeeBps:      cfg.BacktestConfig.FeeBps,
		SlippageBps: cfg.BacktestConfig.SlippageBps,
	})

	var sched *scheduler.Scheduler
	if cfg.ScannerConfig.Enabled {
		sched = scheduler.New(engine, cfg.ScannerConfig.CronSchedule)
		if err := sched.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start scheduler")
		}
		defer sched.Stop()
	} else {
		logger.Info().Msg("Scheduled scanning disabled, manual triggers only")
	}

	server := api.NewServer(api.ServerConfig{
		Port:           cfg.ServerConfig.Port,
		AllowOrigins:   cfg.ServerConfig.AllowOrigins,
		ProductionMode: !cfg.LoggingConfig.Pretty,
	}, repo, engine, backtester, eventBus)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown error")
	}
}
