package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"marzsell/internal/billing"
	"marzsell/internal/bootstrap"
	"marzsell/internal/config"
	cronpkg "marzsell/internal/cron"
	"marzsell/internal/notify"
	"marzsell/internal/panel"
	"marzsell/internal/pricing"
	"marzsell/internal/repository"
	"marzsell/internal/router"
)

func main() {
	// --- Logger ---
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if hasArg("--bootstrap-db") {
		if err := runDBBootstrap(logger); err != nil {
			logger.Fatal("Database bootstrap failed", zap.Error(err))
		}
		logger.Info("Database bootstrap completed")
		return
	}

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// --- Database ---
	db, err := config.NewDatabase(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := bootstrap.MigrateAndSeed(db); err != nil {
		logger.Fatal("Failed to bootstrap database schema", zap.Error(err))
	}

	// --- Repositories ---
	tierRepo := repository.NewTierRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	noteRepo := repository.NewNoteRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	// --- Redis (pricing cache, in-memory fallback when unreachable) ---
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Pass,
		DB:       cfg.Redis.DB,
	})
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis unavailable for pricing cache, using in-memory fallback", zap.Error(err))
		rdb = nil
	}
	pingCancel()

	priceSource := pricing.CombinedSource{Tiers: tierRepo, Settings: settingRepo}
	priceCache := pricing.NewCache(priceSource, rdb, 5*time.Minute, logger)

	// --- Panel client ---
	panelClient := panel.NewMarzbanClient(cfg.Panel.BaseURL, cfg.Panel.Username, cfg.Panel.Password)

	// --- Telegram notifier ---
	var notifier billing.Notifier
	if cfg.Bot.Token != "" {
		tn, err := notify.NewTelegramNotifier(cfg.Bot.Token, cfg.Bot.AdminChatID, logger)
		if err != nil {
			logger.Warn("Telegram notifier disabled", zap.Error(err))
		} else {
			notifier = tn
		}
	} else {
		logger.Info("BOT_TOKEN not set, notifications disabled")
	}

	// --- Billing core ---
	dispatcher := billing.NewDispatcher(walletRepo, noteRepo, panelClient, logger)
	controller := billing.NewController(invoiceRepo, walletRepo, dispatcher, notifier, logger)

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true
	router.Setup(e, db, controller, priceCache, logger, cfg.API.Key)

	// --- Cron Scheduler ---
	scheduler := cronpkg.New(controller, invoiceRepo, settingRepo, panelClient, notifier, logger)
	scheduler.Start()

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting marzsell server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	// Stop cron
	cronCtx := scheduler.Stop()
	<-cronCtx.Done()

	// Stop HTTP server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func hasArg(name string) bool {
	for _, arg := range os.Args[1:] {
		if arg == name {
			return true
		}
	}
	return false
}

func runDBBootstrap(logger *zap.Logger) error {
	dbCfg, err := config.LoadDatabaseOnly()
	if err != nil {
		return err
	}
	db, err := config.NewDatabase(dbCfg)
	if err != nil {
		return err
	}
	if err := bootstrap.MigrateAndSeed(db); err != nil {
		return err
	}
	logger.Info("Schema migration and default seed completed")
	return nil
}
