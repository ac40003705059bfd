package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"ipgconnect/internal/bootstrap"
	"ipgconnect/internal/config"
	cronpkg "ipgconnect/internal/cron"
	"ipgconnect/internal/dedup"
	"ipgconnect/internal/handler"
	"ipgconnect/internal/metrics"
	"ipgconnect/internal/notification"
	"ipgconnect/internal/pkg/telegram"
	"ipgconnect/internal/relay"
	"ipgconnect/internal/repository"
	"ipgconnect/internal/router"
)

func main() {
	if hasArg("--bootstrap-db") {
		logger := newLogger(false)
		defer logger.Sync()
		if err := runDBBootstrap(logger); err != nil {
			logger.Fatal("Database bootstrap failed", zap.Error(err))
		}
		logger.Info("Database bootstrap completed")
		return
	}

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	logger := newLogger(cfg.Server.IsDevelopment())
	defer logger.Sync()

	// --- Database ---
	db, err := config.NewDatabase(&cfg.Database, cfg.Server.IsDevelopment())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := bootstrap.Migrate(db); err != nil {
		logger.Fatal("Failed to bootstrap database schema", zap.Error(err))
	}
	callbackRepo := repository.NewCallbackRepository(db)

	// --- Callback Deduper (Redis with in-memory fallback) ---
	deduper, dedupErr := dedup.New(cfg.Redis.Addr, cfg.Redis.Pass, cfg.Redis.DB, cfg.Redis.DedupTTL)
	if dedupErr != nil {
		logger.Warn("Redis unavailable for callback dedup, using in-memory fallback", zap.Error(dedupErr))
	}

	// --- Outbound ---
	var relayer relay.Relayer = relay.Noop{}
	var redeliver relay.Relayer
	if cfg.Relay.URL != "" {
		orderRelay := relay.NewOrderRelay(cfg.Relay.URL, cfg.Relay.Timeout)
		relayer, redeliver = orderRelay, orderRelay
	} else {
		logger.Info("ORDER_WEBHOOK_URL not set, verified callbacks are stored only")
	}

	var reporter *telegram.BotAPI
	if cfg.Report.BotToken != "" && cfg.Report.ChatID != "" {
		reporter = telegram.NewBotAPI(cfg.Report.BotToken)
	}

	// --- Callback handler ---
	opts := notification.Options{DefaultAlgorithm: cfg.Gateway.HashAlgorithm}
	if cfg.Gateway.CardDetails {
		opts.Features |= notification.FeatureCardDetails
	}
	deps := handler.CallbackDeps{
		Store:   callbackRepo,
		Deduper: deduper,
		Relay:   relayer,
	}
	if reporter != nil {
		deps.Reporter = reporter
		deps.ReportChatID = cfg.Report.ChatID
	}
	callbacks := handler.NewIPGCallbackHandler(
		notification.Credentials{StoreID: cfg.Gateway.StoreID, SharedSecret: cfg.Gateway.SharedSecret},
		opts,
		deps,
		logger,
	)

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true

	metrics.MustRegister()
	router.Setup(e, callbacks, callbackRepo, logger, cfg.API.Key)

	// --- Cron Scheduler ---
	var scheduleReporter cronpkg.Reporter
	if reporter != nil {
		scheduleReporter = reporter
	}
	scheduler := cronpkg.New(cfg, callbackRepo, redeliver, scheduleReporter, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting IPG Connect callback server",
			zap.String("addr", addr),
			zap.String("store_id", cfg.Gateway.StoreID),
			zap.String("hash_algorithm", cfg.Gateway.HashAlgorithm.String()),
		)
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
	ctx := scheduler.Stop()
	<-ctx.Done()

	// Stop HTTP server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLogger(development bool) *zap.Logger {
	build := zap.NewProduction
	if development {
		build = zap.NewDevelopment
	}
	logger, err := build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return logger
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
	db, err := config.NewDatabase(dbCfg, false)
	if err != nil {
		return err
	}
	if err := bootstrap.Migrate(db); err != nil {
		return err
	}
	logger.Info("Schema migration completed")
	return nil
}
