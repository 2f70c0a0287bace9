package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	ledgerapp "github.com/venda/backend/internal/application/ledger"
	orderingapp "github.com/venda/backend/internal/application/ordering"
	tokenapp "github.com/venda/backend/internal/application/token"
	"github.com/venda/backend/internal/domain/shared"
	"github.com/venda/backend/internal/infrastructure/cache"
	"github.com/venda/backend/internal/infrastructure/config"
	"github.com/venda/backend/internal/infrastructure/device"
	"github.com/venda/backend/internal/infrastructure/logger"
	"github.com/venda/backend/internal/infrastructure/persistence"
	"github.com/venda/backend/internal/infrastructure/telemetry"
	"github.com/venda/backend/internal/interfaces/http/handler"
	"github.com/venda/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting Venda Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	// Initialize telemetry
	telemetryCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	commitMetrics, err := telemetry.NewCommitMetrics(meterProvider.Meter("venda.commit"))
	if err != nil {
		log.Fatal("Failed to create commit metrics", zap.Error(err))
	}

	// Initialize database connection
	gormLogLevel := gormlogger.Silent
	if cfg.Log.Level == "debug" {
		gormLogLevel = gormlogger.Info
	}
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLogLevel)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to migrate database schema", zap.Error(err))
	}
	log.Info("Database connected and migrated")

	// Initialize repositories
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	variantRepo := persistence.NewGormVariantRepository(db.DB)
	inventoryRepo := persistence.NewGormInventoryItemRepository(db.DB)
	movementRepo := persistence.NewGormMovementRepository(db.DB)
	tokenRepo := persistence.NewGormTokenRepository(db.DB)
	tokenConfigRepo := persistence.NewGormTokenConfigRepository(db.DB)
	tokenSaleRepo := persistence.NewGormTokenSaleRepository(db.DB)
	ledgerRepo := persistence.NewGormLedgerRepository(db.DB)

	// Initialize idempotency guard
	guard, err := cache.NewIdempotencyGuard(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize idempotency guard", zap.Error(err))
	}
	defer func() {
		if err := guard.Close(); err != nil {
			log.Error("Error closing idempotency guard", zap.Error(err))
		}
	}()
	guardCfg := shared.IdempotencyConfig{
		Enabled: cfg.Idempotency.Enabled,
		TTL:     cfg.Idempotency.TTL,
	}

	// Initialize device gateway
	gateway, err := device.NewControllerClient(&device.Config{
		BaseURL: cfg.Device.BaseURL,
		APIKey:  cfg.Device.APIKey,
		Timeout: cfg.Device.Timeout,
	})
	if err != nil {
		log.Fatal("Failed to initialize device gateway", zap.Error(err))
	}

	// Order numbers are sequenced per business day in the store's timezone
	location, err := time.LoadLocation(cfg.Order.Timezone)
	if err != nil {
		log.Fatal("Invalid order timezone", zap.String("timezone", cfg.Order.Timezone), zap.Error(err))
	}
	allocator := orderingapp.NewOrderNumberAllocator(orderRepo, cfg.Order.NumberPrefix, location)

	// Initialize application services
	postingService := ledgerapp.NewPostingService(ledgerRepo, log)
	postingService.SetObserver(commitMetrics)

	commitService := orderingapp.NewCommitService(
		orderRepo,
		variantRepo,
		inventoryRepo,
		movementRepo,
		tokenRepo,
		tokenConfigRepo,
		tokenSaleRepo,
		gateway,
		allocator,
		guard,
		guardCfg,
		log,
	)
	commitService.SetLedgerPoster(postingService)
	commitService.SetObserver(commitMetrics)

	queryService := orderingapp.NewQueryService(orderRepo)
	poolService := tokenapp.NewPoolService(tokenConfigRepo, tokenRepo, log)

	// Build the HTTP engine
	engine := router.New(cfg, log, router.Handlers{
		Order:  handler.NewOrderHandler(commitService, queryService, log),
		Token:  handler.NewTokenHandler(poolService, log),
		Ledger: handler.NewLedgerHandler(postingService, log),
		System: handler.NewSystemHandler(db, log),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}

	log.Info("Server exited")
}
