package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/erp/dealbridge/internal/bootstrap"
	"github.com/erp/dealbridge/internal/infrastructure/cache"
	"github.com/erp/dealbridge/internal/infrastructure/config"
	"github.com/erp/dealbridge/internal/infrastructure/logger"
	"github.com/erp/dealbridge/internal/infrastructure/telemetry"
	"github.com/erp/dealbridge/internal/interfaces/http/handler"
	"github.com/erp/dealbridge/internal/interfaces/http/middleware"
	"github.com/erp/dealbridge/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.NewForEnvironment(cfg.App.Env, cfg.Log.Level, cfg.App.Name)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync(log)

	ctx := context.Background()

	// Telemetry providers; disabled ones are no-ops
	tel, log, err := bootstrap.NewTelemetry(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}

	log.Info("Starting deal bridge",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Token and delivery stores share one Redis client when Redis is enabled
	stores := cache.NewStoreFactory(cfg.Redis, cache.WithLogger(log.Named("cache")))

	meter := tel.Meter.Meter("dealbridge")
	metrics := telemetry.MustBridgeMetrics(meter)

	b, err := bootstrap.NewBridge(cfg, stores, metrics, log)
	if err != nil {
		log.Fatal("Failed to initialize bridge", zap.Error(err))
	}
	events, err := b.Handler(stores, cfg.HTTP.DedupTTL, log)
	if err != nil {
		log.Fatal("Failed to initialize delivery dedupe", zap.Error(err))
	}
	log.Info("Bridge ready",
		zap.Bool("crm_lookup_disabled", b.Accounts.LookupDisabled()),
		zap.Bool("redis", stores.UsesRedis()),
		zap.Duration("dedup_ttl", cfg.HTTP.DedupTTL),
		zap.Int("rate_limit_per_minute", cfg.HTTP.RateLimit),
	)

	var limiter *middleware.RateLimiter
	if cfg.HTTP.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimit, time.Minute)
		defer limiter.Close()
	}

	health := handler.NewHealthHandler(cfg.App.Name, telemetry.ServiceVersion)
	if stores.UsesRedis() {
		health.WithCheck("redis", stores.Ping)
	}

	engine := router.NewEngine(router.EngineConfig{
		Logger:      log,
		Meter:       meter,
		ServiceName: cfg.Telemetry.ServiceName,
		Tracing:     tel.Tracer.IsEnabled(),
		MaxBodySize: cfg.HTTP.MaxBodySize,
	})
	router.NewRouter(engine).
		Register(health).
		Register(handler.NewDealWebhookHandler(events, middleware.RateLimit(limiter))).
		Setup()

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := b.Close(); err != nil {
		log.Warn("Error closing delivery store", zap.Error(err))
	}
	if err := stores.Close(); err != nil {
		log.Warn("Error closing Redis client", zap.Error(err))
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down telemetry", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
