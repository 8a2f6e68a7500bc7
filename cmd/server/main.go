package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dgraph-io/badger/v3"
	"github.com/gorilla/mux"

	"github.com/damon-houk/exchange-rate-chart/internal/application/service"
	"github.com/damon-houk/exchange-rate-chart/internal/config"
	"github.com/damon-houk/exchange-rate-chart/internal/domain/repository"
	"github.com/damon-houk/exchange-rate-chart/internal/infrastructure/api"
	"github.com/damon-houk/exchange-rate-chart/internal/infrastructure/cache"
	"github.com/damon-houk/exchange-rate-chart/internal/infrastructure/db"
	"github.com/damon-houk/exchange-rate-chart/internal/infrastructure/handler"
	"github.com/damon-houk/exchange-rate-chart/internal/infrastructure/logger"
	"github.com/damon-houk/exchange-rate-chart/internal/infrastructure/middleware"
	"github.com/damon-houk/exchange-rate-chart/internal/infrastructure/scheduler"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", map[string]interface{}{
			"path":  configPath,
			"error": err.Error(),
		})
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", map[string]interface{}{
			"error": err.Error(),
		})
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Fatal("Invalid log level", map[string]interface{}{
			"level": cfg.Log.Level,
		})
	}
	log := logger.NewJSONLogger(os.Stdout, level)
	logger.SetDefaultLogger(log)

	log.Info("Starting exchange rate chart service", map[string]interface{}{
		"source": cfg.Source.Kind,
		"listen": cfg.Server.ListenAddr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal("Invalid time zone", map[string]interface{}{
			"error": err.Error(),
		})
	}

	source, closer, err := openRateSource(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open rate source", map[string]interface{}{
			"kind":  cfg.Source.Kind,
			"error": err.Error(),
		})
	}
	defer func() {
		if err := closer.Close(); err != nil {
			log.Error("Error closing rate source", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	listCache, err := openListCache(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open cache", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if c, ok := listCache.(io.Closer); ok {
		defer c.Close()
	}

	// Initialize services
	chartService := service.NewChartService(source, listCache, service.ChartOptions{
		BaseCurrency:    cfg.Chart.BaseCurrency,
		DefaultCurrency: cfg.Chart.DefaultCurrency,
		DefaultWindow:   cfg.Chart.DefaultWindow,
		Location:        loc,
	}, log)

	// Schedule cache maintenance
	sched := scheduler.NewScheduler(ctx, listCache, chartService, log)
	if err := sched.RegisterAll(cfg.Schedule.CacheCleanupCron, cfg.Schedule.CurrencyRefreshCron); err != nil {
		log.Fatal("Failed to register scheduled tasks", map[string]interface{}{
			"error": err.Error(),
		})
	}
	sched.Start()
	defer sched.Stop()

	// Setup router
	router := mux.NewRouter()
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.LoggingMiddleware(log))

	handler.NewChartHandler(chartService, log).RegisterRoutes(router)
	handler.NewWebSocketHandler(chartService, log).RegisterRoutes(router)

	server := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"addr": cfg.Server.ListenAddr,
		})
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	case <-ctx.Done():
		log.Info("Shutting down", nil)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// openRateSource builds the configured RateSource and whatever must be closed with it
func openRateSource(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.RateSource, io.Closer, error) {
	switch cfg.Source.Kind {
	case config.SourceSQLite:
		if dir := filepath.Dir(cfg.Source.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		source, err := db.OpenSQLRateSource(ctx, db.DriverSQLite, cfg.Source.DSN, log)
		if err != nil {
			return nil, nil, err
		}
		return source, source, nil

	case config.SourcePostgres:
		source, err := db.OpenSQLRateSource(ctx, db.DriverPostgres, cfg.Source.DSN, log)
		if err != nil {
			return nil, nil, err
		}
		return source, source, nil

	case config.SourceBadger:
		if err := os.MkdirAll(cfg.Source.BadgerDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create database directory: %w", err)
		}

		badgerOpts := badger.DefaultOptions(cfg.Source.BadgerDir)
		badgerOpts.Logger = nil // Disable Badger's default logger

		badgerDB, err := badger.Open(badgerOpts)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open badger: %w", err)
		}
		return db.NewBadgerRateSource(badgerDB, log), badgerDB, nil

	case config.SourceHTTP:
		source, err := api.NewHTTPRateSource(api.HTTPRateSourceOptions{
			BaseURL:    cfg.Source.HTTP.BaseURL,
			Timeout:    cfg.Source.HTTP.Timeout,
			Retries:    cfg.Source.HTTP.Retries,
			RetryDelay: cfg.Source.HTTP.RetryDelay,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return source, source, nil
	}

	return nil, nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
}

// openListCache uses redis when an address is configured, memory otherwise
func openListCache(ctx context.Context, cfg *config.Config, log logger.Logger) (cache.ListCache, error) {
	if cfg.Cache.RedisAddr == "" {
		return cache.NewMemoryListCache(cfg.Cache.CurrenciesTTL), nil
	}

	return cache.NewRedisListCache(ctx, cfg.Cache.RedisAddr, cfg.Cache.CurrenciesTTL, log)
}
