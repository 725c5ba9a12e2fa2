// Command api is the Climatrack server: it samples weather conditions for
// every registered subject on a fixed interval, appends a record only when
// the reading changed materially, serves the per-subject record log, and
// streams mutation events to live clients.
//
// Usage:
//
//	climatrack-api
//	API_PORT=8080 climatrack-api
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/guanacaste-labs/climatrack/internal/api"
	"github.com/guanacaste-labs/climatrack/internal/api/handler"
	"github.com/guanacaste-labs/climatrack/internal/auth"
	"github.com/guanacaste-labs/climatrack/internal/bus"
	"github.com/guanacaste-labs/climatrack/internal/cache"
	"github.com/guanacaste-labs/climatrack/internal/config"
	"github.com/guanacaste-labs/climatrack/internal/db"
	"github.com/guanacaste-labs/climatrack/internal/maintenance"
	"github.com/guanacaste-labs/climatrack/internal/provider"
	"github.com/guanacaste-labs/climatrack/internal/record"
	"github.com/guanacaste-labs/climatrack/internal/scheduler"
	"github.com/guanacaste-labs/climatrack/internal/snapshot"
	"github.com/guanacaste-labs/climatrack/internal/store"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Connect to database
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	recordStore := store.NewPostgres(pool.Pool)

	// Notification bus: constructed once, injected everywhere events are
	// published, torn down on shutdown.
	events := bus.New(cfg.SubscriberBuffer, logger)
	defer events.Close()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{Timeout: 10 * time.Second}
	weather := provider.NewOpenWeather(httpClient, cfg.OpenWeatherAPIKey, cfg.Units)
	seismic := provider.NewUSGS(httpClient)

	// Ingestion scheduler. The source samples the configured location; a
	// per-subject location column can replace this without touching the
	// scheduler.
	source := scheduler.SourceFunc(func(ctx context.Context, subject record.Subject) (snapshot.Snapshot, error) {
		return weather.Current(ctx, cfg.DefaultCity, cfg.DefaultCountry)
	})
	sched := scheduler.New(recordStore, source, events, scheduler.Options{
		Interval:          cfg.FetchInterval,
		TempThreshold:     cfg.TempThreshold,
		HumidityThreshold: cfg.HumidityThreshold,
	}, logger)
	if err := sched.Start(ctx); err != nil {
		logger.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()
	logger.Info("Ingestion scheduler started",
		"interval", cfg.FetchInterval,
		"temp_threshold", cfg.TempThreshold,
		"humidity_threshold", cfg.HumidityThreshold)

	// Retention maintenance ticker
	go maintenance.Start(ctx, pool.Pool, maintenance.DefaultConfig(cfg.RecordRetention), logger)

	// Initialize cache
	appCache := cache.New(cfg.CacheEnabled)
	logger.Info("Cache initialized", "enabled", cfg.CacheEnabled)

	// Create router
	h := handler.New(handler.Deps{
		Store:   recordStore,
		Events:  events,
		Cache:   appCache,
		Weather: weather,
		Seismic: seismic,
		Config:  cfg,
		DBPing:  pool.HealthCheck,
	})
	router := api.NewRouter(h, auth.SubjectTokenResolver(), cfg)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	// No WriteTimeout: /api/v1/events holds its connection open for the
	// lifetime of the subscriber.
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting Climatrack API",
			"addr", addr,
			"environment", cfg.Environment,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
