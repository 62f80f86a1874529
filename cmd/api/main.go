// Command api is the ImmoWächter reminder API server.
//
// Usage:
//
//	immowaechter-api
//	PORT=8080 CRON_SECRET=... immowaechter-api

// @title ImmoWächter API
// @version 1.0.0
// @description Maintenance reminder sweep and property risk scores for Austrian property owners.
// @host localhost:8080
// @BasePath /
// @schemes http https
// @contact.name ImmoWächter
// @license.name Proprietary
// @securityDefinitions.apikey CronSecret
// @in header
// @name Authorization
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/immowaechter/immowaechter/internal/api"
	"github.com/immowaechter/immowaechter/internal/api/handler"
	"github.com/immowaechter/immowaechter/internal/app"
	"github.com/immowaechter/immowaechter/internal/cache"
	"github.com/immowaechter/immowaechter/internal/config"
	"github.com/immowaechter/immowaechter/internal/listener"
	"github.com/immowaechter/immowaechter/internal/scheduler"

	_ "github.com/immowaechter/immowaechter/docs" // swagger docs
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var logHandler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.IsProduction() {
		logHandler = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Connect database and optional backends
	logger.Info("Connecting to database...")
	svc, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer svc.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	if cfg.CronSecret == "" {
		logger.Warn("CRON_SECRET is not set; the cron trigger rejects every request")
	}

	// Initialize cache
	appCache := cache.New(cfg.CacheEnabled)
	logger.Info("Cache initialized", "enabled", cfg.CacheEnabled)

	// LISTEN/NOTIFY consumer drops cached risk scores on component changes
	if cfg.ListenerEnabled && cfg.CacheEnabled {
		go listener.Start(ctx, cfg.DatabaseURL, appCache, logger)
	}

	// In-process sweep schedule (optional; the HTTP trigger stays available)
	if cfg.SweepSchedule != "" {
		sched, err := scheduler.New(cfg.SweepSchedule, cfg.Location(), svc.Sweeper, logger)
		if err != nil {
			logger.Error("Failed to configure sweep schedule", "error", err)
			os.Exit(1)
		}
		go sched.Start(ctx)
	}

	// Create router
	router := api.NewRouter(handler.Deps{
		DB:      svc.Pool,
		Cache:   appCache,
		Config:  cfg,
		Sweeper: svc.Sweeper,
		Scorer:  svc.Scorer,
		Logger:  logger,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute, // a sweep runs inside the request
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting ImmoWächter API",
			"addr", addr,
			"environment", cfg.Environment,
			"timezone", cfg.Timezone,
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
