// Package main is the entry point for the txchain ledger API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"txchain/internal/app"
	v1 "txchain/internal/infrastructure/http/v1"
	"txchain/pkg/logger"
)

func main() {
	// Initialize logger
	env := getEnv("APP_ENV", "development")
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: env == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := logger.WithLogger(context.Background(), log)
	log.Info("starting txchain server")

	// --- Storage and ledger ---
	driver := getEnv("DB_DRIVER", app.DriverSQLite)
	cfg := app.Config{
		Driver:           driver,
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		StatementTimeout: getEnvDuration("DB_STATEMENT_TIMEOUT", 30*time.Second),
		MaxConns:         int32(getEnvInt("DB_MAX_CONNS", 25)),
		Rules:            os.Getenv("TX_RULES"),
	}
	if driver == app.DriverPostgres {
		cfg.DatabaseURL = mustEnv("DATABASE_URL")
	}

	ledgerApp, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to initialize ledger", "driver", driver, "error", err)
	}
	defer func() {
		if err := ledgerApp.Close(); err != nil {
			log.Warnw("failed to close storage", "error", err)
		}
	}()

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:   log,
		Ledger:   ledgerApp.Ledger,
		Registry: ledgerApp.Dispatcher.Registry(),
		Ping:     ledgerApp.Ping,
		Info: map[string]any{
			"env":    env,
			"driver": driver,
		},
		Metrics: promhttp.Handler(),
		Debug:   env == "development",
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infow("server starting", "port", port, "driver", driver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	ledgerApp.LogStats(ctx)
	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
