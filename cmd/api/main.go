// Command api serves the highlights HTTP API and runs the process_video workers.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clipmark/highlights/internal/config"
	"github.com/clipmark/highlights/internal/observability"
)

const shutdownTimeout = 30 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	if err := cfg.RequireAPIKey(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		return 1
	}

	logger := observability.SetupLogging(cfg.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to start", "error", err)
		return 1
	}

	runErr := app.Run(ctx)
	if runErr != nil {
		logger.Error("Component failed", "error", runErr)
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", "error", err)
		return 1
	}

	logger.Info("Server exited")

	if runErr != nil {
		return 1
	}

	return 0
}
