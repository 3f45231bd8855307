// Package main is the entry point for the matchday predictor API.
//
// The main package is kept minimal. Its job is to:
// 1. Read configuration (.env file, then environment variables)
// 2. Build the logger
// 3. Hand both to internal/server, which wires everything else
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/sakif/matchday-predictor/internal/config"
	"github.com/sakif/matchday-predictor/internal/server"
)

// startupTimeout bounds backend setup, which may create DynamoDB tables.
const startupTimeout = 3 * time.Minute

func main() {
	// === 1. READ CONFIGURATION ===
	// A missing .env is fine; real deployments set the environment directly.
	bootLogger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	if err := config.LoadDotEnv(); err != nil {
		bootLogger.Error("failed to read .env", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		bootLogger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	logger := newLogger(cfg)

	// === 3. CREATE AND START THE SERVER ===
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	srv, err := server.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
