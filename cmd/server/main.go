// Package main is the entry point for the dealership identity server.
//
// The main package stays minimal. Its job is to:
//  1. Read configuration (.env file, then environment variables)
//  2. Create the logger
//  3. Build and start the server
//
// All actual logic lives in the internal packages.
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sakif/autodealer/internal/config"
	"github.com/sakif/autodealer/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// Variables already set in the environment win over the .env file.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	// LOG_LEVEL uses slog's numeric levels: -4 debug, 0 info, 4 warn, 8 error.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if cfg.JWT.Secret == config.DevJWTSecret {
		logger.Warn("JWT_SECRET not set, using the development secret; generate one with: openssl rand -hex 32")
	}

	// === 3. DATABASE DIRECTORY ===
	// os.MkdirAll is `mkdir -p`. An in-memory database needs no directory.
	if cfg.Database.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Database.Path)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// === 4. CREATE AND START THE SERVER ===
	// Startup calls to the asset store get a bounded budget.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
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
