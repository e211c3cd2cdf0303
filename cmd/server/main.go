// Package main is the entry point for the geopoint server.
//
// The main package is kept minimal. Its job is to:
// 1. Read configuration (environment, optionally seeded from .env)
// 2. Create dependencies (logger, storage, identity verifiers)
// 3. Start the application
//
// All actual logic lives in internal/ packages.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/sakif/geopoint/internal/config"
	"github.com/sakif/geopoint/internal/logging"
	"github.com/sakif/geopoint/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	cfg, err := config.Load()
	if err != nil {
		// The configured logger needs the config; fall back to a default one.
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	// Lives as long as the process: the Google key set refreshes under it.
	ctx := context.Background()

	// === 3. OPEN STORAGE ===
	// Fatal if the database is unreachable; migrations run here.
	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	storage, err := server.OpenStorage(openCtx, cfg)
	cancel()
	if err != nil {
		logger.Error("failed to open storage",
			slog.String("driver", cfg.DBDriver),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// === 4. IDENTITY PROVIDERS ===
	httpClient := &http.Client{Timeout: cfg.VerifyTimeout}
	verifiers, err := server.BuildRegistry(ctx, cfg, httpClient)
	if err != nil {
		storage.Close()
		logger.Error("failed to configure identity providers", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 5. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, logger, storage, verifiers)
	if err != nil {
		storage.Close()
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
