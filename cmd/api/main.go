// Copyright (c) 2026 Mosava. All rights reserved.
// Author: vann.pham.vn@gmail.com

// Command api is the entry point for the Mosava HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Open the SQLite database and bootstrap the schema.
//  4. Construct the NSFW detector (remote client or disabled stub).
//  5. Wire domain services and HTTP handlers.
//  6. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vannpham/mosava/internal/api"
	"github.com/vannpham/mosava/internal/mosaic"
	"github.com/vannpham/mosava/internal/platform/config"
	"github.com/vannpham/mosava/internal/platform/constants"
	"github.com/vannpham/mosava/internal/platform/nsfw"
	"github.com/vannpham/mosava/internal/platform/sec"
	"github.com/vannpham/mosava/internal/platform/sqlite"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", "mosava"))
	slog.SetDefault(log)

	log.Info("[Mosava] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", "mosava"))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. SQLite ─────────────────────────────────────────────────────────
	db, err := sqlite.Open(startupCtx, cfg.SQLitePath, log)
	must(log, err, "open sqlite database")
	defer func() {
		log.Info("closing sqlite database")
		if cerr := db.Close(); cerr != nil {
			log.Error("sqlite close error", slog.Any("error", cerr))
		}
	}()

	store, err := mosaic.NewStore(startupCtx, db)
	must(log, err, "bootstrap mosaic schema")

	// ── 4. NSFW Detector ──────────────────────────────────────────────────
	var detector nsfw.Detector = nsfw.Disabled{}
	if cfg.EnableNSFWFilter {
		detector = nsfw.NewClient(cfg.NSFWServiceURL, cfg.NSFWThreshold)
		log.Info("nsfw_filter_enabled", slog.String("service_url", cfg.NSFWServiceURL))
	}

	// ── 5. Auth Service ───────────────────────────────────────────────────
	tokenService := sec.NewTokenService(cfg.JWTSecret)

	// ── 6. Health handlers (wired with real dependency checkers) ─────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return db.PingContext(context.Background())
		},
	}, log)

	// ── 7. Domain Wiring ──────────────────────────────────────────────────
	settings := mosaic.SettingsFromConfig(cfg)

	creationService := mosaic.NewCreationService(store, settings, log)
	lifecycleManager := mosaic.NewLifecycleManager(store, creationService, settings, log)
	fillEngine := mosaic.NewFillEngine(store, detector, lifecycleManager, settings, log)
	queryService := mosaic.NewQueryService(store, log)

	mosaicHandler := mosaic.NewHandler(fillEngine, queryService)
	adminHandler := mosaic.NewAdminHandler(creationService, lifecycleManager, fillEngine, queryService)

	// ── 8. HTTP Server ────────────────────────────────────────────────────
	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	handlers := api.Handlers{
		Liveness:    liveness,
		Readiness:   readiness,
		Mosaic:      mosaicHandler,
		MosaicAdmin: adminHandler,
	}

	server := api.NewServer(serverCtx, cfg, log, tokenService, handlers)

	// ── 9. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
