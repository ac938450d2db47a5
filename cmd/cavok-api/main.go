// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/cavok-dev/cavok/internal/cavok-api/config"
	"github.com/cavok-dev/cavok/internal/cavok-api/handlers"
	"github.com/cavok-dev/cavok/internal/cavok-api/services"
	"github.com/cavok-dev/cavok/internal/cavok-api/services/pipeline"
	"github.com/cavok-dev/cavok/internal/logging"
	"github.com/cavok-dev/cavok/internal/store"
)

func main() {
	// A missing .env file is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	baseLogger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	slog.SetDefault(baseLogger)

	// Create shutdown context
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(cfg.Database.Path, baseLogger.With("component", "store"))
	if err != nil {
		baseLogger.Error("Failed to open store",
			slog.String("path", cfg.Database.Path),
			slog.Any("error", err))
		os.Exit(1)
	}

	svcs := services.NewServices(st, cfg, baseLogger)

	handler := handlers.New(svcs, baseLogger.With("component", "handlers"))

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	var scheduler *pipeline.Scheduler
	if cfg.Cron.Enabled {
		scheduler, err = pipeline.NewScheduler(svcs.Pipeline, cfg.Cron, baseLogger.With("component", "scheduler"))
		if err != nil {
			baseLogger.Error("Failed to initialize scheduler", slog.Any("error", err))
			os.Exit(1)
		}
		scheduler.Start(ctx)
	} else {
		baseLogger.Info("Scheduled pipeline runs disabled")
	}

	// Start server
	go func() {
		baseLogger.Info("Cavok API server listening on", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Error("Server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("Server shutdown error", slog.Any("error", err))
	}

	if scheduler != nil {
		scheduler.Stop()
	}

	if err := st.Close(); err != nil {
		baseLogger.Error("Failed to close store", slog.Any("error", err))
	}

	baseLogger.Info("Server stopped gracefully")
}
