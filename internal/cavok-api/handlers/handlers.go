// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

// Package handlers exposes the scheduling engine over HTTP: a single JSON
// RPC endpoint plus health, readiness, and metrics.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cavok-dev/cavok/internal/cavok-api/services"
	"github.com/cavok-dev/cavok/internal/server/middleware"
)

// Handler holds the services and provides HTTP handlers.
type Handler struct {
	services *services.Services
	logger   *slog.Logger
}

// New creates a new Handler instance.
func New(services *services.Services, logger *slog.Logger) *Handler {
	return &Handler{
		services: services,
		logger:   logger,
	}
}

// Routes sets up all HTTP routes and returns the configured handler.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	routes := middleware.NewRouteBuilder(mux).With(
		middleware.Recovery(h.logger),
		middleware.Logger(h.logger),
	)

	// Health & readiness checks
	routes.HandleFunc("GET /health", h.Health)
	routes.HandleFunc("GET /ready", h.Ready)

	// Prometheus metrics
	routes.Handle("GET /metrics", promhttp.Handler())

	// The RPC surface
	routes.HandleFunc("POST /rpc", h.HandleRPC)

	return mux
}

// Health handles health check requests.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Ready handles readiness check requests by touching the store.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if _, err := h.services.Pipeline.ListRuns(r.Context(), 1, ""); err != nil {
		h.logger.Error("readiness probe failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Ready"))
}
