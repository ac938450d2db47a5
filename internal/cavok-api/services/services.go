// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

// Package services assembles the business logic layer. Each subpackage owns
// one concern; this package wires them in dependency order.
package services

import (
	"log/slog"

	"github.com/cavok-dev/cavok/internal/cavok-api/config"
	"github.com/cavok-dev/cavok/internal/cavok-api/services/candidates"
	"github.com/cavok-dev/cavok/internal/cavok-api/services/classify"
	"github.com/cavok-dev/cavok/internal/cavok-api/services/decision"
	"github.com/cavok-dev/cavok/internal/cavok-api/services/pipeline"
	"github.com/cavok-dev/cavok/internal/cavok-api/services/ranking"
	"github.com/cavok-dev/cavok/internal/cavok-api/services/weather"
	"github.com/cavok-dev/cavok/internal/store"
)

// Services bundles the business logic layer.
type Services struct {
	Weather    weather.Service
	Classify   classify.Service
	Candidates candidates.Service
	Ranking    ranking.Service
	Decision   decision.Service
	Pipeline   pipeline.Service
}

// NewServices creates and initializes all services. The weather and ranker
// clients are only constructed when their API keys are configured; without
// them the forecast gateway runs synthetic-only and the ranker reports
// ranker-not-configured.
func NewServices(st *store.Store, cfg *config.Config, logger *slog.Logger) *Services {
	var weatherClient *weather.Client
	if cfg.Weather.APIKey != "" {
		weatherClient = weather.NewClient(cfg.Weather, logger.With("client", "weather"))
	}
	weatherService := weather.NewService(st, weatherClient, logger.With("service", "weather"))

	classifyService := classify.NewService(st, cfg.Pipeline, logger.With("service", "classify"))

	candidatesService := candidates.NewService(st, cfg.Pipeline, logger.With("service", "candidates"))

	var rankerClient *ranking.Client
	if cfg.Ranker.APIKey != "" {
		rankerClient = ranking.NewClient(cfg.Ranker, logger.With("client", "ranker"))
	}
	rankingService := ranking.NewService(rankerClient, cfg.Ranker, logger.With("service", "ranking"))

	decisionService := decision.NewService(st, cfg.Pipeline, logger.With("service", "decision"))

	// The pipeline orchestrates the others and comes last.
	pipelineService := pipeline.NewService(st, pipeline.Deps{
		Weather:    weatherService,
		Classify:   classifyService,
		Candidates: candidatesService,
		Ranking:    rankingService,
		Decision:   decisionService,
	}, cfg.Pipeline, logger.With("service", "pipeline"))

	return &Services{
		Weather:    weatherService,
		Classify:   classifyService,
		Candidates: candidatesService,
		Ranking:    rankingService,
		Decision:   decisionService,
		Pipeline:   pipelineService,
	}
}
