// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

// Package pipeline sequences the weather-aware rescheduling stages: forecast
// ingestion, classification, and auto-rescheduling. Every run is tagged with
// a correlation id, bounded by a time budget, and persisted as a cron run
// record regardless of outcome.
package pipeline

import (
	"context"

	"github.com/cavok-dev/cavok/internal/cavok-api/models"
)

// Run triggers.
const (
	TriggerCron = "cron"
	TriggerRPC  = "rpc"
)

// Service orchestrates pipeline runs and their manually invoked sub-sweeps.
type Service interface {
	// RunPipeline executes all three stages over the scheduled-flight window
	// and persists a run record. Stage failures downgrade the run to partial;
	// they never abort later stages.
	RunPipeline(ctx context.Context, trigger string) (*models.RunSummary, error)

	// WeatherPoll runs forecast ingestion and classification for the given
	// flights, or the whole window when none are given.
	WeatherPoll(ctx context.Context, flightIDs []int64) (*models.WeatherPollResult, error)

	// AutoReschedule classifies the given flights (or the whole window) and
	// sweeps the conflicted ones through candidate generation, ranking, and
	// the auto-accept gate. ForceExecute widens the sweep to advisory
	// flights.
	AutoReschedule(ctx context.Context, flightIDs []int64, forceExecute bool) (*models.AutoRescheduleResult, error)

	// ListRuns pages through recorded runs, newest first, with an optional
	// status filter. Limit defaults to 10 and is capped at 50.
	ListRuns(ctx context.Context, limit int, status string) (*models.CronRunsResult, error)

	// ListNotifications lists the unread notifications runs and decisions
	// have raised, newest first. Limit defaults to 50.
	ListNotifications(ctx context.Context, limit int) (*models.NotificationsResult, error)
}
