// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

// Package weather implements the forecast gateway: upstream fetches with
// retry, conditional revalidation against the snapshot log, and cached or
// synthetic degradation when the upstream cannot serve.
package weather

import (
	"context"
	"time"

	"github.com/cavok-dev/cavok/internal/cavok-api/models"
	"github.com/cavok-dev/cavok/internal/store"
)

// Forecast sources, used as provenance markers and metric labels.
const (
	SourceRemote    = "remote"
	SourceCache     = "cache"
	SourceSynthetic = "synthetic"
)

// Result is one resolved checkpoint forecast. Snapshot is unsaved unless
// Source is SourceCache. DegradedReason is set when a configured upstream
// failed and a fallback served instead.
type Result struct {
	Snapshot       *store.WeatherSnapshot
	Source         string
	StalenessHours float64
	DegradedReason string
}

// Service defines the business logic interface for forecast operations.
type Service interface {
	// FetchCheckpoint resolves the forecast for one flight checkpoint,
	// degrading remote -> cache -> synthetic. It returns
	// ErrNoForecastAvailable when every source fails.
	FetchCheckpoint(ctx context.Context, flight *store.Flight, checkpointType string) (*Result, error)

	// ListSnapshots returns the snapshot log for a flight with derived
	// staleness, newest first.
	ListSnapshots(ctx context.Context, flightID int64, checkpointType string, from, to *time.Time, limit int) (*models.WeatherSnapshotsResult, error)
}
