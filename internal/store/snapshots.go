// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Snapshot query limits for the history view.
const (
	SnapshotQueryDefaultLimit = 50
	SnapshotQueryMaxLimit     = 500
)

// SnapshotRepository handles weather snapshot rows. Inserts only; snapshots
// are never updated or deleted.
type SnapshotRepository struct {
	db *gorm.DB
}

// Append inserts a snapshot.
func (r *SnapshotRepository) Append(ctx context.Context, snapshot *WeatherSnapshot) error {
	result := r.db.WithContext(ctx).Create(snapshot)
	if result.Error != nil {
		return fmt.Errorf("failed to append weather snapshot: %w", result.Error)
	}
	return nil
}

// GetByID retrieves one snapshot.
func (r *SnapshotRepository) GetByID(ctx context.Context, id int64) (*WeatherSnapshot, error) {
	var snapshot WeatherSnapshot
	result := r.db.WithContext(ctx).First(&snapshot, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("snapshot %d not found: %w", id, gorm.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("failed to get snapshot %d: %w", id, result.Error)
	}
	return &snapshot, nil
}

// LatestForFlightCheckpoint retrieves the newest snapshot for one flight
// checkpoint, or gorm.ErrRecordNotFound (wrapped) when none exists.
func (r *SnapshotRepository) LatestForFlightCheckpoint(ctx context.Context, flightID int64, checkpointType string) (*WeatherSnapshot, error) {
	var snapshot WeatherSnapshot
	result := r.db.WithContext(ctx).
		Where("flight_id = ? AND checkpoint_type = ?", flightID, checkpointType).
		Order("created_at DESC, id DESC").
		First(&snapshot)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no snapshot for flight %d checkpoint %s: %w", flightID, checkpointType, gorm.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("failed to get latest snapshot for flight %d: %w", flightID, result.Error)
	}
	return &snapshot, nil
}

// LatestForLocationForecast retrieves the newest snapshot for a location and
// forecast instant. The gateway uses this for conditional-request
// revalidation and 304 cache hits.
func (r *SnapshotRepository) LatestForLocationForecast(ctx context.Context, location string, forecastTime time.Time) (*WeatherSnapshot, error) {
	var snapshot WeatherSnapshot
	result := r.db.WithContext(ctx).
		Where("location = ? AND forecast_time = ?", location, forecastTime).
		Order("created_at DESC, id DESC").
		First(&snapshot)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no snapshot for location %s at %s: %w", location, forecastTime.Format(time.RFC3339), gorm.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("failed to get latest snapshot for location %s: %w", location, result.Error)
	}
	return &snapshot, nil
}

// LatestForFlight retrieves the newest snapshot for a flight across all
// checkpoints. The decision recorder attaches it to audit actions.
func (r *SnapshotRepository) LatestForFlight(ctx context.Context, flightID int64) (*WeatherSnapshot, error) {
	var snapshot WeatherSnapshot
	result := r.db.WithContext(ctx).
		Where("flight_id = ?", flightID).
		Order("created_at DESC, id DESC").
		First(&snapshot)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no snapshot for flight %d: %w", flightID, gorm.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("failed to get latest snapshot for flight %d: %w", flightID, result.Error)
	}
	return &snapshot, nil
}

// LatestPerCheckpoint retrieves the newest snapshot for each checkpoint type
// of a flight, keyed by checkpoint type. Missing checkpoints are absent from
// the map; the classifier decides what missing means.
func (r *SnapshotRepository) LatestPerCheckpoint(ctx context.Context, flightID int64) (map[string]*WeatherSnapshot, error) {
	latest := make(map[string]*WeatherSnapshot, 3)
	for _, checkpointType := range []string{CheckpointDeparture, CheckpointArrival, CheckpointCorridor} {
		snapshot, err := r.LatestForFlightCheckpoint(ctx, flightID, checkpointType)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		latest[checkpointType] = snapshot
	}
	return latest, nil
}

// SnapshotQuery filters the snapshot history view.
type SnapshotQuery struct {
	FlightID       int64
	CheckpointType string
	From           time.Time
	To             time.Time
	Limit          int
}

// Query lists snapshots for a flight, newest first. Limit defaults to 50 and
// is capped at 500.
func (r *SnapshotRepository) Query(ctx context.Context, q SnapshotQuery) ([]WeatherSnapshot, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = SnapshotQueryDefaultLimit
	}
	if limit > SnapshotQueryMaxLimit {
		limit = SnapshotQueryMaxLimit
	}

	tx := r.db.WithContext(ctx).Where("flight_id = ?", q.FlightID)
	if q.CheckpointType != "" {
		tx = tx.Where("checkpoint_type = ?", q.CheckpointType)
	}
	if !q.From.IsZero() {
		tx = tx.Where("created_at >= ?", q.From)
	}
	if !q.To.IsZero() {
		tx = tx.Where("created_at <= ?", q.To)
	}

	var snapshots []WeatherSnapshot
	result := tx.Order("created_at DESC, id DESC").Limit(limit).Find(&snapshots)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query snapshots for flight %d: %w", q.FlightID, result.Error)
	}
	return snapshots, nil
}
