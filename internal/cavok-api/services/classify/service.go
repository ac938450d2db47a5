// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cavok-dev/cavok/internal/cavok-api/config"
	"github.com/cavok-dev/cavok/internal/cavok-api/models"
	"github.com/cavok-dev/cavok/internal/metrics"
	"github.com/cavok-dev/cavok/internal/store"
)

// Result reasons for flights that could not be evaluated.
const (
	ReasonAllClear          = "all checkpoints within thresholds"
	ReasonFlightNotFound    = "flight-not-found"
	ReasonStudentNotFound   = "student-not-found"
	ReasonThresholdNotFound = "threshold-not-found"
)

// allCheckpoints is the fixed evaluation order; classification must not
// depend on map iteration.
var allCheckpoints = []string{
	store.CheckpointDeparture,
	store.CheckpointArrival,
	store.CheckpointCorridor,
}

type classifyService struct {
	store         *store.Store
	horizonHours  float64
	lookaheadDays int
	logger        *slog.Logger
}

var _ Service = (*classifyService)(nil)

// NewService creates a new classifier service.
func NewService(st *store.Store, cfg config.PipelineConfig, logger *slog.Logger) Service {
	return &classifyService{
		store:         st,
		horizonHours:  float64(cfg.RescheduleHorizonHours),
		lookaheadDays: cfg.SearchWindowDays,
		logger:        logger,
	}
}

func (s *classifyService) Classify(ctx context.Context, flightIDs []int64) ([]models.ClassificationResult, error) {
	now := time.Now().UTC()

	flights, missing, err := s.loadTargets(ctx, flightIDs, now)
	if err != nil {
		return nil, err
	}

	results := make([]models.ClassificationResult, 0, len(flights)+len(missing))
	for _, id := range missing {
		results = append(results, models.ClassificationResult{
			FlightID:      id,
			WeatherStatus: store.WeatherStatusUnknown,
			Reason:        ReasonFlightNotFound,
		})
	}
	for i := range flights {
		result := s.classifyFlight(ctx, &flights[i], now)
		metrics.FlightsClassifiedTotal.WithLabelValues(result.WeatherStatus).Inc()
		results = append(results, result)
	}
	return results, nil
}

// loadTargets resolves the flight set. Explicit IDs that do not resolve are
// returned separately so they surface as unknown results.
func (s *classifyService) loadTargets(ctx context.Context, flightIDs []int64, now time.Time) ([]store.Flight, []int64, error) {
	if len(flightIDs) == 0 {
		flights, err := s.store.Flights.ListScheduledBetween(ctx, now, now.AddDate(0, 0, s.lookaheadDays))
		return flights, nil, err
	}

	flights, err := s.store.Flights.ListByIDs(ctx, flightIDs)
	if err != nil {
		return nil, nil, err
	}

	found := make(map[int64]bool, len(flights))
	for i := range flights {
		found[flights[i].ID] = true
	}
	var missing []int64
	for _, id := range flightIDs {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return flights, missing, nil
}

func (s *classifyService) classifyFlight(ctx context.Context, flight *store.Flight, now time.Time) models.ClassificationResult {
	result := models.ClassificationResult{
		FlightID:            flight.ID,
		HoursUntilDeparture: flight.DepartureTime.Sub(now).Hours(),
	}
	logger := s.logger.With(slog.Int64("flight_id", flight.ID))

	threshold, reason := s.lookupThreshold(ctx, flight)
	if reason != "" {
		return s.finish(ctx, logger, result, store.WeatherStatusUnknown, reason, nil)
	}

	snapshots, err := s.store.Snapshots.LatestPerCheckpoint(ctx, flight.ID)
	if err != nil {
		logger.Error("Failed to load snapshots for classification", slog.String("error", err.Error()))
		result.WeatherStatus = store.WeatherStatusUnknown
		result.Reason = fmt.Sprintf("snapshot lookup failed: %v", err)
		return result
	}

	var missing []string
	for _, cp := range allCheckpoints {
		if snapshots[cp] == nil {
			missing = append(missing, cp)
		}
	}
	if len(missing) > 0 {
		reason := "missing checkpoints: " + strings.Join(missing, ", ")
		return s.finish(ctx, logger, result, store.WeatherStatusUnknown, reason, nil)
	}

	var breaches []models.CheckpointBreach
	var failing []string
	for _, cp := range allCheckpoints {
		snap := snapshots[cp]
		wind := snap.WindSpeedKts > threshold.MaxWindSpeedKts
		visibility := snap.VisibilityMi < threshold.MinVisibilityMi
		ceiling := snap.CeilingFt != nil && *snap.CeilingFt < threshold.MinCeilingFt
		if !wind && !visibility && !ceiling {
			continue
		}
		breaches = append(breaches, models.CheckpointBreach{
			CheckpointType:   cp,
			Location:         snap.Location,
			Conditions:       snap.Conditions,
			WindSpeedKts:     snap.WindSpeedKts,
			VisibilityMi:     snap.VisibilityMi,
			CeilingFt:        snap.CeilingFt,
			MaxWindSpeedKts:  threshold.MaxWindSpeedKts,
			MinVisibilityMi:  threshold.MinVisibilityMi,
			MinCeilingFt:     threshold.MinCeilingFt,
			WindBreach:       wind,
			VisibilityBreach: visibility,
			CeilingBreach:    ceiling,
		})
		failing = append(failing, describeBreach(cp, snap, threshold, wind, visibility, ceiling))
	}

	switch {
	case len(breaches) == 0:
		return s.finish(ctx, logger, result, store.WeatherStatusClear, ReasonAllClear, nil)
	case result.HoursUntilDeparture < s.horizonHours:
		return s.finish(ctx, logger, result, store.WeatherStatusAutoReschedule, "conflict: "+strings.Join(failing, "; "), breaches)
	default:
		return s.finish(ctx, logger, result, store.WeatherStatusAdvisory, "conflict: "+strings.Join(failing, "; "), breaches)
	}
}

// finish writes the status back to the flight row and fills the result. A
// failed write-back is logged and reflected in the reason but does not abort
// the flight's result.
func (s *classifyService) finish(ctx context.Context, logger *slog.Logger, result models.ClassificationResult, status, reason string, breaches []models.CheckpointBreach) models.ClassificationResult {
	result.WeatherStatus = status
	result.Reason = reason
	result.BreachedCheckpoints = breaches

	if err := s.store.Flights.UpdateWeatherStatus(ctx, result.FlightID, status); err != nil {
		logger.Error("Failed to write back weather status",
			slog.String("status", status),
			slog.String("error", err.Error()),
		)
	} else {
		logger.Debug("Classified flight", slog.String("status", status), slog.String("reason", reason))
	}
	return result
}

func (s *classifyService) lookupThreshold(ctx context.Context, flight *store.Flight) (*store.TrainingThreshold, string) {
	student, err := s.store.Roster.GetStudent(ctx, flight.StudentID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ReasonStudentNotFound
		}
		return nil, fmt.Sprintf("student lookup failed: %v", err)
	}
	threshold, err := s.store.Roster.GetThreshold(ctx, student.TrainingLevel)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ReasonThresholdNotFound
		}
		return nil, fmt.Sprintf("threshold lookup failed: %v", err)
	}
	return threshold, ""
}

// describeBreach renders one checkpoint's failing channels for the result
// reason, echoing observed values against their limits.
func describeBreach(checkpoint string, snap *store.WeatherSnapshot, threshold *store.TrainingThreshold, wind, visibility, ceiling bool) string {
	var parts []string
	if wind {
		parts = append(parts, fmt.Sprintf("wind %gkt > max %gkt", snap.WindSpeedKts, threshold.MaxWindSpeedKts))
	}
	if visibility {
		parts = append(parts, fmt.Sprintf("visibility %gmi < min %gmi", snap.VisibilityMi, threshold.MinVisibilityMi))
	}
	if ceiling {
		parts = append(parts, fmt.Sprintf("ceiling %gft < min %gft", *snap.CeilingFt, threshold.MinCeilingFt))
	}
	return checkpoint + ": " + strings.Join(parts, ", ")
}
