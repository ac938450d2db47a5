// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cavok-dev/cavok/internal/cavok-api/models"
	"github.com/cavok-dev/cavok/internal/logging"
	"github.com/cavok-dev/cavok/internal/metrics"
	"github.com/cavok-dev/cavok/internal/store"
)

type weatherService struct {
	store    *store.Store
	client   *Client
	profiles SyntheticProfiles
	logger   *slog.Logger
}

var _ Service = (*weatherService)(nil)

// NewService creates a new forecast gateway service. A nil client puts the
// gateway into synthetic-only operation.
func NewService(st *store.Store, client *Client, logger *slog.Logger) Service {
	return &weatherService{
		store:    st,
		client:   client,
		profiles: DefaultSyntheticProfiles(),
		logger:   logger,
	}
}

// resolveCheckpoint maps a checkpoint type onto the location and instant the
// forecast targets. The corridor checkpoint tracks the origin at departure
// time.
func resolveCheckpoint(flight *store.Flight, checkpointType string) (string, time.Time, error) {
	switch checkpointType {
	case store.CheckpointDeparture:
		return flight.Origin, flight.DepartureTime, nil
	case store.CheckpointArrival:
		return flight.Destination, flight.ArrivalTime, nil
	case store.CheckpointCorridor:
		return flight.Origin, flight.DepartureTime, nil
	default:
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrUnknownCheckpoint, checkpointType)
	}
}

func (s *weatherService) FetchCheckpoint(ctx context.Context, flight *store.Flight, checkpointType string) (*Result, error) {
	location, instant, err := resolveCheckpoint(flight, checkpointType)
	if err != nil {
		return nil, err
	}
	target := instant.UTC().Truncate(time.Hour)

	logger := s.logger.With(
		slog.Int64("flight_id", flight.ID),
		slog.String("checkpoint", checkpointType),
		slog.String("location", location),
	)

	var degraded string
	if s.client != nil {
		result, err := s.fetchRemote(ctx, flight, checkpointType, location, target)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		degraded = err.Error()
		logger.Warn("Upstream forecast fetch failed, degrading", slog.String("error", degraded))
	}

	now := time.Now().UTC()

	cached, err := s.store.Snapshots.LatestForFlightCheckpoint(ctx, flight.ID, checkpointType)
	if err == nil {
		level, hours, _ := cached.Staleness(now)
		logger.Debug("Serving cached forecast",
			slog.String("staleness", level),
			slog.Float64("staleness_hours", hours),
		)
		metrics.ForecastFetchesTotal.WithLabelValues(SourceCache).Inc()
		return &Result{Snapshot: cached, Source: SourceCache, StalenessHours: hours, DegradedReason: degraded}, nil
	}
	if !errors.Is(err, store.ErrRecordNotFound) {
		return nil, err
	}

	if profile, ok := s.profiles.Lookup(flight.Origin, flight.Destination, checkpointType); ok {
		logger.Debug("Serving synthetic forecast")
		metrics.ForecastFetchesTotal.WithLabelValues(SourceSynthetic).Inc()
		snapshot := profile.Snapshot(flight.ID, checkpointType, location, target, now)
		snapshot.CorrelationID = logging.CorrelationID(ctx)
		return &Result{Snapshot: snapshot, Source: SourceSynthetic, DegradedReason: degraded}, nil
	}

	return nil, fmt.Errorf("%w: flight %d checkpoint %s", ErrNoForecastAvailable, flight.ID, checkpointType)
}

// fetchRemote performs the conditional upstream fetch and projects the
// response into an unsaved snapshot. 304 answers are served from the
// snapshot that supplied the revalidation token; when that snapshot belongs
// to another flight or checkpoint, its content is re-keyed so the requesting
// checkpoint still gets its own row.
func (s *weatherService) fetchRemote(ctx context.Context, flight *store.Flight, checkpointType, location string, target time.Time) (*Result, error) {
	prior, err := s.revalidationPrior(ctx, flight.ID, checkpointType, location, target)
	if err != nil {
		return nil, err
	}
	var etag string
	if prior != nil {
		etag = prior.ETag
	}

	doc, respETag, notModified, err := s.client.FetchForecastDay(ctx, location, target, etag)
	if err != nil {
		return nil, err
	}

	if notModified {
		if prior == nil {
			return nil, ErrRevalidationMiss
		}
		if prior.FlightID == flight.ID && prior.CheckpointType == checkpointType {
			_, hours, _ := prior.Staleness(time.Now().UTC())
			metrics.ForecastFetchesTotal.WithLabelValues(SourceCache).Inc()
			return &Result{Snapshot: prior, Source: SourceCache, StalenessHours: hours}, nil
		}
		metrics.ForecastFetchesTotal.WithLabelValues(SourceRemote).Inc()
		return &Result{
			Snapshot: rekeySnapshot(prior, flight.ID, checkpointType, logging.CorrelationID(ctx)),
			Source:   SourceRemote,
		}, nil
	}

	hour, ok := doc.hourBucket(target)
	if !ok {
		return nil, fmt.Errorf("%w: no hour bucket for %s at %s", ErrMalformedForecast, location, target.Format(time.RFC3339))
	}

	snapshot := &store.WeatherSnapshot{
		FlightID:               flight.ID,
		CheckpointType:         checkpointType,
		Location:               location,
		ForecastTime:           target,
		WindSpeedKts:           knotsFromKph(hour.WindKph),
		VisibilityMi:           hour.VisMiles,
		CeilingFt:              ceilingFromCloudCover(hour.Cloud),
		Conditions:             hour.Condition.Text,
		ConfidenceHorizonHours: confidenceHorizonHours(time.Until(target)),
		CorrelationID:          logging.CorrelationID(ctx),
		ETag:                   respETag,
	}
	metrics.ForecastFetchesTotal.WithLabelValues(SourceRemote).Inc()
	return &Result{Snapshot: snapshot, Source: SourceRemote}, nil
}

// revalidationPrior picks the snapshot whose ETag conditions the upstream
// request: the requesting checkpoint's own latest row when it still targets
// this (location, forecast time), else the newest row any checkpoint stored
// for that pair, so checkpoints sharing an upstream request revalidate
// instead of refetching. A nil return means an unconditional fetch.
func (s *weatherService) revalidationPrior(ctx context.Context, flightID int64, checkpointType, location string, target time.Time) (*store.WeatherSnapshot, error) {
	own, err := s.store.Snapshots.LatestForFlightCheckpoint(ctx, flightID, checkpointType)
	switch {
	case err == nil:
		if own.Location == location && own.ForecastTime.Equal(target) {
			return own, nil
		}
	case !errors.Is(err, store.ErrRecordNotFound):
		return nil, err
	}

	shared, err := s.store.Snapshots.LatestForLocationForecast(ctx, location, target)
	switch {
	case err == nil:
		return shared, nil
	case errors.Is(err, store.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, err
	}
}

// rekeySnapshot copies revalidated forecast content onto an unsaved snapshot
// for the requesting flight and checkpoint.
func rekeySnapshot(prior *store.WeatherSnapshot, flightID int64, checkpointType, correlationID string) *store.WeatherSnapshot {
	var ceiling *float64
	if prior.CeilingFt != nil {
		c := *prior.CeilingFt
		ceiling = &c
	}
	return &store.WeatherSnapshot{
		FlightID:               flightID,
		CheckpointType:         checkpointType,
		Location:               prior.Location,
		ForecastTime:           prior.ForecastTime,
		WindSpeedKts:           prior.WindSpeedKts,
		VisibilityMi:           prior.VisibilityMi,
		CeilingFt:              ceiling,
		Conditions:             prior.Conditions,
		ConfidenceHorizonHours: confidenceHorizonHours(time.Until(prior.ForecastTime)),
		CorrelationID:          correlationID,
		ETag:                   prior.ETag,
	}
}

func (s *weatherService) ListSnapshots(ctx context.Context, flightID int64, checkpointType string, from, to *time.Time, limit int) (*models.WeatherSnapshotsResult, error) {
	flight, err := s.store.Flights.GetByID(ctx, flightID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrFlightNotFound, flightID)
		}
		return nil, err
	}

	query := store.SnapshotQuery{
		FlightID:       flightID,
		CheckpointType: checkpointType,
		Limit:          limit,
	}
	if from != nil {
		query.From = *from
	}
	if to != nil {
		query.To = *to
	}

	snapshots, err := s.store.Snapshots.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	views := make([]models.SnapshotView, 0, len(snapshots))
	for i := range snapshots {
		views = append(views, SnapshotView(&snapshots[i], now))
	}

	return &models.WeatherSnapshotsResult{
		FlightID:      flight.ID,
		Origin:        flight.Origin,
		Destination:   flight.Destination,
		DepartureTime: flight.DepartureTime,
		Snapshots:     views,
	}, nil
}

// SnapshotView projects a stored snapshot into its wire form with staleness
// derived at the given instant.
func SnapshotView(s *store.WeatherSnapshot, now time.Time) models.SnapshotView {
	level, hours, warning := s.Staleness(now)
	return models.SnapshotView{
		ID:                     s.ID,
		FlightID:               s.FlightID,
		CheckpointType:         s.CheckpointType,
		Location:               s.Location,
		ForecastTime:           s.ForecastTime,
		WindSpeedKts:           s.WindSpeedKts,
		VisibilityMi:           s.VisibilityMi,
		CeilingFt:              s.CeilingFt,
		Conditions:             s.Conditions,
		ConfidenceHorizonHours: s.ConfidenceHorizonHours,
		CorrelationID:          s.CorrelationID,
		CreatedAt:              s.CreatedAt,
		Staleness:              level,
		StalenessHours:         hours,
		Warning:                warning,
	}
}

// knotsFromKph converts wind speed to knots, rounded to the nearest knot.
func knotsFromKph(kph float64) float64 {
	return math.Round(kph * 0.539957)
}

// ceilingFromCloudCover derives a ceiling from percent cloud cover: under
// 10% there is no ceiling.
func ceilingFromCloudCover(cover int) *float64 {
	if cover < 10 {
		return nil
	}
	c := 10000 - float64(cover)*100
	return &c
}

// confidenceHorizonHours buckets forecast lead time into usability windows.
func confidenceHorizonHours(lead time.Duration) int {
	switch {
	case lead < 24*time.Hour:
		return 24
	case lead < 72*time.Hour:
		return 48
	default:
		return 72
	}
}
