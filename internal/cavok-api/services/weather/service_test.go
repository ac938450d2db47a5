// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

package weather

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cavok-dev/cavok/internal/cavok-api/config"
	"github.com/cavok-dev/cavok/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testClient(baseURL string) *Client {
	return NewClient(config.WeatherConfig{
		APIKey:      "test-key",
		BaseURL:     baseURL,
		Timeout:     2 * time.Second,
		MaxRetries:  3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  4 * time.Millisecond,
		RateLimit:   1000,
		RateBurst:   1000,
	}, discardLogger())
}

func seedFlight(t *testing.T, st *store.Store, departure time.Time) *store.Flight {
	t.Helper()
	flight := &store.Flight{
		StudentID:     1,
		InstructorID:  1,
		AircraftID:    1,
		DepartureTime: departure,
		ArrivalTime:   departure.Add(90 * time.Minute),
		Origin:        "KPAO",
		Destination:   "KSQL",
		Status:        store.FlightStatusScheduled,
		WeatherStatus: store.WeatherStatusUnknown,
	}
	require.NoError(t, st.Flights.Create(context.Background(), flight))
	return flight
}

func forecastBody(bucket time.Time, windKph, visMiles float64, cloud int, conditions string) map[string]any {
	return map[string]any{
		"forecast": map[string]any{
			"forecastday": []map[string]any{{
				"date": bucket.UTC().Format("2006-01-02"),
				"hour": []map[string]any{{
					"time_epoch": bucket.Unix(),
					"wind_kph":   windKph,
					"vis_miles":  visMiles,
					"cloud":      cloud,
					"condition":  map[string]any{"text": conditions},
				}},
			}},
		},
	}
}

func TestFetchCheckpointProjectsRemoteForecast(t *testing.T) {
	st := newTestStore(t)
	departure := time.Now().UTC().Add(30 * time.Hour).Truncate(time.Hour)
	flight := seedFlight(t, st, departure)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "KPAO", r.URL.Query().Get("q"))
		assert.Equal(t, departure.Format("2006-01-02"), r.URL.Query().Get("dt"))
		w.Header().Set("ETag", `"rev-1"`)
		_ = json.NewEncoder(w).Encode(forecastBody(departure, 40.7, 6, 25, "Partly cloudy"))
	}))
	defer srv.Close()

	svc := NewService(st, testClient(srv.URL), discardLogger())
	result, err := svc.FetchCheckpoint(context.Background(), flight, store.CheckpointDeparture)
	require.NoError(t, err)

	assert.Equal(t, SourceRemote, result.Source)
	assert.Empty(t, result.DegradedReason)

	snap := result.Snapshot
	assert.Equal(t, flight.ID, snap.FlightID)
	assert.Equal(t, store.CheckpointDeparture, snap.CheckpointType)
	assert.Equal(t, "KPAO", snap.Location)
	assert.True(t, snap.ForecastTime.Equal(departure))
	assert.Equal(t, float64(22), snap.WindSpeedKts) // 40.7 kph -> 21.98 kt, rounded
	assert.Equal(t, float64(6), snap.VisibilityMi)
	require.NotNil(t, snap.CeilingFt)
	assert.Equal(t, float64(7500), *snap.CeilingFt) // 10000 - 25*100
	assert.Equal(t, "Partly cloudy", snap.Conditions)
	assert.Equal(t, 48, snap.ConfidenceHorizonHours) // 30h lead
	assert.Equal(t, `"rev-1"`, snap.ETag)
}

func TestFetchCheckpointNotModifiedServesCache(t *testing.T) {
	st := newTestStore(t)
	departure := time.Now().UTC().Add(12 * time.Hour).Truncate(time.Hour)
	flight := seedFlight(t, st, departure)

	prior := &store.WeatherSnapshot{
		FlightID:               flight.ID,
		CheckpointType:         store.CheckpointDeparture,
		Location:               "KPAO",
		ForecastTime:           departure,
		WindSpeedKts:           14,
		VisibilityMi:           8,
		Conditions:             "Clear",
		ConfidenceHorizonHours: 24,
		ETag:                   `"rev-7"`,
	}
	require.NoError(t, st.Snapshots.Append(context.Background(), prior))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `"rev-7"`, r.Header.Get("If-None-Match"))
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	svc := NewService(st, testClient(srv.URL), discardLogger())
	result, err := svc.FetchCheckpoint(context.Background(), flight, store.CheckpointDeparture)
	require.NoError(t, err)

	assert.Equal(t, SourceCache, result.Source)
	assert.Equal(t, prior.ID, result.Snapshot.ID)
	assert.Equal(t, float64(14), result.Snapshot.WindSpeedKts)
	assert.Equal(t, `"rev-7"`, result.Snapshot.ETag)
}

func TestFetchCheckpointNotModifiedRekeysOtherCheckpointPrior(t *testing.T) {
	st := newTestStore(t)
	departure := time.Now().UTC().Add(12 * time.Hour).Truncate(time.Hour)
	flight := seedFlight(t, st, departure)

	// The corridor checkpoint targets the same (origin, departure time) as
	// departure, so its conditional request revalidates against the
	// departure-typed row.
	ceiling := 7500.0
	prior := &store.WeatherSnapshot{
		FlightID:               flight.ID,
		CheckpointType:         store.CheckpointDeparture,
		Location:               "KPAO",
		ForecastTime:           departure,
		WindSpeedKts:           14,
		VisibilityMi:           8,
		CeilingFt:              &ceiling,
		Conditions:             "Partly cloudy",
		ConfidenceHorizonHours: 24,
		ETag:                   `"rev-7"`,
	}
	require.NoError(t, st.Snapshots.Append(context.Background(), prior))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `"rev-7"`, r.Header.Get("If-None-Match"))
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	svc := NewService(st, testClient(srv.URL), discardLogger())
	result, err := svc.FetchCheckpoint(context.Background(), flight, store.CheckpointCorridor)
	require.NoError(t, err)

	// The content is re-keyed onto a fresh corridor row instead of echoing
	// the departure-typed prior.
	assert.Equal(t, SourceRemote, result.Source)
	snap := result.Snapshot
	assert.Zero(t, snap.ID)
	assert.Equal(t, flight.ID, snap.FlightID)
	assert.Equal(t, store.CheckpointCorridor, snap.CheckpointType)
	assert.Equal(t, "KPAO", snap.Location)
	assert.True(t, snap.ForecastTime.Equal(departure))
	assert.Equal(t, float64(14), snap.WindSpeedKts)
	assert.Equal(t, float64(8), snap.VisibilityMi)
	require.NotNil(t, snap.CeilingFt)
	assert.Equal(t, float64(7500), *snap.CeilingFt)
	assert.Equal(t, "Partly cloudy", snap.Conditions)
	assert.Equal(t, `"rev-7"`, snap.ETag)

	// Once the corridor row is stored, the next revalidation serves it
	// directly without minting another.
	require.NoError(t, st.Snapshots.Append(context.Background(), snap))
	again, err := svc.FetchCheckpoint(context.Background(), flight, store.CheckpointCorridor)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, again.Source)
	assert.Equal(t, snap.ID, again.Snapshot.ID)
}

func TestFetchCheckpointNotModifiedRekeysOtherFlightPrior(t *testing.T) {
	st := newTestStore(t)
	departure := time.Now().UTC().Add(12 * time.Hour).Truncate(time.Hour)
	first := seedFlight(t, st, departure)
	second := seedFlight(t, st, departure)

	prior := &store.WeatherSnapshot{
		FlightID:               first.ID,
		CheckpointType:         store.CheckpointDeparture,
		Location:               "KPAO",
		ForecastTime:           departure,
		WindSpeedKts:           9,
		VisibilityMi:           10,
		Conditions:             "Clear",
		ConfidenceHorizonHours: 24,
		ETag:                   `"rev-2"`,
	}
	require.NoError(t, st.Snapshots.Append(context.Background(), prior))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `"rev-2"`, r.Header.Get("If-None-Match"))
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	svc := NewService(st, testClient(srv.URL), discardLogger())
	result, err := svc.FetchCheckpoint(context.Background(), second, store.CheckpointDeparture)
	require.NoError(t, err)

	assert.Equal(t, SourceRemote, result.Source)
	assert.Zero(t, result.Snapshot.ID)
	assert.Equal(t, second.ID, result.Snapshot.FlightID)
	assert.Equal(t, store.CheckpointDeparture, result.Snapshot.CheckpointType)
	assert.Equal(t, float64(9), result.Snapshot.WindSpeedKts)
	assert.Equal(t, `"rev-2"`, result.Snapshot.ETag)
}

func TestFetchCheckpointRetriesTransientStatuses(t *testing.T) {
	st := newTestStore(t)
	departure := time.Now().UTC().Add(10 * time.Hour).Truncate(time.Hour)
	flight := seedFlight(t, st, departure)

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(forecastBody(departure, 10, 9, 0, "Clear"))
	}))
	defer srv.Close()

	svc := NewService(st, testClient(srv.URL), discardLogger())
	result, err := svc.FetchCheckpoint(context.Background(), flight, store.CheckpointDeparture)
	require.NoError(t, err)

	assert.Equal(t, int32(3), requests.Load())
	assert.Equal(t, SourceRemote, result.Source)
	assert.Nil(t, result.Snapshot.CeilingFt) // cloud 0 -> no ceiling
}

func TestFetchCheckpointClientErrorDoesNotRetry(t *testing.T) {
	st := newTestStore(t)
	departure := time.Now().UTC().Add(10 * time.Hour).Truncate(time.Hour)
	flight := seedFlight(t, st, departure)

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "bad location", http.StatusBadRequest)
	}))
	defer srv.Close()

	svc := NewService(st, testClient(srv.URL), discardLogger())
	result, err := svc.FetchCheckpoint(context.Background(), flight, store.CheckpointDeparture)
	require.NoError(t, err)

	assert.Equal(t, int32(1), requests.Load())
	assert.Equal(t, SourceSynthetic, result.Source)
	assert.Contains(t, result.DegradedReason, "status 400")
}

func TestFetchCheckpointDegradesToCachedSnapshot(t *testing.T) {
	st := newTestStore(t)
	departure := time.Now().UTC().Add(10 * time.Hour).Truncate(time.Hour)
	flight := seedFlight(t, st, departure)

	prior := &store.WeatherSnapshot{
		FlightID:       flight.ID,
		CheckpointType: store.CheckpointArrival,
		Location:       "KSQL",
		ForecastTime:   departure,
		WindSpeedKts:   11,
		VisibilityMi:   9,
		Conditions:     "Clear",
	}
	require.NoError(t, st.Snapshots.Append(context.Background(), prior))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := NewService(st, testClient(srv.URL), discardLogger())
	result, err := svc.FetchCheckpoint(context.Background(), flight, store.CheckpointArrival)
	require.NoError(t, err)

	assert.Equal(t, SourceCache, result.Source)
	assert.Equal(t, prior.ID, result.Snapshot.ID)
	assert.NotEmpty(t, result.DegradedReason)
	assert.GreaterOrEqual(t, result.StalenessHours, float64(0))
}

func TestFetchCheckpointSyntheticWhenNotConfigured(t *testing.T) {
	st := newTestStore(t)
	departure := time.Now().UTC().Add(10 * time.Hour).Truncate(time.Hour)
	flight := seedFlight(t, st, departure)

	svc := NewService(st, nil, discardLogger())
	result, err := svc.FetchCheckpoint(context.Background(), flight, store.CheckpointDeparture)
	require.NoError(t, err)

	assert.Equal(t, SourceSynthetic, result.Source)
	assert.Empty(t, result.DegradedReason)
	assert.Equal(t, float64(8), result.Snapshot.WindSpeedKts)
	assert.Equal(t, float64(10), result.Snapshot.VisibilityMi)
	assert.Nil(t, result.Snapshot.CeilingFt)
	assert.Equal(t, "Clear", result.Snapshot.Conditions)
	assert.Equal(t, 24, result.Snapshot.ConfidenceHorizonHours)
}

func TestFetchCheckpointUnknownType(t *testing.T) {
	st := newTestStore(t)
	flight := seedFlight(t, st, time.Now().UTC().Add(time.Hour).Truncate(time.Hour))

	svc := NewService(st, nil, discardLogger())
	_, err := svc.FetchCheckpoint(context.Background(), flight, "approach")
	assert.ErrorIs(t, err, ErrUnknownCheckpoint)
}

func TestSyntheticFallbackCoversUnknownRoutes(t *testing.T) {
	profiles := DefaultSyntheticProfiles()
	profile, ok := profiles.Lookup("KXYZ", "KABC", store.CheckpointCorridor)
	require.True(t, ok)
	assert.Equal(t, float64(7), profile.WindSpeedKts)
	assert.Equal(t, "Clear", profile.Conditions)
}

func TestConfidenceHorizonBuckets(t *testing.T) {
	tests := []struct {
		lead time.Duration
		want int
	}{
		{23 * time.Hour, 24},
		{24 * time.Hour, 48}, // boundary jumps to the higher bucket
		{71 * time.Hour, 48},
		{72 * time.Hour, 72},
		{200 * time.Hour, 72},
		{-1 * time.Hour, 24},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, confidenceHorizonHours(tt.lead), "lead %s", tt.lead)
	}
}

func TestCeilingFromCloudCover(t *testing.T) {
	assert.Nil(t, ceilingFromCloudCover(0))
	assert.Nil(t, ceilingFromCloudCover(9))
	require.NotNil(t, ceilingFromCloudCover(10))
	assert.Equal(t, float64(9000), *ceilingFromCloudCover(10))
	assert.Equal(t, float64(0), *ceilingFromCloudCover(100))
}

func TestKnotsFromKph(t *testing.T) {
	assert.Equal(t, float64(9), knotsFromKph(16.9))
	assert.Equal(t, float64(22), knotsFromKph(40.7))
	assert.Equal(t, float64(0), knotsFromKph(0))
}

func TestListSnapshotsBuildsViews(t *testing.T) {
	st := newTestStore(t)
	departure := time.Now().UTC().Add(10 * time.Hour).Truncate(time.Hour)
	flight := seedFlight(t, st, departure)

	for _, cp := range []string{store.CheckpointDeparture, store.CheckpointArrival} {
		require.NoError(t, st.Snapshots.Append(context.Background(), &store.WeatherSnapshot{
			FlightID:       flight.ID,
			CheckpointType: cp,
			Location:       "KPAO",
			ForecastTime:   departure,
			WindSpeedKts:   9,
			VisibilityMi:   10,
		}))
	}

	svc := NewService(st, nil, discardLogger())
	result, err := svc.ListSnapshots(context.Background(), flight.ID, store.CheckpointDeparture, nil, nil, 10)
	require.NoError(t, err)

	assert.Equal(t, flight.ID, result.FlightID)
	assert.Equal(t, "KPAO", result.Origin)
	assert.Equal(t, "KSQL", result.Destination)
	require.Len(t, result.Snapshots, 1)
	assert.Equal(t, store.CheckpointDeparture, result.Snapshots[0].CheckpointType)
	assert.Equal(t, store.StalenessFresh, result.Snapshots[0].Staleness)
	assert.False(t, result.Snapshots[0].Warning)
}

func TestListSnapshotsUnknownFlight(t *testing.T) {
	st := newTestStore(t)
	svc := NewService(st, nil, discardLogger())
	_, err := svc.ListSnapshots(context.Background(), 999, "", nil, nil, 10)
	assert.ErrorIs(t, err, ErrFlightNotFound)
}
