// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cavok-dev/cavok/internal/cavok-api/config"
	"github.com/cavok-dev/cavok/internal/cavok-api/models"
	"github.com/cavok-dev/cavok/internal/cavok-api/services"
	"github.com/cavok-dev/cavok/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	// No weather or ranker API keys: synthetic-only forecasts and a
	// not-configured ranker.
	cfg := &config.Config{
		Weather: config.WeatherConfig{Timeout: 5 * time.Second},
		Ranker:  config.RankerConfig{Timeout: 5 * time.Second},
		Pipeline: config.PipelineConfig{
			AutoAcceptConfidence:     80,
			RescheduleHorizonHours:   72,
			SearchWindowDays:         2,
			MinimumSpacingHours:      6,
			OperatingStartHourUTC:    6,
			OperatingEndHourUTC:      18,
			DurationToleranceMinutes: 5,
			MaxCandidates:            15,
			Budget:                   30 * time.Second,
			MaxParallelFlights:       4,
		},
	}

	handler := New(services.NewServices(st, cfg, logger), logger)
	ts := httptest.NewServer(handler.Routes())
	t.Cleanup(ts.Close)
	return ts, st
}

type world struct {
	student    *store.Student
	instructor *store.Instructor
	aircraft   *store.Aircraft
	flight     *store.Flight
}

func seedWorld(t *testing.T, st *store.Store) world {
	t.Helper()
	db := st.DB()

	student := &store.Student{Name: "Sam Rivera", TrainingLevel: store.TrainingLevelStudent}
	require.NoError(t, db.Create(student).Error)
	instructor := &store.Instructor{Name: "Alex Chen", Certifications: `["private"]`}
	require.NoError(t, db.Create(instructor).Error)
	aircraft := &store.Aircraft{TailNumber: "N123AB", Category: "single-engine", Available: true}
	require.NoError(t, db.Create(aircraft).Error)

	departure := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Hour)
	flight := &store.Flight{
		StudentID:     student.ID,
		InstructorID:  instructor.ID,
		AircraftID:    aircraft.ID,
		DepartureTime: departure,
		ArrivalTime:   departure.Add(time.Hour),
		Origin:        "KPAO",
		Destination:   "KSQL",
		Status:        store.FlightStatusScheduled,
		WeatherStatus: store.WeatherStatusUnknown,
	}
	require.NoError(t, st.Flights.Create(context.Background(), flight))

	return world{student: student, instructor: instructor, aircraft: aircraft, flight: flight}
}

type rpcEnvelope struct {
	Result        json.RawMessage `json:"result"`
	Error         string          `json:"error"`
	CorrelationID string          `json:"correlationId"`
}

func call(t *testing.T, ts *httptest.Server, method string, params any) (int, rpcEnvelope) {
	t.Helper()
	body := map[string]any{"method": method}
	if params != nil {
		body["params"] = params
	}
	encoded, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := ts.Client().Post(ts.URL+"/rpc", "application/json", bytes.NewReader(encoded))
	require.NoError(t, err)
	defer resp.Body.Close()

	var env rpcEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func decodeResult(t *testing.T, env rpcEnvelope, into any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Result, into))
}

func TestHealthEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	resp, err = ts.Client().Get(ts.URL + "/ready")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ready", string(body))
}

func TestRPCRejectsMalformedEnvelope(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := ts.Client().Post(ts.URL+"/rpc", "application/json", strings.NewReader("{nope"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var env rpcEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Contains(t, env.Error, "malformed request body")
	assert.True(t, strings.HasPrefix(env.CorrelationID, "rpc-run-"))
}

func TestRPCRequiresMethod(t *testing.T) {
	ts, _ := newTestServer(t)
	status, env := call(t, ts, "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "method is required", env.Error)
}

func TestRPCRejectsUnknownMethod(t *testing.T) {
	ts, _ := newTestServer(t)
	status, env := call(t, ts, "frobnicate", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, env.Error, `unknown method "frobnicate"`)
}

func TestWeatherPollRPC(t *testing.T) {
	ts, st := newTestServer(t)
	w := seedWorld(t, st)

	status, env := call(t, ts, "weatherPoll", models.WeatherPollParams{FlightIDs: []int64{w.flight.ID}})
	require.Equal(t, http.StatusOK, status, env.Error)

	var result models.WeatherPollResult
	decodeResult(t, env, &result)
	assert.Equal(t, 3, result.SnapshotsCreated)
	assert.Equal(t, 1, result.FlightsEvaluated)
	require.Len(t, result.Classifications, 1)
	assert.Equal(t, w.flight.ID, result.Classifications[0].FlightID)
	assert.Equal(t, store.WeatherStatusClear, result.Classifications[0].WeatherStatus)

	// The run id inside the result is the envelope's correlation id.
	assert.Equal(t, env.CorrelationID, result.CorrelationID)

	// A second poll serves the fresh snapshots from cache.
	status, env = call(t, ts, "weatherPoll", models.WeatherPollParams{FlightIDs: []int64{w.flight.ID}})
	require.Equal(t, http.StatusOK, status)
	decodeResult(t, env, &result)
	assert.Equal(t, 0, result.SnapshotsCreated)
	assert.Equal(t, 1, result.FlightsEvaluated)
}

func TestClassifyFlightsRPC(t *testing.T) {
	ts, st := newTestServer(t)
	w := seedWorld(t, st)

	// Without snapshots the flight classifies unknown.
	status, env := call(t, ts, "classifyFlights", models.ClassifyFlightsParams{FlightIDs: []int64{w.flight.ID}})
	require.Equal(t, http.StatusOK, status, env.Error)

	var result models.ClassifyFlightsResult
	decodeResult(t, env, &result)
	require.Len(t, result.Results, 1)
	assert.Equal(t, store.WeatherStatusUnknown, result.Results[0].WeatherStatus)
	assert.Equal(t, env.CorrelationID, result.CorrelationID)

	// After a poll the synthetic profile classifies clear.
	status, _ = call(t, ts, "weatherPoll", models.WeatherPollParams{FlightIDs: []int64{w.flight.ID}})
	require.Equal(t, http.StatusOK, status)

	status, env = call(t, ts, "classifyFlights", models.ClassifyFlightsParams{FlightIDs: []int64{w.flight.ID}})
	require.Equal(t, http.StatusOK, status)
	decodeResult(t, env, &result)
	require.Len(t, result.Results, 1)
	assert.Equal(t, store.WeatherStatusClear, result.Results[0].WeatherStatus)
}

func TestGenerateCandidateSlotsRPC(t *testing.T) {
	ts, st := newTestServer(t)
	w := seedWorld(t, st)

	status, env := call(t, ts, "generateCandidateSlots", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, env.Error, "flightId is required")

	status, env = call(t, ts, "generateCandidateSlots", models.GenerateCandidateSlotsParams{FlightID: w.flight.ID})
	require.Equal(t, http.StatusOK, status, env.Error)

	var set models.CandidateSet
	decodeResult(t, env, &set)
	assert.Equal(t, w.flight.ID, set.OriginalFlightID)
	assert.NotEmpty(t, set.CandidateSlots)
	assert.Equal(t, 0, set.CandidateSlots[0].SlotIndex)

	// An unknown flight is an empty set with a reason, not an error.
	status, env = call(t, ts, "generateCandidateSlots", models.GenerateCandidateSlotsParams{FlightID: 424242})
	require.Equal(t, http.StatusOK, status)
	decodeResult(t, env, &set)
	assert.Empty(t, set.CandidateSlots)
	assert.NotEmpty(t, set.Reason)
}

func TestGenerateRecommendationsRPCWithoutRanker(t *testing.T) {
	ts, st := newTestServer(t)
	w := seedWorld(t, st)

	status, env := call(t, ts, "generateCandidateSlots", models.GenerateCandidateSlotsParams{FlightID: w.flight.ID})
	require.Equal(t, http.StatusOK, status)
	var set models.CandidateSet
	decodeResult(t, env, &set)
	require.NotEmpty(t, set.CandidateSlots)

	status, env = call(t, ts, "generateRescheduleRecommendations", map[string]any{"candidateSlotsResult": set})
	require.Equal(t, http.StatusOK, status, env.Error)

	var ranked models.RankingResult
	decodeResult(t, env, &ranked)
	assert.Empty(t, ranked.Recommendations)
	assert.Equal(t, "ranker-not-configured", ranked.Error)
}

func TestRecordManagerDecisionRPC(t *testing.T) {
	ts, st := newTestServer(t)
	w := seedWorld(t, st)

	first := w.flight.DepartureTime.AddDate(0, 0, 1)
	recommendations := []models.Recommendation{
		{
			Rank: 1, CandidateIndex: 0,
			InstructorID: w.instructor.ID, Instructor: w.instructor.Name,
			AircraftID: w.aircraft.ID, Aircraft: w.aircraft.TailNumber,
			DepartureTime: first, ArrivalTime: first.Add(time.Hour),
			Confidence: 92, Rationale: "Same instructor, next day.",
		},
	}

	// Precondition violations are caller errors.
	status, env := call(t, ts, "recordManagerDecision", map[string]any{
		"flightId":           w.flight.ID,
		"decision":           "defer",
		"managerName":        "Dana Scott",
		"topRecommendations": recommendations,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, env.Error, "decision")

	// Accepting slot 0 creates the replacement flight.
	status, env = call(t, ts, "recordManagerDecision", map[string]any{
		"flightId":             w.flight.ID,
		"recommendedSlotIndex": 0,
		"decision":             "accept",
		"managerName":          "Dana Scott",
		"topRecommendations":   recommendations,
	})
	require.Equal(t, http.StatusOK, status, env.Error)

	var outcome models.DecisionOutcome
	decodeResult(t, env, &outcome)
	assert.Equal(t, store.ActionStatusAccepted, outcome.Status)
	require.NotNil(t, outcome.NewFlightID)

	// The audit trail is visible over RPC.
	status, env = call(t, ts, "getFlightRescheduleHistory", models.FlightHistoryParams{FlightID: w.flight.ID})
	require.Equal(t, http.StatusOK, status)

	var history models.FlightHistoryResult
	decodeResult(t, env, &history)
	assert.Equal(t, w.flight.ID, history.FlightID)
	require.Len(t, history.Entries, 1)
	assert.Equal(t, store.ActionTypeManualAccept, history.Entries[0].ActionType)
	assert.Equal(t, "Dana Scott", history.Entries[0].DecidedBy)

	// Unknown flights resolve to a sentinel outcome, not an HTTP error.
	status, env = call(t, ts, "recordManagerDecision", map[string]any{
		"flightId":             int64(424242),
		"recommendedSlotIndex": 0,
		"decision":             "accept",
		"managerName":          "Dana Scott",
		"topRecommendations":   recommendations,
	})
	require.Equal(t, http.StatusOK, status)
	decodeResult(t, env, &outcome)
	assert.Equal(t, int64(-1), outcome.ActionID)
}

func TestGetFlightRescheduleHistoryUnknownFlight(t *testing.T) {
	ts, _ := newTestServer(t)
	status, env := call(t, ts, "getFlightRescheduleHistory", models.FlightHistoryParams{FlightID: 424242})
	assert.Equal(t, http.StatusNotFound, status)
	assert.NotEmpty(t, env.Error)
}

func TestGetWeatherSnapshotsRPC(t *testing.T) {
	ts, st := newTestServer(t)
	w := seedWorld(t, st)

	snapshot := &store.WeatherSnapshot{
		FlightID:               w.flight.ID,
		CheckpointType:         store.CheckpointDeparture,
		Location:               "KPAO",
		ForecastTime:           w.flight.DepartureTime,
		WindSpeedKts:           12,
		VisibilityMi:           8,
		Conditions:             "Few clouds",
		ConfidenceHorizonHours: 24,
	}
	require.NoError(t, st.Snapshots.Append(context.Background(), snapshot))

	status, env := call(t, ts, "getWeatherSnapshots", models.WeatherSnapshotsParams{FlightID: w.flight.ID})
	require.Equal(t, http.StatusOK, status, env.Error)

	var result models.WeatherSnapshotsResult
	decodeResult(t, env, &result)
	assert.Equal(t, w.flight.ID, result.FlightID)
	assert.Equal(t, "KPAO", result.Origin)
	assert.Equal(t, "KSQL", result.Destination)
	require.Len(t, result.Snapshots, 1)
	assert.Equal(t, float64(12), result.Snapshots[0].WindSpeedKts)

	// Date filters accept bare days.
	today := snapshot.CreatedAt.UTC().Format("2006-01-02")
	status, env = call(t, ts, "getWeatherSnapshots", models.WeatherSnapshotsParams{
		FlightID:  w.flight.ID,
		StartDate: today,
		EndDate:   today,
	})
	require.Equal(t, http.StatusOK, status)
	decodeResult(t, env, &result)
	assert.Len(t, result.Snapshots, 1)

	status, env = call(t, ts, "getWeatherSnapshots", models.WeatherSnapshotsParams{
		FlightID:  w.flight.ID,
		StartDate: "not-a-date",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, env.Error, "startDate")

	status, env = call(t, ts, "getWeatherSnapshots", models.WeatherSnapshotsParams{FlightID: 424242})
	assert.Equal(t, http.StatusNotFound, status)
	assert.NotEmpty(t, env.Error)
}

func TestGetNotificationsRPC(t *testing.T) {
	ts, st := newTestServer(t)

	unread := &store.Notification{
		Type:    store.NotificationError,
		Message: "Weather service failure during run cron-run-1-abc",
	}
	require.NoError(t, st.Notifications.Create(context.Background(), unread))
	seen := &store.Notification{
		Type:    store.NotificationAutoRescheduled,
		Message: "Flight 3 auto-rescheduled",
		Read:    true,
	}
	require.NoError(t, st.Notifications.Create(context.Background(), seen))

	status, env := call(t, ts, "getNotifications", models.NotificationsParams{Limit: 10})
	require.Equal(t, http.StatusOK, status, env.Error)

	var result models.NotificationsResult
	decodeResult(t, env, &result)
	require.Len(t, result.Notifications, 1)
	assert.Equal(t, store.NotificationError, result.Notifications[0].Type)
	assert.Equal(t, "error", result.Notifications[0].Severity)
	assert.Contains(t, result.Notifications[0].Message, "cron-run-1-abc")
}

func TestGetCronRunsRPC(t *testing.T) {
	ts, st := newTestServer(t)

	status, env := call(t, ts, "getCronRuns", models.CronRunsParams{Status: "bogus"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, env.Error, "invalid status")

	run := &store.CronRun{
		CorrelationID: "cron-run-1-abc",
		Status:        store.RunStatusSuccess,
		StartedAt:     time.Now().UTC().Add(-time.Hour),
		FinishedAt:    time.Now().UTC().Add(-time.Hour).Add(2 * time.Second),
		DurationMs:    2000,
	}
	run.SetErrorDetails(nil)
	require.NoError(t, st.CronRuns.Create(context.Background(), run))

	status, env = call(t, ts, "getCronRuns", models.CronRunsParams{Limit: 10})
	require.Equal(t, http.StatusOK, status, env.Error)

	var result models.CronRunsResult
	decodeResult(t, env, &result)
	assert.Equal(t, int64(1), result.TotalCount)
	require.Len(t, result.Runs, 1)
	assert.Equal(t, "cron", result.Runs[0].Trigger)
	assert.Equal(t, store.RunStatusSuccess, result.Runs[0].Status)
}
