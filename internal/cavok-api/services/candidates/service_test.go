// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

package candidates

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cavok-dev/cavok/internal/cavok-api/config"
	"github.com/cavok-dev/cavok/internal/store"
)

func testConfig() config.PipelineConfig {
	return config.PipelineConfig{
		AutoAcceptConfidence:     80,
		RescheduleHorizonHours:   72,
		SearchWindowDays:         2,
		MinimumSpacingHours:      6,
		OperatingStartHourUTC:    6,
		OperatingEndHourUTC:      18,
		DurationToleranceMinutes: 5,
		MaxCandidates:            15,
	}
}

func newTestService(t *testing.T, cfg config.PipelineConfig) (Service, *store.Store) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return NewService(st, cfg, logger), st
}

// seedRoster creates one private-level student, a certified and an
// uncertified instructor, and a two-aircraft fleet of different categories.
func seedRoster(t *testing.T, st *store.Store) (student *store.Student, certified, uncertified *store.Instructor, fleet []*store.Aircraft) {
	t.Helper()
	db := st.DB()

	student = &store.Student{Name: "Sam Rivera", TrainingLevel: store.TrainingLevelPrivate}
	require.NoError(t, db.Create(student).Error)

	certified = &store.Instructor{Name: "Alex Chen", Certifications: `["private","instrument"]`}
	require.NoError(t, db.Create(certified).Error)
	uncertified = &store.Instructor{Name: "Robin Diaz", Certifications: `[]`}
	require.NoError(t, db.Create(uncertified).Error)

	a1 := &store.Aircraft{TailNumber: "N123AB", Category: "single-engine", Available: true}
	a2 := &store.Aircraft{TailNumber: "N456CD", Category: "light-sport", Available: true}
	require.NoError(t, db.Create(a1).Error)
	require.NoError(t, db.Create(a2).Error)
	return student, certified, uncertified, []*store.Aircraft{a1, a2}
}

// originalDeparture picks a deterministic slot two days out at 12:00 UTC so
// every same-day morning slot is still in the future.
func originalDeparture() time.Time {
	return startOfDayUTC(time.Now().UTC().AddDate(0, 0, 2)).Add(12 * time.Hour)
}

func seedOriginalFlight(t *testing.T, st *store.Store, studentID, instructorID, aircraftID int64) *store.Flight {
	t.Helper()
	departure := originalDeparture()
	flight := &store.Flight{
		StudentID:     studentID,
		InstructorID:  instructorID,
		AircraftID:    aircraftID,
		DepartureTime: departure,
		ArrivalTime:   departure.Add(time.Hour),
		Origin:        "KPAO",
		Destination:   "KSQL",
		Status:        store.FlightStatusScheduled,
		WeatherStatus: store.WeatherStatusAutoReschedule,
	}
	require.NoError(t, st.Flights.Create(context.Background(), flight))
	return flight
}

func TestScoreSlot(t *testing.T) {
	original := time.Date(2026, 9, 7, 14, 0, 0, 0, time.UTC) // a Monday

	tests := []struct {
		name     string
		slot     time.Time
		duration int
		want     int
	}{
		{"same day close hour", time.Date(2026, 9, 7, 15, 0, 0, 0, time.UTC), 90, 100},
		{"next day same hour", time.Date(2026, 9, 8, 14, 0, 0, 0, time.UTC), 90, 85},
		{"next day three hours off", time.Date(2026, 9, 8, 17, 0, 0, 0, time.UTC), 90, 75},
		{"three days out", time.Date(2026, 9, 10, 14, 0, 0, 0, time.UTC), 90, 65},
		{"five days out", time.Date(2026, 9, 12, 14, 0, 0, 0, time.UTC), 90, 45},
		{"week out same weekday", time.Date(2026, 9, 14, 14, 0, 0, 0, time.UTC), 90, 30},
		{"six days out evening", time.Date(2026, 9, 13, 20, 0, 0, 0, time.UTC), 90, 5},
		{"duration inside tolerance", time.Date(2026, 9, 7, 15, 0, 0, 0, time.UTC), 93, 100},
		{"duration beyond tolerance", time.Date(2026, 9, 7, 15, 0, 0, 0, time.UTC), 120, 90},
		{"next day small hours", time.Date(2026, 9, 8, 1, 0, 0, 0, time.UTC), 90, 65},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scoreSlot(original, 90, tt.slot, tt.duration, 5))
		})
	}
}

func TestScoreSlotHourDeltaWrapsMidnight(t *testing.T) {
	original := time.Date(2026, 9, 7, 23, 0, 0, 0, time.UTC)
	slot := time.Date(2026, 9, 8, 1, 0, 0, 0, time.UTC)

	// 23:00 to 01:00 is two hours apart around midnight, not twenty-two.
	assert.Equal(t, 85, scoreSlot(original, 90, slot, 90, 5))
}

func TestDayOffset(t *testing.T) {
	a := time.Date(2026, 9, 7, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, dayOffset(a, a))
	assert.Equal(t, 1, dayOffset(a, time.Date(2026, 9, 8, 1, 0, 0, 0, time.UTC)))
	assert.Equal(t, 6, dayOffset(time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC), time.Date(2026, 9, 13, 23, 59, 0, 0, time.UTC)))
}

func TestSubtractBusy(t *testing.T) {
	day := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	at := func(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }
	window := interval{Start: at(10, 0), End: at(18, 0)}

	busy := []interval{
		{Start: at(9, 0), End: at(11, 0)},
		{Start: at(12, 0), End: at(13, 0)},
		{Start: at(17, 30), End: at(19, 0)},
	}
	free := subtractBusy(window, busy)
	require.Len(t, free, 2)
	assert.True(t, free[0].Start.Equal(at(11, 0)) && free[0].End.Equal(at(12, 0)))
	assert.True(t, free[1].Start.Equal(at(13, 0)) && free[1].End.Equal(at(17, 30)))

	assert.Empty(t, subtractBusy(window, []interval{{Start: at(8, 0), End: at(20, 0)}}))

	whole := subtractBusy(window, nil)
	require.Len(t, whole, 1)
	assert.True(t, whole[0].Start.Equal(window.Start) && whole[0].End.Equal(window.End))
}

func TestCertificationAllows(t *testing.T) {
	assert.True(t, certificationAllows(store.TrainingLevelStudent, nil))
	assert.True(t, certificationAllows(store.TrainingLevelPrivate, []string{"private"}))
	assert.False(t, certificationAllows(store.TrainingLevelPrivate, []string{"instrument"}))
	assert.True(t, certificationAllows(store.TrainingLevelInstrument, []string{"instrument"}))
	assert.False(t, certificationAllows(store.TrainingLevelInstrument, []string{"private"}))
	assert.False(t, certificationAllows("commercial", []string{"private", "instrument"}))
}

func TestGenerateProducesConstrainedSortedCandidates(t *testing.T) {
	svc, st := newTestService(t, testConfig())
	student, certified, uncertified, fleet := seedRoster(t, st)
	flight := seedOriginalFlight(t, st, student.ID, certified.ID, fleet[0].ID)

	set, err := svc.Generate(context.Background(), flight.ID)
	require.NoError(t, err)

	assert.Equal(t, flight.ID, set.OriginalFlightID)
	assert.Equal(t, 60, set.DurationMinutes)
	require.NotEmpty(t, set.CandidateSlots)
	assert.LessOrEqual(t, len(set.CandidateSlots), 15)
	assert.Empty(t, set.Reason)

	seen := make(map[string]bool)
	for i, slot := range set.CandidateSlots {
		assert.Equal(t, i, slot.SlotIndex)
		if i > 0 {
			prev := set.CandidateSlots[i-1]
			better := prev.Confidence > slot.Confidence ||
				(prev.Confidence == slot.Confidence && !prev.DepartureTime.After(slot.DepartureTime))
			assert.True(t, better, "slots must sort by (-confidence, departure)")
		}

		assert.NotEqual(t, uncertified.ID, slot.InstructorID, "uncertified instructor must be gated out")

		spacing := slot.DepartureTime.Sub(flight.DepartureTime)
		if spacing < 0 {
			spacing = -spacing
		}
		assert.GreaterOrEqual(t, spacing, 6*time.Hour)

		assert.GreaterOrEqual(t, slot.DepartureTime.UTC().Hour(), 6)
		assert.LessOrEqual(t, slot.ArrivalTime.UTC().Hour(), 18)
		assert.False(t, slot.DepartureTime.Before(set.SearchWindowStart))
		assert.False(t, slot.ArrivalTime.After(set.SearchWindowEnd))

		assert.True(t, slot.Flags.InstructorAvailable && slot.Flags.AircraftAvailable &&
			slot.Flags.CertificationValid && slot.Flags.WithinTimeWindow && slot.Flags.MinimumSpacingMet)

		if slot.AircraftCategory != "single-engine" {
			assert.Contains(t, slot.Notes, "Alternative aircraft category")
		} else {
			assert.Empty(t, slot.Notes)
		}

		key := fmt.Sprintf("%d|%d|%d", slot.InstructorID, slot.AircraftID, slot.DepartureTime.Unix())
		assert.False(t, seen[key], "duplicate (instructor, aircraft, departure) triple")
		seen[key] = true
	}
}

func TestGenerateHonorsSpacingBoundary(t *testing.T) {
	cfg := testConfig()
	cfg.MaxCandidates = 200 // enumerate the full window so the boundary slot is reached
	svc, st := newTestService(t, cfg)
	student, certified, _, fleet := seedRoster(t, st)
	flight := seedOriginalFlight(t, st, student.ID, certified.ID, fleet[0].ID)

	set, err := svc.Generate(context.Background(), flight.ID)
	require.NoError(t, err)

	// The original departs at 12:00; 06:00 the same day is exactly six hours
	// away and must be offered.
	sixHoursBefore := flight.DepartureTime.Add(-6 * time.Hour)
	found := false
	for _, slot := range set.CandidateSlots {
		if slot.DepartureTime.Equal(sixHoursBefore) {
			found = true
		}
		delta := slot.DepartureTime.Sub(flight.DepartureTime)
		if delta < 0 {
			delta = -delta
		}
		assert.GreaterOrEqual(t, delta, 6*time.Hour)
	}
	assert.True(t, found, "slot exactly at the spacing boundary must pass")
}

func TestGenerateCapsAtMaxCandidates(t *testing.T) {
	cfg := testConfig()
	cfg.MaxCandidates = 5
	svc, st := newTestService(t, cfg)
	student, certified, _, fleet := seedRoster(t, st)
	flight := seedOriginalFlight(t, st, student.ID, certified.ID, fleet[0].ID)

	set, err := svc.Generate(context.Background(), flight.ID)
	require.NoError(t, err)
	assert.Len(t, set.CandidateSlots, 5)
}

func TestGenerateSkipsCommittedAircraft(t *testing.T) {
	svc, st := newTestService(t, testConfig())
	student, certified, _, fleet := seedRoster(t, st)
	flight := seedOriginalFlight(t, st, student.ID, certified.ID, fleet[0].ID)

	// Block the second aircraft for the entire search window with another
	// student's committed flight.
	other := &store.Flight{
		StudentID:     student.ID,
		InstructorID:  certified.ID + 100, // unrelated instructor
		AircraftID:    fleet[1].ID,
		DepartureTime: flight.DepartureTime.AddDate(0, 0, -3),
		ArrivalTime:   flight.DepartureTime.AddDate(0, 0, 3),
		Origin:        "KSQL",
		Destination:   "KPAO",
		Status:        store.FlightStatusScheduled,
		WeatherStatus: store.WeatherStatusClear,
	}
	require.NoError(t, st.Flights.Create(context.Background(), other))

	set, err := svc.Generate(context.Background(), flight.ID)
	require.NoError(t, err)
	require.NotEmpty(t, set.CandidateSlots)
	for _, slot := range set.CandidateSlots {
		assert.Equal(t, fleet[0].ID, slot.AircraftID)
	}
}

func TestGenerateUnknownFlight(t *testing.T) {
	svc, _ := newTestService(t, testConfig())

	set, err := svc.Generate(context.Background(), 9999)
	require.NoError(t, err)
	assert.Equal(t, int64(9999), set.OriginalFlightID)
	assert.Empty(t, set.CandidateSlots)
	assert.NotEmpty(t, set.Reason)
}

func TestGenerateNoAvailableAircraft(t *testing.T) {
	svc, st := newTestService(t, testConfig())
	student, certified, _, fleet := seedRoster(t, st)
	for _, a := range fleet {
		require.NoError(t, st.DB().Model(a).Update("available", false).Error)
	}
	flight := seedOriginalFlight(t, st, student.ID, certified.ID, fleet[0].ID)

	set, err := svc.Generate(context.Background(), flight.ID)
	require.NoError(t, err)
	assert.Empty(t, set.CandidateSlots)
	assert.Equal(t, "no available aircraft", set.Reason)
}
