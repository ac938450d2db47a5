// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

package candidates

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/cavok-dev/cavok/internal/cavok-api/config"
	"github.com/cavok-dev/cavok/internal/cavok-api/models"
	"github.com/cavok-dev/cavok/internal/store"
)

type candidatesService struct {
	store  *store.Store
	cfg    config.PipelineConfig
	logger *slog.Logger
}

var _ Service = (*candidatesService)(nil)

// NewService creates a new candidate generator service.
func NewService(st *store.Store, cfg config.PipelineConfig, logger *slog.Logger) Service {
	return &candidatesService{store: st, cfg: cfg, logger: logger}
}

func (s *candidatesService) Generate(ctx context.Context, flightID int64) (*models.CandidateSet, error) {
	detail, err := s.store.Flights.GetDetailByID(ctx, flightID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return &models.CandidateSet{
				OriginalFlightID: flightID,
				CandidateSlots:   []models.CandidateSlot{},
				Reason:           err.Error(),
			}, nil
		}
		return nil, err
	}

	now := time.Now().UTC()
	original := detail.DepartureTime.UTC()
	durationMin := detail.DurationMinutes()
	duration := time.Duration(durationMin) * time.Minute
	windowStart := original.AddDate(0, 0, -s.cfg.SearchWindowDays)
	windowEnd := original.AddDate(0, 0, s.cfg.SearchWindowDays)
	minSpacing := time.Duration(s.cfg.MinimumSpacingHours) * time.Hour

	set := &models.CandidateSet{
		OriginalFlightID:      detail.ID,
		OriginalDepartureTime: detail.DepartureTime,
		DurationMinutes:       durationMin,
		SearchWindowStart:     windowStart,
		SearchWindowEnd:       windowEnd,
		CandidateSlots:        []models.CandidateSlot{},
	}

	instructors, err := s.store.Roster.ListInstructors(ctx)
	if err != nil {
		return nil, err
	}
	fleet, err := s.store.Roster.ListAvailableAircraft(ctx)
	if err != nil {
		return nil, err
	}
	if len(fleet) == 0 {
		set.Reason = "no available aircraft"
		return set, nil
	}

	// Aircraft commitments are shared across instructors; load them once.
	fleetBusy := make(map[int64][]interval, len(fleet))
	for i := range fleet {
		committed, err := s.store.Flights.ListCommittedForAircraft(ctx, fleet[i].ID, windowStart, windowEnd)
		if err != nil {
			return nil, err
		}
		fleetBusy[fleet[i].ID] = busyIntervals(committed)
	}

	// Slots in the past cannot be flown; the search starts at now even when
	// the window opens earlier.
	searchFrom := windowStart
	if now.After(searchFrom) {
		searchFrom = now
	}

search:
	for i := range instructors {
		instructor := &instructors[i]
		if !certificationAllows(detail.TrainingLevel, instructor.CertificationList()) {
			continue
		}
		committed, err := s.store.Flights.ListCommittedForInstructor(ctx, instructor.ID, windowStart, windowEnd)
		if err != nil {
			return nil, err
		}
		instructorBusy := busyIntervals(committed)

		for day := startOfDayUTC(searchFrom); day.Before(windowEnd); day = day.AddDate(0, 0, 1) {
			operating := interval{
				Start: day.Add(time.Duration(s.cfg.OperatingStartHourUTC) * time.Hour),
				End:   day.Add(time.Duration(s.cfg.OperatingEndHourUTC) * time.Hour),
			}
			for _, free := range subtractBusy(operating, instructorBusy) {
				for start := free.Start; !start.Add(duration).After(free.End); start = start.Add(duration) {
					end := start.Add(duration)
					if start.Before(searchFrom) || end.After(windowEnd) {
						continue
					}
					spacing := start.Sub(original)
					if spacing < 0 {
						spacing = -spacing
					}
					if spacing < minSpacing {
						continue
					}
					slot := interval{Start: start, End: end}
					for j := range fleet {
						aircraft := &fleet[j]
						if overlapsAny(slot, fleetBusy[aircraft.ID]) {
							continue
						}
						candidate := models.CandidateSlot{
							InstructorID:     instructor.ID,
							InstructorName:   instructor.Name,
							AircraftID:       aircraft.ID,
							AircraftTail:     aircraft.TailNumber,
							AircraftCategory: aircraft.Category,
							DepartureTime:    start,
							ArrivalTime:      end,
							DurationMinutes:  durationMin,
							Confidence:       scoreSlot(original, durationMin, start, durationMin, s.cfg.DurationToleranceMinutes),
							Flags: models.SlotFlags{
								InstructorAvailable: true,
								AircraftAvailable:   true,
								CertificationValid:  true,
								WithinTimeWindow:    true,
								MinimumSpacingMet:   true,
							},
						}
						if aircraft.Category != detail.AircraftCategory {
							candidate.Notes = "Alternative aircraft category: " + aircraft.Category
						}
						set.CandidateSlots = append(set.CandidateSlots, candidate)
						if len(set.CandidateSlots) >= s.cfg.MaxCandidates {
							break search
						}
					}
				}
			}
		}
	}

	sortCandidates(set.CandidateSlots)
	for i := range set.CandidateSlots {
		set.CandidateSlots[i].SlotIndex = i
	}
	if len(set.CandidateSlots) == 0 {
		set.Reason = "no viable candidate slots in search window"
	}

	s.logger.Debug("Generated candidate slots",
		slog.Int64("flight_id", detail.ID),
		slog.Int("count", len(set.CandidateSlots)),
	)
	return set, nil
}

// sortCandidates orders by descending confidence, then ascending departure.
// Slot indices are reassigned by the caller after sorting.
func sortCandidates(slots []models.CandidateSlot) {
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Confidence != slots[j].Confidence {
			return slots[i].Confidence > slots[j].Confidence
		}
		return slots[i].DepartureTime.Before(slots[j].DepartureTime)
	})
}
