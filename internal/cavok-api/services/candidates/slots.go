// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

package candidates

import (
	"sort"
	"time"

	"github.com/cavok-dev/cavok/internal/store"
)

// interval is a half-open [Start, End) time range.
type interval struct {
	Start time.Time
	End   time.Time
}

func (iv interval) overlaps(other interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// busyIntervals projects committed flights onto their occupied time ranges.
func busyIntervals(flights []store.Flight) []interval {
	busy := make([]interval, 0, len(flights))
	for i := range flights {
		busy = append(busy, interval{Start: flights[i].DepartureTime, End: flights[i].ArrivalTime})
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })
	return busy
}

// subtractBusy returns the free sub-intervals of window after removing the
// busy ranges. Busy must be sorted by start.
func subtractBusy(window interval, busy []interval) []interval {
	var free []interval
	cursor := window.Start
	for _, b := range busy {
		if !b.End.After(cursor) || !b.Start.Before(window.End) {
			continue
		}
		if b.Start.After(cursor) {
			end := b.Start
			if end.After(window.End) {
				end = window.End
			}
			free = append(free, interval{Start: cursor, End: end})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
		if !cursor.Before(window.End) {
			return free
		}
	}
	if cursor.Before(window.End) {
		free = append(free, interval{Start: cursor, End: window.End})
	}
	return free
}

func overlapsAny(slot interval, busy []interval) bool {
	for _, b := range busy {
		if slot.overlaps(b) {
			return true
		}
	}
	return false
}

func startOfDayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// certificationAllows gates an instructor by the student's training level:
// student-level lessons accept any instructor, private and instrument
// lessons require the matching certification.
func certificationAllows(trainingLevel string, certifications []string) bool {
	switch trainingLevel {
	case store.TrainingLevelStudent:
		return true
	case store.TrainingLevelPrivate:
		return containsCert(certifications, "private")
	case store.TrainingLevelInstrument:
		return containsCert(certifications, "instrument")
	default:
		return false
	}
}

func containsCert(certifications []string, want string) bool {
	for _, c := range certifications {
		if c == want {
			return true
		}
	}
	return false
}

// dayOffset is the absolute UTC calendar-day distance between two instants.
func dayOffset(a, b time.Time) int {
	ua, ub := a.UTC(), b.UTC()
	da := time.Date(ua.Year(), ua.Month(), ua.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(ub.Year(), ub.Month(), ub.Day(), 0, 0, 0, 0, time.UTC)
	days := int(da.Sub(db).Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}

// scoreSlot computes the deterministic 0-100 confidence of a slot against
// the original booking: closer days, closer times of day, matching duration,
// and a same-weekday bonus.
func scoreSlot(original time.Time, originalDurationMin int, slot time.Time, slotDurationMin, toleranceMin int) int {
	var score int
	offset := dayOffset(slot, original)
	switch {
	case offset == 0:
		score = 100
	case offset == 1:
		score = 80
	case offset <= 3:
		score = 60
	case offset <= 5:
		score = 40
	default:
		score = 20
	}

	hourDelta := slot.UTC().Hour() - original.UTC().Hour()
	if hourDelta < 0 {
		hourDelta = -hourDelta
	}
	if hourDelta > 12 {
		hourDelta = 24 - hourDelta
	}
	switch {
	case hourDelta <= 2:
	case hourDelta <= 4:
		score -= 10
	default:
		score -= 20
	}

	durationDelta := slotDurationMin - originalDurationMin
	if durationDelta < 0 {
		durationDelta = -durationDelta
	}
	switch {
	case durationDelta == 0:
		score += 5
	case durationDelta <= toleranceMin:
	default:
		score -= 10
	}

	if offset != 0 && slot.UTC().Weekday() == original.UTC().Weekday() {
		score += 5
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}
