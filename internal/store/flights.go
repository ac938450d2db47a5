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

// FlightRepository handles flight rows.
type FlightRepository struct {
	db *gorm.DB
}

// GetByID retrieves one flight. Returns gorm.ErrRecordNotFound (wrapped)
// when the id does not resolve.
func (r *FlightRepository) GetByID(ctx context.Context, id int64) (*Flight, error) {
	var flight Flight
	result := r.db.WithContext(ctx).First(&flight, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("flight %d: %w", id, gorm.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("failed to get flight %d: %w", id, result.Error)
	}
	return &flight, nil
}

// GetDetailByID retrieves a flight with its student, instructor, and
// aircraft references resolved.
func (r *FlightRepository) GetDetailByID(ctx context.Context, id int64) (*FlightDetail, error) {
	flight, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := FlightDetail{Flight: *flight}

	var student Student
	if err := r.db.WithContext(ctx).First(&student, flight.StudentID).Error; err != nil {
		return nil, fmt.Errorf("failed to resolve student %d for flight %d: %w", flight.StudentID, id, err)
	}
	detail.StudentName = student.Name
	detail.TrainingLevel = student.TrainingLevel

	var instructor Instructor
	if err := r.db.WithContext(ctx).First(&instructor, flight.InstructorID).Error; err != nil {
		return nil, fmt.Errorf("failed to resolve instructor %d for flight %d: %w", flight.InstructorID, id, err)
	}
	detail.InstructorName = instructor.Name

	var aircraft Aircraft
	if err := r.db.WithContext(ctx).First(&aircraft, flight.AircraftID).Error; err != nil {
		return nil, fmt.Errorf("failed to resolve aircraft %d for flight %d: %w", flight.AircraftID, id, err)
	}
	detail.AircraftTail = aircraft.TailNumber
	detail.AircraftCategory = aircraft.Category

	return &detail, nil
}

// ListByIDs retrieves the flights with the given ids, departure ascending.
func (r *FlightRepository) ListByIDs(ctx context.Context, ids []int64) ([]Flight, error) {
	var flights []Flight
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Order("departure_time").Find(&flights)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list flights by ids: %w", result.Error)
	}
	return flights, nil
}

// ListScheduledBetween retrieves flights with status=scheduled departing in
// [from, to), departure ascending. This is the pipeline's default flight set.
func (r *FlightRepository) ListScheduledBetween(ctx context.Context, from, to time.Time) ([]Flight, error) {
	var flights []Flight
	result := r.db.WithContext(ctx).
		Where("status = ? AND departure_time >= ? AND departure_time < ?", FlightStatusScheduled, from, to).
		Order("departure_time").
		Find(&flights)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list scheduled flights: %w", result.Error)
	}
	return flights, nil
}

// ListCommittedForInstructor retrieves the instructor's committed flights
// (scheduled or rescheduled) whose interval intersects [from, to), departure
// ascending. The candidate generator subtracts these from the operating day.
func (r *FlightRepository) ListCommittedForInstructor(ctx context.Context, instructorID int64, from, to time.Time) ([]Flight, error) {
	var flights []Flight
	result := r.db.WithContext(ctx).
		Where("instructor_id = ? AND status IN ? AND departure_time < ? AND arrival_time > ?",
			instructorID, []string{FlightStatusScheduled, FlightStatusRescheduled}, to, from).
		Order("departure_time").
		Find(&flights)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list flights for instructor %d: %w", instructorID, result.Error)
	}
	return flights, nil
}

// ListCommittedForAircraft retrieves the aircraft's committed flights whose
// interval intersects [from, to), departure ascending.
func (r *FlightRepository) ListCommittedForAircraft(ctx context.Context, aircraftID int64, from, to time.Time) ([]Flight, error) {
	var flights []Flight
	result := r.db.WithContext(ctx).
		Where("aircraft_id = ? AND status IN ? AND departure_time < ? AND arrival_time > ?",
			aircraftID, []string{FlightStatusScheduled, FlightStatusRescheduled}, to, from).
		Order("departure_time").
		Find(&flights)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list flights for aircraft %d: %w", aircraftID, result.Error)
	}
	return flights, nil
}

// Create inserts a new flight row.
func (r *FlightRepository) Create(ctx context.Context, flight *Flight) error {
	result := r.db.WithContext(ctx).Create(flight)
	if result.Error != nil {
		return fmt.Errorf("failed to create flight: %w", result.Error)
	}
	return nil
}

// UpdateWeatherStatus writes the classifier's conclusion back to the flight.
// Last writer wins; overlapping runs converge on the newest classification.
func (r *FlightRepository) UpdateWeatherStatus(ctx context.Context, id int64, weatherStatus string) error {
	result := r.db.WithContext(ctx).Model(&Flight{}).Where("id = ?", id).Update("weather_status", weatherStatus)
	if result.Error != nil {
		return fmt.Errorf("failed to update weather status for flight %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("flight %d: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// UpdateStatus transitions the flight's lifecycle status.
func (r *FlightRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	result := r.db.WithContext(ctx).Model(&Flight{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update status for flight %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("flight %d: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}
