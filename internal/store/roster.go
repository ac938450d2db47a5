// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// RosterRepository reads the roster reference data: students, instructors,
// aircraft, and training thresholds. The pipeline never writes these.
type RosterRepository struct {
	db *gorm.DB
}

// GetStudent retrieves one student.
func (r *RosterRepository) GetStudent(ctx context.Context, id int64) (*Student, error) {
	var student Student
	result := r.db.WithContext(ctx).First(&student, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("student %d: %w", id, gorm.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("failed to get student %d: %w", id, result.Error)
	}
	return &student, nil
}

// ListInstructors retrieves all instructors ordered by id.
func (r *RosterRepository) ListInstructors(ctx context.Context) ([]Instructor, error) {
	var instructors []Instructor
	result := r.db.WithContext(ctx).Order("id").Find(&instructors)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list instructors: %w", result.Error)
	}
	return instructors, nil
}

// ListAvailableAircraft retrieves aircraft with the availability flag set,
// ordered by id.
func (r *RosterRepository) ListAvailableAircraft(ctx context.Context) ([]Aircraft, error) {
	var aircraft []Aircraft
	result := r.db.WithContext(ctx).Where("available = ?", true).Order("id").Find(&aircraft)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list available aircraft: %w", result.Error)
	}
	return aircraft, nil
}

// GetThreshold retrieves the safety threshold row for a training level.
func (r *RosterRepository) GetThreshold(ctx context.Context, trainingLevel string) (*TrainingThreshold, error) {
	var threshold TrainingThreshold
	result := r.db.WithContext(ctx).Where("training_level = ?", trainingLevel).First(&threshold)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("threshold for level %s: %w", trainingLevel, gorm.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("failed to get threshold for level %s: %w", trainingLevel, result.Error)
	}
	return &threshold, nil
}
