// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// ActionRepository handles reschedule action rows. Append-only.
type ActionRepository struct {
	db *gorm.DB
}

// Create appends an audit action.
func (r *ActionRepository) Create(ctx context.Context, action *RescheduleAction) error {
	result := r.db.WithContext(ctx).Create(action)
	if result.Error != nil {
		return fmt.Errorf("failed to create reschedule action: %w", result.Error)
	}
	return nil
}

// ListByOriginalFlight retrieves the audit trail for a flight, newest first.
func (r *ActionRepository) ListByOriginalFlight(ctx context.Context, flightID int64) ([]RescheduleAction, error) {
	var actions []RescheduleAction
	result := r.db.WithContext(ctx).
		Where("original_flight_id = ?", flightID).
		Order("decided_at DESC, id DESC").
		Find(&actions)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list actions for flight %d: %w", flightID, result.Error)
	}
	return actions, nil
}
