// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

// Package decision records rescheduling decisions: it gates auto-accepts,
// creates replacement flights, transitions originals, and appends the
// immutable audit trail those decisions leave behind.
package decision

import (
	"context"

	"github.com/cavok-dev/cavok/internal/cavok-api/models"
)

// Service records rescheduling decisions and serves a flight's audit trail.
type Service interface {
	// RecordManagerDecision applies a manager's accept or reject of a
	// recommendation set. Validation failures return errors; an unknown
	// flight returns an outcome with a negative action id instead.
	RecordManagerDecision(ctx context.Context, params models.RecordManagerDecisionParams) (*models.DecisionOutcome, error)

	// RecordAutoReschedule accepts the top recommendation on the system's
	// behalf. The caller must have ranked recommendations best-first; the
	// top one must clear the auto-accept confidence gate.
	RecordAutoReschedule(ctx context.Context, flightID int64, recommendations []models.Recommendation) (*models.DecisionOutcome, error)

	// History lists a flight's audit entries, newest first.
	History(ctx context.Context, flightID int64) ([]models.HistoryEntry, error)
}
