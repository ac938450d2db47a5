// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

// Package classify implements the threshold classifier: it evaluates each
// flight's latest per-checkpoint snapshots against the student's training
// thresholds and writes the resulting weather status back to the flight.
package classify

import (
	"context"

	"github.com/cavok-dev/cavok/internal/cavok-api/models"
)

// Service defines the business logic interface for classification.
type Service interface {
	// Classify evaluates the given flights, or every scheduled flight inside
	// the lookahead window when flightIDs is empty. Each result's status has
	// been written back to its flight row before Classify returns.
	Classify(ctx context.Context, flightIDs []int64) ([]models.ClassificationResult, error)
}
