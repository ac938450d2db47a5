// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

// Package candidates implements the availability search: it enumerates
// viable (instructor, aircraft, time) triples around a conflicted flight,
// applies certification and spacing constraints, and scores each slot.
package candidates

import (
	"context"

	"github.com/cavok-dev/cavok/internal/cavok-api/models"
)

// Service defines the business logic interface for candidate generation.
type Service interface {
	// Generate searches the window around the flight's departure for
	// rebooking slots. A flight that cannot be searched yields an empty set
	// with a reason rather than an error.
	Generate(ctx context.Context, flightID int64) (*models.CandidateSet, error)
}
