// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

package decision

import "errors"

var (
	// ErrInvalidFlightID is returned when the flight id is zero or negative.
	ErrInvalidFlightID = errors.New("flight id must be positive")

	// ErrInvalidDecision is returned when the decision is neither accept nor
	// reject.
	ErrInvalidDecision = errors.New("decision must be accept or reject")

	// ErrMissingManagerName is returned when a manager decision carries no
	// deciding principal.
	ErrMissingManagerName = errors.New("manager name is required")

	// ErrNoRecommendations is returned when an accept carries no
	// recommendations to accept.
	ErrNoRecommendations = errors.New("accept requires at least one recommendation")

	// ErrInvalidSlotIndex is returned when the selected index does not
	// resolve to a recommendation.
	ErrInvalidSlotIndex = errors.New("recommended slot index does not resolve")

	// ErrConfidenceBelowThreshold is returned when an auto-reschedule is
	// attempted below the auto-accept confidence gate.
	ErrConfidenceBelowThreshold = errors.New("top recommendation confidence below auto-accept threshold")
)
