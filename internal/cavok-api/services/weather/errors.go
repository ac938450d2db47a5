// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

package weather

import "errors"

var (
	// ErrNoForecastAvailable reports that remote, cached, and synthetic
	// sources all failed for a checkpoint.
	ErrNoForecastAvailable = errors.New("no forecast available")

	// ErrMalformedForecast reports an upstream document that could not be
	// projected into a snapshot. Not retried.
	ErrMalformedForecast = errors.New("malformed forecast document")

	// ErrUnknownCheckpoint reports a checkpoint type outside
	// departure/arrival/corridor.
	ErrUnknownCheckpoint = errors.New("unknown checkpoint type")

	// ErrRevalidationMiss reports a 304 response with no cached snapshot to
	// serve it from.
	ErrRevalidationMiss = errors.New("upstream returned 304 but no snapshot is cached")

	// ErrFlightNotFound reports a snapshot query for a flight that does not
	// exist.
	ErrFlightNotFound = errors.New("flight not found")
)
