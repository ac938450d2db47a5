// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

// Package ranking asks an external language model to order candidate slots
// and falls back to a deterministic confidence ranking when the model is
// unavailable, times out, or answers with something unusable.
package ranking

import (
	"context"

	"github.com/cavok-dev/cavok/internal/cavok-api/models"
)

// Service ranks a candidate set into at most three recommendations.
type Service interface {
	// Rank never fails the caller for model trouble: timeouts, transport
	// errors, and unparseable answers all degrade to a fallback ranking
	// inside the result.
	Rank(ctx context.Context, set *models.CandidateSet) (*models.RankingResult, error)
}
