// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

package ranking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/cavok-dev/cavok/internal/cavok-api/config"
	"github.com/cavok-dev/cavok/internal/cavok-api/models"
	"github.com/cavok-dev/cavok/internal/metrics"
)

// Fallback reasons recorded in RankingResult.FallbackReason.
const (
	ReasonEmptyCandidates = "empty_candidates"
	ReasonTimeout         = "timeout"
	ReasonParseError      = "parse_error"
	ReasonError           = "error"
)

// NotConfigured is the structured error returned when no ranking model is
// bound.
const NotConfigured = "ranker-not-configured"

const (
	promptCandidateLimit = 15
	recommendationLimit  = 3
)

type rankingService struct {
	client  *Client
	timeout time.Duration
	logger  *slog.Logger
}

var _ Service = (*rankingService)(nil)

// NewService wires the ranking service. A nil client means no ranking model
// is configured; Rank then returns the ranker-not-configured result.
func NewService(client *Client, cfg config.RankerConfig, logger *slog.Logger) Service {
	return &rankingService{
		client:  client,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

func (s *rankingService) Rank(ctx context.Context, set *models.CandidateSet) (*models.RankingResult, error) {
	if set == nil || len(set.CandidateSlots) == 0 {
		metrics.RankerRequestsTotal.WithLabelValues(ReasonEmptyCandidates).Inc()
		return &models.RankingResult{
			Recommendations: []models.Recommendation{},
			AIUnavailable:   true,
			FallbackReason:  ReasonEmptyCandidates,
		}, nil
	}
	if s.client == nil {
		metrics.RankerRequestsTotal.WithLabelValues("not_configured").Inc()
		return &models.RankingResult{
			Recommendations: []models.Recommendation{},
			Error:           NotConfigured,
		}, nil
	}

	system, user := buildPrompt(set)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	response, err := s.client.Chat(callCtx, system, user)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return s.fallback(set, ReasonTimeout, err), nil
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			return s.fallback(set, ReasonError, err), nil
		}
	}

	recommendations := resolve(set, parseRankedEntries(response, recommendationLimit))
	if len(recommendations) == 0 {
		return s.fallback(set, ReasonParseError, fmt.Errorf("no usable entries in response")), nil
	}

	metrics.RankerRequestsTotal.WithLabelValues("ok").Inc()
	s.logger.Debug("ranked candidate set",
		slog.Int64("flight_id", set.OriginalFlightID),
		slog.Int("candidates", len(set.CandidateSlots)),
		slog.Int("recommendations", len(recommendations)),
	)
	return &models.RankingResult{Recommendations: recommendations}, nil
}

// resolve maps ranked entries back onto the candidate set by slotIndex,
// dropping entries that reference candidates outside the set. The model's
// order is preserved.
func resolve(set *models.CandidateSet, entries []rankedEntry) []models.Recommendation {
	byIndex := make(map[int]models.CandidateSlot, len(set.CandidateSlots))
	for _, slot := range set.CandidateSlots {
		byIndex[slot.SlotIndex] = slot
	}

	recommendations := make([]models.Recommendation, 0, len(entries))
	for _, e := range entries {
		slot, ok := byIndex[*e.CandidateIndex]
		if !ok {
			continue
		}
		confidence := int(math.Round(*e.Confidence))
		if confidence < 0 {
			confidence = 0
		} else if confidence > 100 {
			confidence = 100
		}
		recommendations = append(recommendations, models.Recommendation{
			Rank:           *e.Rank,
			CandidateIndex: slot.SlotIndex,
			InstructorID:   slot.InstructorID,
			Instructor:     slot.InstructorName,
			AircraftID:     slot.AircraftID,
			Aircraft:       slot.AircraftTail,
			DepartureTime:  slot.DepartureTime,
			ArrivalTime:    slot.ArrivalTime,
			Confidence:     confidence,
			Rationale:      *e.Rationale,
		})
	}
	return recommendations
}

// fallback ranks the top three candidates by their search confidence when the
// model cannot. The input confidences are preserved.
func (s *rankingService) fallback(set *models.CandidateSet, reason string, cause error) *models.RankingResult {
	metrics.RankerRequestsTotal.WithLabelValues(reason).Inc()
	s.logger.Warn("ranker unavailable, using confidence fallback",
		slog.Int64("flight_id", set.OriginalFlightID),
		slog.String("reason", reason),
		slog.String("error", cause.Error()),
	)

	slots := make([]models.CandidateSlot, len(set.CandidateSlots))
	copy(slots, set.CandidateSlots)
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Confidence != slots[j].Confidence {
			return slots[i].Confidence > slots[j].Confidence
		}
		return slots[i].DepartureTime.Before(slots[j].DepartureTime)
	})
	if len(slots) > recommendationLimit {
		slots = slots[:recommendationLimit]
	}

	recommendations := make([]models.Recommendation, 0, len(slots))
	for i, slot := range slots {
		recommendations = append(recommendations, models.Recommendation{
			Rank:           i + 1,
			CandidateIndex: slot.SlotIndex,
			InstructorID:   slot.InstructorID,
			Instructor:     slot.InstructorName,
			AircraftID:     slot.AircraftID,
			Aircraft:       slot.AircraftTail,
			DepartureTime:  slot.DepartureTime,
			ArrivalTime:    slot.ArrivalTime,
			Confidence:     slot.Confidence,
			Rationale: fmt.Sprintf("[Fallback: %s] %s available at %s on %s. All constraints met.",
				reason, slot.InstructorName, slot.DepartureTime.UTC().Format("15:04"), slot.AircraftTail),
		})
	}
	return &models.RankingResult{
		Recommendations: recommendations,
		AIUnavailable:   true,
		FallbackReason:  reason,
	}
}

// buildPrompt renders the ranking request: instructions in the system prompt,
// flight context and the first fifteen candidates in the user prompt.
func buildPrompt(set *models.CandidateSet) (system, user string) {
	system = strings.Join([]string{
		"You are a scheduling assistant for a flight training school. Rank reschedule candidates for a weather-disrupted lesson.",
		"Weigh, in order: instructor continuity with the original lesson, closeness to the original departure time, aircraft compatibility with the original category, the search confidence score, and any notes attached to a candidate.",
		`Answer with a bare JSON array of at most three objects, best first, each shaped {"rank": <1-3>, "candidateIndex": <slotIndex>, "confidence": <0-100>, "rationale": "<one sentence>"}. No markdown fences, no prose outside the array.`,
	}, "\n\n")

	slots := set.CandidateSlots
	if len(slots) > promptCandidateLimit {
		slots = slots[:promptCandidateLimit]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Flight %d, scheduled %s for %d minutes, needs rescheduling due to weather.\n",
		set.OriginalFlightID, set.OriginalDepartureTime.UTC().Format(time.RFC3339), set.DurationMinutes)
	fmt.Fprintf(&b, "Search window: %s to %s.\n\nCandidates:\n",
		set.SearchWindowStart.UTC().Format(time.RFC3339), set.SearchWindowEnd.UTC().Format(time.RFC3339))
	for _, slot := range slots {
		fmt.Fprintf(&b, "- slotIndex %d: instructor %s, aircraft %s (%s), departs %s, duration %d min, confidence %d",
			slot.SlotIndex, slot.InstructorName, slot.AircraftTail, slot.AircraftCategory,
			slot.DepartureTime.UTC().Format(time.RFC3339), slot.DurationMinutes, slot.Confidence)
		if slot.Notes != "" {
			fmt.Fprintf(&b, ". Notes: %s", slot.Notes)
		}
		b.WriteString("\n")
	}
	return system, b.String()
}
