// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

package decision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cavok-dev/cavok/internal/cavok-api/config"
	"github.com/cavok-dev/cavok/internal/cavok-api/models"
	"github.com/cavok-dev/cavok/internal/cavok-api/services/weather"
	"github.com/cavok-dev/cavok/internal/metrics"
	"github.com/cavok-dev/cavok/internal/store"
)

// Manager decision verbs.
const (
	DecisionAccept = "accept"
	DecisionReject = "reject"
)

// autoDecider is the deciding principal recorded on system-initiated accepts.
const autoDecider = "auto-reschedule"

// defaultRejectNotes fills the mandatory notes field when a manager rejects
// without giving a reason.
const defaultRejectNotes = "No reason provided"

// rationaleLimit caps how many recommendations the audit rationale keeps.
const rationaleLimit = 3

type decisionService struct {
	store                *store.Store
	autoAcceptConfidence int
	logger               *slog.Logger
}

var _ Service = (*decisionService)(nil)

// NewService wires the decision recorder.
func NewService(st *store.Store, cfg config.PipelineConfig, logger *slog.Logger) Service {
	return &decisionService{
		store:                st,
		autoAcceptConfidence: cfg.AutoAcceptConfidence,
		logger:               logger,
	}
}

func (s *decisionService) RecordManagerDecision(ctx context.Context, params models.RecordManagerDecisionParams) (*models.DecisionOutcome, error) {
	if params.FlightID <= 0 {
		return nil, ErrInvalidFlightID
	}
	if params.Decision != DecisionAccept && params.Decision != DecisionReject {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecision, params.Decision)
	}
	if strings.TrimSpace(params.ManagerName) == "" {
		return nil, ErrMissingManagerName
	}

	flight, err := s.store.Flights.GetByID(ctx, params.FlightID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return notFoundOutcome(params.FlightID), nil
		}
		return nil, err
	}

	if params.Decision == DecisionReject {
		return s.reject(ctx, flight, params)
	}

	if len(params.TopRecommendations) == 0 {
		return nil, ErrNoRecommendations
	}
	idx := params.RecommendedSlotIndex
	if idx < 0 || idx > 2 || idx >= len(params.TopRecommendations) {
		return nil, fmt.Errorf("%w: index %d with %d recommendations", ErrInvalidSlotIndex, idx, len(params.TopRecommendations))
	}

	return s.commitAccept(ctx, acceptSpec{
		flight:          flight,
		recommendations: params.TopRecommendations,
		selectedIndex:   idx,
		actionType:      store.ActionTypeManualAccept,
		source:          store.DecisionSourceManager,
		decidedBy:       params.ManagerName,
		status:          store.ActionStatusAccepted,
		notes:           params.Notes,
	})
}

func (s *decisionService) RecordAutoReschedule(ctx context.Context, flightID int64, recommendations []models.Recommendation) (*models.DecisionOutcome, error) {
	if flightID <= 0 {
		return nil, ErrInvalidFlightID
	}
	if len(recommendations) == 0 {
		return nil, ErrNoRecommendations
	}
	top := recommendations[0]
	if top.Confidence < s.autoAcceptConfidence {
		return nil, fmt.Errorf("%w: %d < %d", ErrConfidenceBelowThreshold, top.Confidence, s.autoAcceptConfidence)
	}

	flight, err := s.store.Flights.GetByID(ctx, flightID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return notFoundOutcome(flightID), nil
		}
		return nil, err
	}

	return s.commitAccept(ctx, acceptSpec{
		flight:          flight,
		recommendations: recommendations,
		selectedIndex:   0,
		actionType:      store.ActionTypeAutoAccept,
		source:          store.DecisionSourceSystem,
		decidedBy:       autoDecider,
		status:          store.ActionStatusPending,
		notify:          true,
	})
}

// acceptSpec parameterizes the shared accept path for manager and system
// decisions.
type acceptSpec struct {
	flight          *store.Flight
	recommendations []models.Recommendation
	selectedIndex   int
	actionType      string
	source          string
	decidedBy       string
	status          string
	notes           string
	notify          bool
}

// commitAccept creates the replacement flight, retires the original, and
// appends the audit action in one transaction. The auto path also appends the
// review notification so a failed insert rolls back the whole decision.
func (s *decisionService) commitAccept(ctx context.Context, spec acceptSpec) (*models.DecisionOutcome, error) {
	selected := spec.recommendations[spec.selectedIndex]

	arrival := selected.ArrivalTime
	if !arrival.After(selected.DepartureTime) {
		arrival = selected.DepartureTime.Add(spec.flight.ArrivalTime.Sub(spec.flight.DepartureTime))
	}

	snapshotID := s.latestSnapshotID(ctx, spec.flight.ID)
	selectedIndex := spec.selectedIndex
	rationale := rationaleJSON(spec.recommendations, &selectedIndex, DecisionAccept, spec.notes)

	var (
		action    store.RescheduleAction
		newFlight store.Flight
	)
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		newFlight = store.Flight{
			StudentID:     spec.flight.StudentID,
			InstructorID:  selected.InstructorID,
			AircraftID:    selected.AircraftID,
			DepartureTime: selected.DepartureTime,
			ArrivalTime:   arrival,
			Origin:        spec.flight.Origin,
			Destination:   spec.flight.Destination,
			Status:        store.FlightStatusScheduled,
			WeatherStatus: store.WeatherStatusUnknown,
		}
		if err := tx.Flights.Create(ctx, &newFlight); err != nil {
			return err
		}
		if err := tx.Flights.UpdateStatus(ctx, spec.flight.ID, store.FlightStatusRescheduled); err != nil {
			return err
		}

		action = store.RescheduleAction{
			OriginalFlightID:  spec.flight.ID,
			NewFlightID:       &newFlight.ID,
			ActionType:        spec.actionType,
			DecisionSource:    spec.source,
			DecidedBy:         spec.decidedBy,
			DecidedAt:         time.Now().UTC(),
			AIRationale:       rationale,
			RecommendedByAI:   true,
			WeatherSnapshotID: snapshotID,
			Notes:             spec.notes,
			Status:            spec.status,
		}
		if err := tx.Actions.Create(ctx, &action); err != nil {
			return err
		}

		if spec.notify {
			notification := &store.Notification{
				FlightID: &spec.flight.ID,
				Type:     store.NotificationAutoRescheduled,
				Message: fmt.Sprintf("Flight %d auto-rescheduled to %s with %s on %s (action %d). Pending manager review.",
					spec.flight.ID, selected.DepartureTime.UTC().Format(time.RFC3339),
					selected.Instructor, selected.Aircraft, action.ID),
			}
			if err := tx.Notifications.Create(ctx, notification); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record accept for flight %d: %w", spec.flight.ID, err)
	}

	metrics.RescheduleActionsTotal.WithLabelValues(spec.actionType).Inc()
	s.logger.Info("recorded reschedule accept",
		slog.Int64("flight_id", spec.flight.ID),
		slog.Int64("new_flight_id", newFlight.ID),
		slog.Int64("action_id", action.ID),
		slog.String("action_type", spec.actionType),
		slog.String("decided_by", spec.decidedBy),
	)

	return &models.DecisionOutcome{
		ActionID: action.ID,
		Status:   action.Status,
		Message: fmt.Sprintf("Flight %d rescheduled to %s with %s on %s",
			spec.flight.ID, selected.DepartureTime.UTC().Format(time.RFC3339), selected.Instructor, selected.Aircraft),
		NewFlightID: &newFlight.ID,
	}, nil
}

func (s *decisionService) reject(ctx context.Context, flight *store.Flight, params models.RecordManagerDecisionParams) (*models.DecisionOutcome, error) {
	notes := strings.TrimSpace(params.Notes)
	if notes == "" {
		notes = defaultRejectNotes
	}

	action := store.RescheduleAction{
		OriginalFlightID:  flight.ID,
		ActionType:        store.ActionTypeManualReject,
		DecisionSource:    store.DecisionSourceManager,
		DecidedBy:         params.ManagerName,
		DecidedAt:         time.Now().UTC(),
		AIRationale:       rationaleJSON(params.TopRecommendations, nil, DecisionReject, notes),
		WeatherSnapshotID: s.latestSnapshotID(ctx, flight.ID),
		Notes:             notes,
		Status:            store.ActionStatusRejected,
	}
	if err := s.store.Actions.Create(ctx, &action); err != nil {
		return nil, fmt.Errorf("failed to record reject for flight %d: %w", flight.ID, err)
	}

	metrics.RescheduleActionsTotal.WithLabelValues(store.ActionTypeManualReject).Inc()
	s.logger.Info("recorded reschedule reject",
		slog.Int64("flight_id", flight.ID),
		slog.Int64("action_id", action.ID),
		slog.String("decided_by", params.ManagerName),
	)

	return &models.DecisionOutcome{
		ActionID: action.ID,
		Status:   store.ActionStatusRejected,
		Message:  fmt.Sprintf("Recommendations rejected for flight %d", flight.ID),
	}, nil
}

func (s *decisionService) History(ctx context.Context, flightID int64) ([]models.HistoryEntry, error) {
	original, err := s.store.Flights.GetByID(ctx, flightID)
	if err != nil {
		return nil, err
	}

	actions, err := s.store.Actions.ListByOriginalFlight(ctx, flightID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	entries := make([]models.HistoryEntry, 0, len(actions))
	for i := range actions {
		action := &actions[i]
		entry := models.HistoryEntry{
			ActionID:              action.ID,
			ActionType:            action.ActionType,
			DecisionSource:        action.DecisionSource,
			DecidedBy:             action.DecidedBy,
			DecidedAt:             action.DecidedAt,
			Status:                action.Status,
			Notes:                 action.Notes,
			OriginalFlightID:      flightID,
			OriginalDepartureTime: original.DepartureTime,
			Rationale:             action.AIRationale,
			SelectedConfidence:    s.selectedConfidence(action),
		}

		if action.NewFlightID != nil {
			entry.NewFlightID = action.NewFlightID
			if newFlight, err := s.store.Flights.GetByID(ctx, *action.NewFlightID); err == nil {
				departure := newFlight.DepartureTime
				entry.NewDepartureTime = &departure
			} else {
				s.logger.Warn("audit entry references missing flight",
					slog.Int64("action_id", action.ID),
					slog.Int64("new_flight_id", *action.NewFlightID),
				)
			}
		}

		if action.WeatherSnapshotID != nil {
			if snapshot, err := s.store.Snapshots.GetByID(ctx, *action.WeatherSnapshotID); err == nil {
				view := weather.SnapshotView(snapshot, now)
				entry.WeatherSnapshot = &view
			}
		}

		entries = append(entries, entry)
	}
	return entries, nil
}

// selectedConfidence surfaces the accepted recommendation's confidence from
// the rationale blob. Malformed blobs never fail history retrieval.
func (s *decisionService) selectedConfidence(action *store.RescheduleAction) *int {
	if action.AIRationale == "" {
		return nil
	}
	var doc models.RationaleDocument
	if err := json.Unmarshal([]byte(action.AIRationale), &doc); err != nil {
		s.logger.Warn("unparseable rationale blob",
			slog.Int64("action_id", action.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if doc.SelectedIndex == nil || *doc.SelectedIndex < 0 || *doc.SelectedIndex >= len(doc.TopRecommendations) {
		return nil
	}
	confidence := doc.TopRecommendations[*doc.SelectedIndex].Confidence
	return &confidence
}

// latestSnapshotID returns the newest snapshot id for audit context, or nil
// when the flight has none.
func (s *decisionService) latestSnapshotID(ctx context.Context, flightID int64) *int64 {
	snapshot, err := s.store.Snapshots.LatestForFlight(ctx, flightID)
	if err != nil {
		if !errors.Is(err, store.ErrRecordNotFound) {
			s.logger.Warn("could not load snapshot for audit context",
				slog.Int64("flight_id", flightID),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
	return &snapshot.ID
}

func notFoundOutcome(flightID int64) *models.DecisionOutcome {
	return &models.DecisionOutcome{
		ActionID: -1,
		Status:   "error",
		Message:  fmt.Sprintf("Flight %d not found", flightID),
	}
}

// rationaleJSON serializes the audit rationale document. At most the top
// three recommendations are kept.
func rationaleJSON(recommendations []models.Recommendation, selectedIndex *int, decisionKind, notes string) string {
	if len(recommendations) > rationaleLimit {
		recommendations = recommendations[:rationaleLimit]
	}
	doc := models.RationaleDocument{
		TopRecommendations: make([]models.RationaleRecommendation, 0, len(recommendations)),
		SelectedIndex:      selectedIndex,
		Decision:           decisionKind,
		Notes:              notes,
	}
	for _, rec := range recommendations {
		doc.TopRecommendations = append(doc.TopRecommendations, models.RationaleRecommendation{
			Rank:           rec.Rank,
			CandidateIndex: rec.CandidateIndex,
			Instructor:     rec.Instructor,
			Aircraft:       rec.Aircraft,
			DepartureTime:  rec.DepartureTime,
			Confidence:     rec.Confidence,
			Rationale:      rec.Rationale,
		})
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return "{}"
	}
	return string(encoded)
}
