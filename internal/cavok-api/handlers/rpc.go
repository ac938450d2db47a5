// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cavok-dev/cavok/internal/cavok-api/models"
	"github.com/cavok-dev/cavok/internal/cavok-api/services/decision"
	"github.com/cavok-dev/cavok/internal/cavok-api/services/pipeline"
	"github.com/cavok-dev/cavok/internal/cavok-api/services/weather"
	"github.com/cavok-dev/cavok/internal/logging"
	"github.com/cavok-dev/cavok/internal/metrics"
	"github.com/cavok-dev/cavok/internal/store"
)

// HandleRPC dispatches POST /rpc envelopes. Every request gets a correlation
// id; methods that run pipeline stages reuse it for their run artifacts, and
// both response envelopes echo it so callers can match server logs.
func (h *Handler) HandleRPC(w http.ResponseWriter, r *http.Request) {
	correlationID := pipeline.NewCorrelationID(pipeline.TriggerRPC)
	ctx := logging.WithCorrelationID(r.Context(), correlationID)
	logger := logging.FromContext(ctx)

	var req models.RPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.RPCRequestsTotal.WithLabelValues("unknown", "error").Inc()
		writeRPCError(w, http.StatusBadRequest, "malformed request body: "+err.Error(), correlationID)
		return
	}
	if req.Method == "" {
		metrics.RPCRequestsTotal.WithLabelValues("unknown", "error").Inc()
		writeRPCError(w, http.StatusBadRequest, "method is required", correlationID)
		return
	}

	result, err := h.dispatch(ctx, &req)
	if err != nil {
		status := statusForError(err)
		metrics.RPCRequestsTotal.WithLabelValues(methodLabel(req.Method, err), "error").Inc()
		logger.Warn("rpc request failed",
			slog.String("method", req.Method),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
		writeRPCError(w, status, err.Error(), correlationID)
		return
	}

	metrics.RPCRequestsTotal.WithLabelValues(req.Method, "ok").Inc()
	writeResult(w, result, correlationID)
}

func (h *Handler) dispatch(ctx context.Context, req *models.RPCRequest) (any, error) {
	switch req.Method {
	case "weatherPoll":
		var params models.WeatherPollParams
		if err := decodeParams(req.Params, &params); err != nil {
			return nil, err
		}
		return h.services.Pipeline.WeatherPoll(ctx, params.FlightIDs)

	case "classifyFlights":
		var params models.ClassifyFlightsParams
		if err := decodeParams(req.Params, &params); err != nil {
			return nil, err
		}
		results, err := h.services.Classify.Classify(ctx, params.FlightIDs)
		if err != nil {
			return nil, err
		}
		return &models.ClassifyFlightsResult{
			CorrelationID: logging.CorrelationID(ctx),
			Results:       results,
		}, nil

	case "autoReschedule":
		var params models.AutoRescheduleParams
		if err := decodeParams(req.Params, &params); err != nil {
			return nil, err
		}
		return h.services.Pipeline.AutoReschedule(ctx, params.FlightIDs, params.ForceExecute)

	case "generateCandidateSlots":
		var params models.GenerateCandidateSlotsParams
		if err := decodeParams(req.Params, &params); err != nil {
			return nil, err
		}
		if params.FlightID <= 0 {
			return nil, badRequestf("flightId is required")
		}
		return h.services.Candidates.Generate(ctx, params.FlightID)

	case "generateRescheduleRecommendations":
		var params models.GenerateRecommendationsParams
		if err := decodeParams(req.Params, &params); err != nil {
			return nil, err
		}
		return h.services.Ranking.Rank(ctx, &params.CandidateSlotsResult)

	case "recordManagerDecision":
		var params models.RecordManagerDecisionParams
		if err := decodeParams(req.Params, &params); err != nil {
			return nil, err
		}
		return h.services.Decision.RecordManagerDecision(ctx, params)

	case "getFlightRescheduleHistory":
		var params models.FlightHistoryParams
		if err := decodeParams(req.Params, &params); err != nil {
			return nil, err
		}
		if params.FlightID <= 0 {
			return nil, badRequestf("flightId is required")
		}
		entries, err := h.services.Decision.History(ctx, params.FlightID)
		if err != nil {
			return nil, err
		}
		return &models.FlightHistoryResult{FlightID: params.FlightID, Entries: entries}, nil

	case "getWeatherSnapshots":
		return h.getWeatherSnapshots(ctx, req.Params)

	case "getCronRuns":
		var params models.CronRunsParams
		if err := decodeParams(req.Params, &params); err != nil {
			return nil, err
		}
		if !validRunStatus(params.Status) {
			return nil, badRequestf("invalid status %q, want success, partial, or error", params.Status)
		}
		return h.services.Pipeline.ListRuns(ctx, params.Limit, params.Status)

	case "getNotifications":
		var params models.NotificationsParams
		if err := decodeParams(req.Params, &params); err != nil {
			return nil, err
		}
		return h.services.Pipeline.ListNotifications(ctx, params.Limit)

	default:
		return nil, &unknownMethodError{method: req.Method}
	}
}

func (h *Handler) getWeatherSnapshots(ctx context.Context, raw json.RawMessage) (any, error) {
	var params models.WeatherSnapshotsParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	if params.FlightID <= 0 {
		return nil, badRequestf("flightId is required")
	}

	var from, to *time.Time
	if params.StartDate != "" {
		parsed, _, err := parseDate(params.StartDate)
		if err != nil {
			return nil, badRequestf("startDate: %v", err)
		}
		from = &parsed
	}
	if params.EndDate != "" {
		parsed, dayOnly, err := parseDate(params.EndDate)
		if err != nil {
			return nil, badRequestf("endDate: %v", err)
		}
		// A bare day as the range end means the whole of that day.
		if dayOnly {
			parsed = parsed.Add(24*time.Hour - time.Nanosecond)
		}
		to = &parsed
	}

	return h.services.Weather.ListSnapshots(ctx, params.FlightID, params.CheckpointType, from, to, params.Limit)
}

// statusForError maps service errors onto HTTP statuses: caller mistakes and
// decision precondition violations are 400, missing references 404,
// everything else 500.
func statusForError(err error) int {
	var badRequest *badRequestError
	var unknownMethod *unknownMethodError
	switch {
	case errors.As(err, &badRequest), errors.As(err, &unknownMethod):
		return http.StatusBadRequest
	case errors.Is(err, decision.ErrInvalidFlightID),
		errors.Is(err, decision.ErrInvalidDecision),
		errors.Is(err, decision.ErrMissingManagerName),
		errors.Is(err, decision.ErrNoRecommendations),
		errors.Is(err, decision.ErrInvalidSlotIndex),
		errors.Is(err, decision.ErrConfidenceBelowThreshold):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrRecordNotFound),
		errors.Is(err, weather.ErrFlightNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// methodLabel keeps the metric label set bounded: unrecognized method names
// collapse to "unknown".
func methodLabel(method string, err error) string {
	var unknownMethod *unknownMethodError
	if errors.As(err, &unknownMethod) {
		return "unknown"
	}
	return method
}

func validRunStatus(status string) bool {
	switch status {
	case "", store.RunStatusSuccess, store.RunStatusPartial, store.RunStatusError:
		return true
	}
	return false
}
