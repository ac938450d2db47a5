// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

package models

import (
	"encoding/json"
	"time"
)

// RPCRequest is the POST /rpc envelope. Params is decoded per method.
type RPCRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// RPCSuccess wraps a method result together with the correlation ID of the
// run that produced it.
type RPCSuccess struct {
	Result        any    `json:"result"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// RPCError is the error envelope. The message is the flattened error chain.
type RPCError struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// WeatherPollParams optionally narrows a poll to specific flights. Empty
// means every scheduled flight inside the lookahead window.
type WeatherPollParams struct {
	FlightIDs []int64 `json:"flightIds,omitempty"`
}

// WeatherPollResult reports Stage A plus the classification pass it feeds.
type WeatherPollResult struct {
	CorrelationID    string             `json:"correlationId"`
	SnapshotsCreated int                `json:"snapshotsCreated"`
	FlightsEvaluated int                `json:"flightsEvaluated"`
	Classifications  []FlightStatusView `json:"classifications"`
}

// FlightStatusView is the minimal (flight, status) pair returned by polls.
type FlightStatusView struct {
	FlightID      int64  `json:"flightId"`
	WeatherStatus string `json:"weatherStatus"`
}

// ClassifyFlightsParams optionally narrows classification to specific
// flights.
type ClassifyFlightsParams struct {
	FlightIDs []int64 `json:"flightIds,omitempty"`
}

// ClassifyFlightsResult carries the full per-flight classification detail.
type ClassifyFlightsResult struct {
	CorrelationID string                 `json:"correlationId"`
	Results       []ClassificationResult `json:"results"`
}

// AutoRescheduleParams controls a Stage C sweep. ForceExecute widens the
// sweep to advisory flights, overriding the decision horizon.
type AutoRescheduleParams struct {
	FlightIDs    []int64 `json:"flightIds,omitempty"`
	ForceExecute bool    `json:"forceExecute,omitempty"`
}

// AutoRescheduleResult summarizes a Stage C sweep.
type AutoRescheduleResult struct {
	CorrelationID      string   `json:"correlationId"`
	FlightsProcessed   int      `json:"flightsProcessed"`
	ReschedulesCreated int      `json:"reschedulesCreated"`
	AdvisoriesIssued   int      `json:"advisoriesIssued"`
	PendingReview      int      `json:"pendingReview"`
	Skipped            int      `json:"skipped"`
	Errors             []string `json:"errors,omitempty"`
}

// GenerateCandidateSlotsParams names the flight to search alternatives for.
type GenerateCandidateSlotsParams struct {
	FlightID int64 `json:"flightId"`
}

// GenerateRecommendationsParams carries a previously generated candidate set
// through the ranker without re-searching availability.
type GenerateRecommendationsParams struct {
	CandidateSlotsResult CandidateSet `json:"candidateSlotsResult"`
}

// RecordManagerDecisionParams records a human accept or reject of a pending
// recommendation. TopRecommendations is echoed back from the earlier ranking
// response so the decision is self-contained.
type RecordManagerDecisionParams struct {
	FlightID             int64            `json:"flightId"`
	RecommendedSlotIndex int              `json:"recommendedSlotIndex"`
	Decision             string           `json:"decision"`
	ManagerName          string           `json:"managerName"`
	Notes                string           `json:"notes,omitempty"`
	TopRecommendations   []Recommendation `json:"topRecommendations"`
}

// FlightHistoryParams names the flight whose audit trail is requested.
type FlightHistoryParams struct {
	FlightID int64 `json:"flightId"`
}

// FlightHistoryResult is the audit trail for one flight, newest first.
type FlightHistoryResult struct {
	FlightID int64          `json:"flightId"`
	Entries  []HistoryEntry `json:"entries"`
}

// WeatherSnapshotsParams filters the snapshot log for one flight. Dates
// accept RFC 3339 timestamps or bare YYYY-MM-DD days.
type WeatherSnapshotsParams struct {
	FlightID       int64  `json:"flightId"`
	CheckpointType string `json:"checkpointType,omitempty"`
	StartDate      string `json:"startDate,omitempty"`
	EndDate        string `json:"endDate,omitempty"`
	Limit          int    `json:"limit,omitempty"`
}

// WeatherSnapshotsResult lists matching snapshots newest first, each with
// derived staleness.
type WeatherSnapshotsResult struct {
	FlightID      int64          `json:"flightId"`
	Origin        string         `json:"origin"`
	Destination   string         `json:"destination"`
	DepartureTime time.Time      `json:"departureTime"`
	Snapshots     []SnapshotView `json:"snapshots"`
}

// NotificationsParams pages through unread operator notifications.
type NotificationsParams struct {
	Limit int `json:"limit,omitempty"`
}

// NotificationView is one unread notification.
type NotificationView struct {
	ID        int64     `json:"id"`
	FlightID  *int64    `json:"flightId,omitempty"`
	Type      string    `json:"type"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// NotificationsResult lists unread notifications, newest first.
type NotificationsResult struct {
	Notifications []NotificationView `json:"notifications"`
}

// CronRunsParams pages through recorded pipeline runs.
type CronRunsParams struct {
	Limit  int    `json:"limit,omitempty"`
	Status string `json:"status,omitempty"`
}

// CronRunView is one recorded pipeline run with its error details decoded.
type CronRunView struct {
	ID               int64     `json:"id"`
	CorrelationID    string    `json:"correlationId"`
	Trigger          string    `json:"trigger"`
	Status           string    `json:"status"`
	StartedAt        time.Time `json:"startedAt"`
	FinishedAt       time.Time `json:"finishedAt"`
	DurationMs       int64     `json:"durationMs"`
	SnapshotsCreated int       `json:"snapshotsCreated"`
	FlightsAnalyzed  int       `json:"flightsAnalyzed"`
	ConflictsFound   int       `json:"conflictsFound"`
	Rescheduled      int       `json:"rescheduled"`
	PendingReview    int       `json:"pendingReview"`
	Skipped          int       `json:"skipped"`
	Errors           int       `json:"errors"`
	ErrorDetails     []string  `json:"errorDetails,omitempty"`
}

// CronRunsResult is one page of runs plus the unfiltered total.
type CronRunsResult struct {
	Runs       []CronRunView `json:"runs"`
	TotalCount int64         `json:"totalCount"`
}
