// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

// Package models defines the wire types shared by the RPC handlers and the
// scheduling services.
package models

import "time"

// CheckpointBreach echoes one failing checkpoint with the observed conditions
// and the thresholds they were evaluated against.
type CheckpointBreach struct {
	CheckpointType   string   `json:"checkpointType"`
	Location         string   `json:"location"`
	Conditions       string   `json:"conditions,omitempty"`
	WindSpeedKts     float64  `json:"windSpeedKts"`
	VisibilityMi     float64  `json:"visibilityMi"`
	CeilingFt        *float64 `json:"ceilingFt"`
	MaxWindSpeedKts  float64  `json:"maxWindSpeedKts"`
	MinVisibilityMi  float64  `json:"minVisibilityMi"`
	MinCeilingFt     float64  `json:"minCeilingFt"`
	WindBreach       bool     `json:"windBreach"`
	VisibilityBreach bool     `json:"visibilityBreach"`
	CeilingBreach    bool     `json:"ceilingBreach"`
}

// ClassificationResult is the outcome of evaluating one flight against its
// training-level thresholds.
type ClassificationResult struct {
	FlightID            int64              `json:"flightId"`
	WeatherStatus       string             `json:"weatherStatus"`
	Reason              string             `json:"reason"`
	BreachedCheckpoints []CheckpointBreach `json:"breachedCheckpoints,omitempty"`
	HoursUntilDeparture float64            `json:"hoursUntilDeparture"`
}

// SlotFlags records the constraint checks a candidate passed. Slots in an
// emitted candidate set pass all of them by construction.
type SlotFlags struct {
	InstructorAvailable bool `json:"instructorAvailable"`
	AircraftAvailable   bool `json:"aircraftAvailable"`
	CertificationValid  bool `json:"certificationValid"`
	WithinTimeWindow    bool `json:"withinTimeWindow"`
	MinimumSpacingMet   bool `json:"minimumSpacingMet"`
}

// CandidateSlot is one viable (instructor, aircraft, time) triple.
type CandidateSlot struct {
	SlotIndex        int       `json:"slotIndex"`
	InstructorID     int64     `json:"instructorId"`
	InstructorName   string    `json:"instructorName"`
	AircraftID       int64     `json:"aircraftId"`
	AircraftTail     string    `json:"aircraftTail"`
	AircraftCategory string    `json:"aircraftCategory,omitempty"`
	DepartureTime    time.Time `json:"departureTime"`
	ArrivalTime      time.Time `json:"arrivalTime"`
	DurationMinutes  int       `json:"durationMinutes"`
	Confidence       int       `json:"confidence"`
	Flags            SlotFlags `json:"flags"`
	Notes            string    `json:"notes,omitempty"`
}

// CandidateSet is the ordered result of an availability search for one
// flight. Slots are sorted by descending confidence, then departure, with
// contiguous slot indices.
type CandidateSet struct {
	OriginalFlightID      int64           `json:"originalFlightId"`
	OriginalDepartureTime time.Time       `json:"originalDepartureTime"`
	DurationMinutes       int             `json:"durationMinutes"`
	SearchWindowStart     time.Time       `json:"searchWindowStart"`
	SearchWindowEnd       time.Time       `json:"searchWindowEnd"`
	CandidateSlots        []CandidateSlot `json:"candidateSlots"`
	Reason                string          `json:"reason,omitempty"`
}

// Recommendation is one ranked slot suggestion. CandidateIndex references the
// slotIndex of the candidate set it was ranked from; the resolved slot fields
// ride along so a decision can be recorded from the recommendation alone.
type Recommendation struct {
	Rank           int       `json:"rank"`
	CandidateIndex int       `json:"candidateIndex"`
	InstructorID   int64     `json:"instructorId"`
	Instructor     string    `json:"instructor"`
	AircraftID     int64     `json:"aircraftId"`
	Aircraft       string    `json:"aircraft"`
	DepartureTime  time.Time `json:"departureTime"`
	ArrivalTime    time.Time `json:"arrivalTime"`
	Confidence     int       `json:"confidence"`
	Rationale      string    `json:"rationale"`
}

// RankingResult is the ranker's answer: up to three recommendations, or a
// fallback/error marker explaining why the model's ranking is absent.
type RankingResult struct {
	Recommendations []Recommendation `json:"recommendations"`
	AIUnavailable   bool             `json:"aiUnavailable,omitempty"`
	FallbackReason  string           `json:"fallbackReason,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// RationaleRecommendation is the reduced recommendation view stored inside
// the audit rationale blob.
type RationaleRecommendation struct {
	Rank           int       `json:"rank"`
	CandidateIndex int       `json:"candidateIndex"`
	Instructor     string    `json:"instructor"`
	Aircraft       string    `json:"aircraft"`
	DepartureTime  time.Time `json:"departureTime"`
	Confidence     int       `json:"confidence"`
	Rationale      string    `json:"rationale"`
}

// RationaleDocument is the stable top-level shape of the audit rationale
// blob. Readers must tolerate unknown keys and malformed blobs.
type RationaleDocument struct {
	TopRecommendations []RationaleRecommendation `json:"topRecommendations"`
	SelectedIndex      *int                      `json:"selectedIndex"`
	Decision           string                    `json:"decision"`
	Notes              string                    `json:"notes,omitempty"`
}

// DecisionOutcome reports a recorded (or refused) rescheduling decision.
type DecisionOutcome struct {
	ActionID    int64  `json:"actionId"`
	Status      string `json:"status"`
	Message     string `json:"message"`
	NewFlightID *int64 `json:"newFlightId,omitempty"`
}

// SnapshotView is a weather snapshot with its derived staleness.
type SnapshotView struct {
	ID                     int64     `json:"id"`
	FlightID               int64     `json:"flightId"`
	CheckpointType         string    `json:"checkpointType"`
	Location               string    `json:"location"`
	ForecastTime           time.Time `json:"forecastTime"`
	WindSpeedKts           float64   `json:"windSpeedKts"`
	VisibilityMi           float64   `json:"visibilityMi"`
	CeilingFt              *float64  `json:"ceilingFt"`
	Conditions             string    `json:"conditions,omitempty"`
	ConfidenceHorizonHours int       `json:"confidenceHorizonHours"`
	CorrelationID          string    `json:"correlationId,omitempty"`
	CreatedAt              time.Time `json:"createdAt"`
	Staleness              string    `json:"staleness"`
	StalenessHours         float64   `json:"stalenessHours"`
	Warning                bool      `json:"warning"`
}

// HistoryEntry is one audit trail entry for a flight, joined with the
// original and replacement flights and the snapshot that informed it.
type HistoryEntry struct {
	ActionID              int64         `json:"actionId"`
	ActionType            string        `json:"actionType"`
	DecisionSource        string        `json:"decisionSource"`
	DecidedBy             string        `json:"decidedBy"`
	DecidedAt             time.Time     `json:"decidedAt"`
	Status                string        `json:"status"`
	Notes                 string        `json:"notes,omitempty"`
	OriginalFlightID      int64         `json:"originalFlightId"`
	OriginalDepartureTime time.Time     `json:"originalDepartureTime"`
	NewFlightID           *int64        `json:"newFlightId,omitempty"`
	NewDepartureTime      *time.Time    `json:"newDepartureTime,omitempty"`
	SelectedConfidence    *int          `json:"selectedConfidence,omitempty"`
	Rationale             string        `json:"rationale,omitempty"`
	WeatherSnapshot       *SnapshotView `json:"weatherSnapshot,omitempty"`
}

// RunSummary is the outcome of one pipeline run.
type RunSummary struct {
	CorrelationID    string                 `json:"correlationId"`
	Trigger          string                 `json:"trigger"`
	Status           string                 `json:"status"`
	StartedAt        time.Time              `json:"startedAt"`
	FinishedAt       time.Time              `json:"finishedAt"`
	DurationMs       int64                  `json:"durationMs"`
	SnapshotsCreated int                    `json:"snapshotsCreated"`
	FlightsAnalyzed  int                    `json:"flightsAnalyzed"`
	ConflictsFound   int                    `json:"conflictsFound"`
	Rescheduled      int                    `json:"rescheduled"`
	PendingReview    int                    `json:"pendingReview"`
	Skipped          int                    `json:"skipped"`
	Errors           int                    `json:"errors"`
	ErrorDetails     []string               `json:"errorDetails,omitempty"`
	Classifications  []ClassificationResult `json:"classifications,omitempty"`
}
