// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"encoding/json"
	"time"
)

// Flight lifecycle statuses.
const (
	FlightStatusScheduled   = "scheduled"
	FlightStatusRescheduled = "rescheduled"
	FlightStatusCompleted   = "completed"
	FlightStatusCancelled   = "cancelled"
)

// Weather statuses written back by the classifier.
const (
	WeatherStatusUnknown        = "unknown"
	WeatherStatusClear          = "clear"
	WeatherStatusAdvisory       = "advisory"
	WeatherStatusAutoReschedule = "auto-reschedule"
)

// Checkpoint types evaluated per flight.
const (
	CheckpointDeparture = "departure"
	CheckpointArrival   = "arrival"
	CheckpointCorridor  = "corridor"
)

// Training levels. Threshold rows are keyed by these.
const (
	TrainingLevelStudent    = "student"
	TrainingLevelPrivate    = "private"
	TrainingLevelInstrument = "instrument"
)

// Reschedule action types, sources, and statuses.
const (
	ActionTypeAutoAccept   = "auto-accept"
	ActionTypeManualAccept = "manual-accept"
	ActionTypeManualReject = "manual-reject"

	DecisionSourceSystem  = "system"
	DecisionSourceManager = "manager"

	ActionStatusPending  = "pending"
	ActionStatusAccepted = "accepted"
	ActionStatusRejected = "rejected"
)

// Pipeline run statuses.
const (
	RunStatusSuccess = "success"
	RunStatusPartial = "partial"
	RunStatusError   = "error"
)

// Notification types.
const (
	NotificationAutoRescheduled = "auto-rescheduled"
	NotificationError           = "error"
	NotificationWarning         = "warning"
)

// Student is roster reference data, read-only to the pipeline.
type Student struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	Name          string `gorm:"type:text;not null"`
	TrainingLevel string `gorm:"type:text;not null"`
}

// Instructor is roster reference data. Certifications holds a JSON-encoded
// list of certification names.
type Instructor struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	Name           string `gorm:"type:text;not null"`
	Certifications string `gorm:"type:text;not null;default:'[]'"`
}

// CertificationList decodes the JSON certification list. A malformed value
// decodes to an empty list; instructors with unreadable certifications never
// pass a certification gate.
func (i *Instructor) CertificationList() []string {
	var certs []string
	if err := json.Unmarshal([]byte(i.Certifications), &certs); err != nil {
		return nil
	}
	return certs
}

// Aircraft is roster reference data.
type Aircraft struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	TailNumber string `gorm:"type:text;uniqueIndex;not null"`
	Category   string `gorm:"type:text;not null"`
	Available  bool   `gorm:"not null;default:true"`
}

// TableName overrides gorm's pluralization ("aircrafts").
func (Aircraft) TableName() string { return "aircraft" }

// TrainingThreshold holds the safety limits for one training level.
type TrainingThreshold struct {
	ID              int64   `gorm:"primaryKey;autoIncrement"`
	TrainingLevel   string  `gorm:"type:text;uniqueIndex;not null"`
	MaxWindSpeedKts float64 `gorm:"not null"`
	MinVisibilityMi float64 `gorm:"not null"`
	MinCeilingFt    float64 `gorm:"not null"`
}

// Flight is a scheduled training flight. Created externally; the classifier
// writes WeatherStatus, the decision recorder transitions Status and creates
// replacement rows. Never deleted.
type Flight struct {
	ID            int64     `gorm:"primaryKey;autoIncrement"`
	StudentID     int64     `gorm:"not null;index"`
	InstructorID  int64     `gorm:"not null;index"`
	AircraftID    int64     `gorm:"not null;index"`
	DepartureTime time.Time `gorm:"not null;index"`
	ArrivalTime   time.Time `gorm:"not null"`
	Origin        string    `gorm:"type:text;not null"`
	Destination   string    `gorm:"type:text;not null"`
	Status        string    `gorm:"type:text;not null;default:scheduled;index"`
	WeatherStatus string    `gorm:"type:text;not null;default:unknown"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DurationMinutes is the scheduled lesson length.
func (f *Flight) DurationMinutes() int {
	return int(f.ArrivalTime.Sub(f.DepartureTime) / time.Minute)
}

// FlightDetail is a flight with its roster references resolved.
type FlightDetail struct {
	Flight
	StudentName      string
	TrainingLevel    string
	InstructorName   string
	AircraftTail     string
	AircraftCategory string
}

// Snapshot staleness buckets, derived from age at read time.
const (
	StalenessFresh      = "fresh"
	StalenessAcceptable = "acceptable"
	StalenessStale      = "stale"
	StalenessVeryStale  = "very-stale"
)

// WeatherSnapshot is one normalized forecast observation for a flight
// checkpoint. Append-only; rows are never mutated.
type WeatherSnapshot struct {
	ID                     int64     `gorm:"primaryKey;autoIncrement"`
	FlightID               int64     `gorm:"not null;index:idx_snapshot_flight_checkpoint"`
	CheckpointType         string    `gorm:"type:text;not null;index:idx_snapshot_flight_checkpoint"`
	Location               string    `gorm:"type:text;not null;index:idx_snapshot_location_forecast"`
	ForecastTime           time.Time `gorm:"not null;index:idx_snapshot_location_forecast"`
	WindSpeedKts           float64   `gorm:"not null"`
	VisibilityMi           float64   `gorm:"not null"`
	CeilingFt              *float64
	Conditions             string `gorm:"type:text"`
	ConfidenceHorizonHours int    `gorm:"not null"`
	CorrelationID          string `gorm:"type:text;index"`
	ETag                   string `gorm:"type:text"`
	CreatedAt              time.Time
}

// Staleness buckets the snapshot's age at the given instant. Warning is set
// for the stale and very-stale buckets (age >= 6h).
func (s *WeatherSnapshot) Staleness(now time.Time) (level string, hours float64, warning bool) {
	hours = now.Sub(s.CreatedAt).Hours()
	switch {
	case hours < 1:
		level = StalenessFresh
	case hours < 6:
		level = StalenessAcceptable
	case hours < 24:
		level = StalenessStale
	default:
		level = StalenessVeryStale
	}
	return level, hours, level == StalenessStale || level == StalenessVeryStale
}

// RescheduleAction is one append-only audit record of a rescheduling
// decision. NewFlightID is set iff the action accepted a slot.
type RescheduleAction struct {
	ID                int64  `gorm:"primaryKey;autoIncrement"`
	OriginalFlightID  int64  `gorm:"not null;index"`
	NewFlightID       *int64 `gorm:"index"`
	ActionType        string `gorm:"type:text;not null"`
	DecisionSource    string `gorm:"type:text;not null"`
	DecidedBy         string `gorm:"type:text;not null"`
	DecidedAt         time.Time
	AIRationale       string `gorm:"type:text"`
	RecommendedByAI   bool   `gorm:"not null;default:false"`
	WeatherSnapshotID *int64
	Notes             string `gorm:"type:text"`
	Status            string `gorm:"type:text;not null"`
}

// Notification is an in-app message row. Delivery channels are out of scope;
// rows are the product.
type Notification struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	FlightID  *int64 `gorm:"index"`
	Type      string `gorm:"type:text;not null"`
	Severity  string `gorm:"type:text;not null"`
	Message   string `gorm:"type:text;not null"`
	Read      bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
}

// SeverityForType derives a notification severity from its type tag.
func SeverityForType(notificationType string) string {
	switch notificationType {
	case NotificationError:
		return "error"
	case NotificationWarning:
		return "warning"
	default:
		return "info"
	}
}

// CronRun is the persisted summary of one pipeline run.
type CronRun struct {
	ID               int64  `gorm:"primaryKey;autoIncrement"`
	CorrelationID    string `gorm:"type:text;not null;uniqueIndex"`
	Status           string `gorm:"type:text;not null;index"`
	StartedAt        time.Time
	FinishedAt       time.Time
	DurationMs       int64
	SnapshotsCreated int
	FlightsAnalyzed  int
	ConflictsFound   int
	Rescheduled      int
	PendingReview    int
	Skipped          int
	Errors           int
	ErrorDetails     string `gorm:"type:text"`
}

// SetErrorDetails JSON-encodes the error detail list onto the row.
func (r *CronRun) SetErrorDetails(details []string) {
	if len(details) == 0 {
		r.ErrorDetails = "[]"
		return
	}
	encoded, err := json.Marshal(details)
	if err != nil {
		r.ErrorDetails = "[]"
		return
	}
	r.ErrorDetails = string(encoded)
}

// ErrorDetailList decodes the error detail list; malformed values decode to nil.
func (r *CronRun) ErrorDetailList() []string {
	var details []string
	if err := json.Unmarshal([]byte(r.ErrorDetails), &details); err != nil {
		return nil
	}
	return details
}
