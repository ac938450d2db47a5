// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

package weather

import (
	"time"

	"github.com/cavok-dev/cavok/internal/store"
)

// Profile is a canned conditions set used when neither the upstream nor the
// snapshot cache can serve a checkpoint.
type Profile struct {
	WindSpeedKts float64
	VisibilityMi float64
	CeilingFt    *float64
	Conditions   string
}

// SyntheticProfiles maps route keys ("ORIGIN-DESTINATION") to per-checkpoint
// profiles, with a catch-all fallback.
type SyntheticProfiles struct {
	routes   map[string]map[string]Profile
	fallback *Profile
}

// Lookup resolves the profile for a route and checkpoint: route-specific
// first, then the fallback.
func (p SyntheticProfiles) Lookup(origin, destination, checkpointType string) (Profile, bool) {
	if byCheckpoint, ok := p.routes[origin+"-"+destination]; ok {
		if profile, ok := byCheckpoint[checkpointType]; ok {
			return profile, true
		}
	}
	if p.fallback != nil {
		return *p.fallback, true
	}
	return Profile{}, false
}

// Snapshot synthesizes an unsaved snapshot from the profile. The confidence
// horizon is computed from the lead time to the forecast instant.
func (p Profile) Snapshot(flightID int64, checkpointType, location string, forecastTime, now time.Time) *store.WeatherSnapshot {
	return &store.WeatherSnapshot{
		FlightID:               flightID,
		CheckpointType:         checkpointType,
		Location:               location,
		ForecastTime:           forecastTime,
		WindSpeedKts:           p.WindSpeedKts,
		VisibilityMi:           p.VisibilityMi,
		CeilingFt:              p.CeilingFt,
		Conditions:             p.Conditions,
		ConfidenceHorizonHours: confidenceHorizonHours(forecastTime.Sub(now)),
	}
}

func ft(v float64) *float64 { return &v }

// DefaultSyntheticProfiles covers the Bay Area training routes plus a benign
// VFR fallback for everything else.
func DefaultSyntheticProfiles() SyntheticProfiles {
	return SyntheticProfiles{
		routes: map[string]map[string]Profile{
			"KPAO-KSQL": {
				store.CheckpointDeparture: {WindSpeedKts: 8, VisibilityMi: 10, CeilingFt: nil, Conditions: "Clear"},
				store.CheckpointArrival:   {WindSpeedKts: 10, VisibilityMi: 9, CeilingFt: ft(6500), Conditions: "Few clouds"},
				store.CheckpointCorridor:  {WindSpeedKts: 9, VisibilityMi: 10, CeilingFt: nil, Conditions: "Clear"},
			},
			"KSQL-KPAO": {
				store.CheckpointDeparture: {WindSpeedKts: 10, VisibilityMi: 9, CeilingFt: ft(6500), Conditions: "Few clouds"},
				store.CheckpointArrival:   {WindSpeedKts: 8, VisibilityMi: 10, CeilingFt: nil, Conditions: "Clear"},
				store.CheckpointCorridor:  {WindSpeedKts: 9, VisibilityMi: 10, CeilingFt: nil, Conditions: "Clear"},
			},
			"KPAO-KHWD": {
				store.CheckpointDeparture: {WindSpeedKts: 8, VisibilityMi: 10, CeilingFt: nil, Conditions: "Clear"},
				store.CheckpointArrival:   {WindSpeedKts: 12, VisibilityMi: 7, CeilingFt: ft(4500), Conditions: "Scattered clouds"},
				store.CheckpointCorridor:  {WindSpeedKts: 11, VisibilityMi: 8, CeilingFt: ft(5500), Conditions: "Few clouds"},
			},
		},
		fallback: &Profile{WindSpeedKts: 7, VisibilityMi: 10, CeilingFt: nil, Conditions: "Clear"},
	}
}
