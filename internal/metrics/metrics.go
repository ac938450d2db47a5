// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics holds the Prometheus collectors for the scheduling pipeline.
// Collectors register on the default registry; the /metrics endpoint serves
// them via promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineRunsTotal counts completed pipeline runs by trigger (cron, rpc)
	// and final status (success, partial, error).
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cavok_pipeline_runs_total",
			Help: "Total number of scheduling pipeline runs",
		},
		[]string{"trigger", "status"},
	)

	// PipelineRunDuration observes wall-clock duration of pipeline runs.
	PipelineRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cavok_pipeline_run_duration_seconds",
			Help:    "Duration of scheduling pipeline runs",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ForecastFetchesTotal counts checkpoint forecast resolutions by source
	// (remote, cache, synthetic, none).
	ForecastFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cavok_forecast_fetches_total",
			Help: "Total checkpoint forecast fetches by resolution source",
		},
		[]string{"source"},
	)

	// ForecastUpstreamRequestsTotal counts HTTP requests to the forecast
	// provider by outcome (ok, not_modified, client_error, server_error,
	// transport_error).
	ForecastUpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cavok_forecast_upstream_requests_total",
			Help: "Total HTTP requests to the forecast provider",
		},
		[]string{"outcome"},
	)

	// FlightsClassifiedTotal counts classification outcomes by weather status.
	FlightsClassifiedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cavok_flights_classified_total",
			Help: "Total flights classified by resulting weather status",
		},
		[]string{"status"},
	)

	// RescheduleActionsTotal counts recorded reschedule actions by type.
	RescheduleActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cavok_reschedule_actions_total",
			Help: "Total reschedule actions recorded",
		},
		[]string{"action_type"},
	)

	// RankerRequestsTotal counts ranking attempts by outcome (ok, timeout,
	// parse_error, error, not_configured, empty_candidates).
	RankerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cavok_ranker_requests_total",
			Help: "Total ranking requests by outcome",
		},
		[]string{"outcome"},
	)

	// RPCRequestsTotal counts /rpc dispatches by method and outcome (ok, error).
	RPCRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cavok_rpc_requests_total",
			Help: "Total RPC requests by method and outcome",
		},
		[]string{"method", "outcome"},
	)
)
