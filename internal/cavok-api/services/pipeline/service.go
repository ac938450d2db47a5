// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cavok-dev/cavok/internal/cavok-api/config"
	"github.com/cavok-dev/cavok/internal/cavok-api/models"
	"github.com/cavok-dev/cavok/internal/cavok-api/services/candidates"
	"github.com/cavok-dev/cavok/internal/cavok-api/services/classify"
	"github.com/cavok-dev/cavok/internal/cavok-api/services/decision"
	"github.com/cavok-dev/cavok/internal/cavok-api/services/ranking"
	"github.com/cavok-dev/cavok/internal/cavok-api/services/weather"
	"github.com/cavok-dev/cavok/internal/logging"
	"github.com/cavok-dev/cavok/internal/metrics"
	"github.com/cavok-dev/cavok/internal/store"
)

// persistGrace bounds run-record persistence after the budget is spent.
const persistGrace = 10 * time.Second

var checkpointTypes = []string{store.CheckpointDeparture, store.CheckpointArrival, store.CheckpointCorridor}

// Deps are the stage services the orchestrator sequences.
type Deps struct {
	Weather    weather.Service
	Classify   classify.Service
	Candidates candidates.Service
	Ranking    ranking.Service
	Decision   decision.Service
}

type pipelineService struct {
	store  *store.Store
	deps   Deps
	cfg    config.PipelineConfig
	logger *slog.Logger
}

var _ Service = (*pipelineService)(nil)

// NewService wires the orchestrator.
func NewService(st *store.Store, deps Deps, cfg config.PipelineConfig, logger *slog.Logger) Service {
	return &pipelineService{
		store:  st,
		deps:   deps,
		cfg:    cfg,
		logger: logger,
	}
}

// runState accumulates counters across stage workers. Workers only add;
// reads happen after the stage's wait point.
type runState struct {
	mu               sync.Mutex
	snapshotsCreated int
	flightsAnalyzed  int
	conflictsFound   int
	advisories       int
	rescheduled      int
	pendingReview    int
	skipped          int
	errorDetails     []string
	classifications  []models.ClassificationResult
}

func (r *runState) addSnapshot() {
	r.mu.Lock()
	r.snapshotsCreated++
	r.mu.Unlock()
}

func (r *runState) addRescheduled() {
	r.mu.Lock()
	r.rescheduled++
	r.mu.Unlock()
}

func (r *runState) addPendingReview() {
	r.mu.Lock()
	r.pendingReview++
	r.mu.Unlock()
}

func (r *runState) addSkipped() {
	r.mu.Lock()
	r.skipped++
	r.mu.Unlock()
}

func (r *runState) addError(detail string) {
	r.mu.Lock()
	r.errorDetails = append(r.errorDetails, detail)
	r.mu.Unlock()
}

func (r *runState) setClassifications(results []models.ClassificationResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classifications = results
	r.flightsAnalyzed = len(results)
	for _, result := range results {
		switch result.WeatherStatus {
		case store.WeatherStatusAutoReschedule:
			r.conflictsFound++
		case store.WeatherStatusAdvisory:
			r.conflictsFound++
			r.advisories++
		}
	}
}

// NewCorrelationID mints a run correlation id: <trigger>-run-<millis>-<uuid>.
func NewCorrelationID(trigger string) string {
	return fmt.Sprintf("%s-run-%d-%s", trigger, time.Now().UnixMilli(), uuid.NewString())
}

// rpcContext reuses a correlation id already carried by the context (the RPC
// layer mints one per request) or mints a fresh rpc-triggered one.
func (s *pipelineService) rpcContext(ctx context.Context) (context.Context, string) {
	if id := logging.CorrelationID(ctx); id != "" {
		return ctx, id
	}
	id := NewCorrelationID(TriggerRPC)
	return logging.WithCorrelationID(ctx, id), id
}

func (s *pipelineService) RunPipeline(ctx context.Context, trigger string) (*models.RunSummary, error) {
	startedAt := time.Now().UTC()
	correlationID := NewCorrelationID(trigger)
	logger := s.logger.With(
		slog.String("correlation_id", correlationID),
		slog.String("trigger", trigger),
	)
	ctx = logging.WithCorrelationID(ctx, correlationID)

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Budget)
	defer cancel()

	logger.Info("pipeline run started")

	run := &runState{}
	status := s.executeStages(runCtx, logger, trigger, run)

	finishedAt := time.Now().UTC()
	duration := finishedAt.Sub(startedAt)
	summary := &models.RunSummary{
		CorrelationID:    correlationID,
		Trigger:          trigger,
		Status:           status,
		StartedAt:        startedAt,
		FinishedAt:       finishedAt,
		DurationMs:       duration.Milliseconds(),
		SnapshotsCreated: run.snapshotsCreated,
		FlightsAnalyzed:  run.flightsAnalyzed,
		ConflictsFound:   run.conflictsFound,
		Rescheduled:      run.rescheduled,
		PendingReview:    run.pendingReview,
		Skipped:          run.skipped,
		Errors:           len(run.errorDetails),
		ErrorDetails:     run.errorDetails,
		Classifications:  run.classifications,
	}

	// The run record must land even when the budget context is spent.
	persistCtx, persistCancel := context.WithTimeout(context.WithoutCancel(ctx), persistGrace)
	defer persistCancel()
	s.persistRun(persistCtx, logger, summary)

	metrics.PipelineRunsTotal.WithLabelValues(trigger, status).Inc()
	metrics.PipelineRunDuration.Observe(duration.Seconds())

	logger.Info("pipeline run finished",
		slog.String("status", status),
		slog.Int64("duration_ms", summary.DurationMs),
		slog.Int("snapshots_created", summary.SnapshotsCreated),
		slog.Int("flights_analyzed", summary.FlightsAnalyzed),
		slog.Int("conflicts_found", summary.ConflictsFound),
		slog.Int("rescheduled", summary.Rescheduled),
		slog.Int("pending_review", summary.PendingReview),
		slog.Int("skipped", summary.Skipped),
		slog.Int("errors", summary.Errors),
	)
	return summary, nil
}

// executeStages runs the three stages, isolating any panic so the run record
// is still written. Recorded errors downgrade the run to partial; an escaped
// panic marks it error.
func (s *pipelineService) executeStages(ctx context.Context, logger *slog.Logger, trigger string, run *runState) (status string) {
	status = store.RunStatusSuccess
	defer func() {
		if r := recover(); r != nil {
			status = store.RunStatusError
			run.addError(fmt.Sprintf("pipeline: panic: %v", r))
			logger.Error("pipeline run panicked", slog.Any("panic", r))
			return
		}
		if len(run.errorDetails) > 0 {
			status = store.RunStatusPartial
		}
	}()

	flights, err := s.loadFlights(ctx, nil)
	if err != nil {
		run.addError("pipeline: load flights: " + err.Error())
		return
	}

	s.ingestForecasts(ctx, logger, flights, run)

	if run.snapshotsCreated > 0 || trigger == TriggerRPC {
		s.classifyFlights(ctx, logger, idsOf(flights), run)
	}

	s.rescheduleConflicted(ctx, logger, run, false)
	return
}

func (s *pipelineService) WeatherPoll(ctx context.Context, flightIDs []int64) (*models.WeatherPollResult, error) {
	ctx, correlationID := s.rpcContext(ctx)
	logger := s.logger.With(slog.String("correlation_id", correlationID))

	flights, err := s.loadFlights(ctx, flightIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load flights: %w", err)
	}

	run := &runState{}
	s.ingestForecasts(ctx, logger, flights, run)

	classifyIDs := flightIDs
	if len(classifyIDs) == 0 {
		classifyIDs = idsOf(flights)
	}
	s.classifyFlights(ctx, logger, classifyIDs, run)

	statuses := make([]models.FlightStatusView, 0, len(run.classifications))
	for _, result := range run.classifications {
		statuses = append(statuses, models.FlightStatusView{
			FlightID:      result.FlightID,
			WeatherStatus: result.WeatherStatus,
		})
	}
	return &models.WeatherPollResult{
		CorrelationID:    correlationID,
		SnapshotsCreated: run.snapshotsCreated,
		FlightsEvaluated: run.flightsAnalyzed,
		Classifications:  statuses,
	}, nil
}

func (s *pipelineService) AutoReschedule(ctx context.Context, flightIDs []int64, forceExecute bool) (*models.AutoRescheduleResult, error) {
	ctx, correlationID := s.rpcContext(ctx)
	logger := s.logger.With(slog.String("correlation_id", correlationID))

	flights, err := s.loadFlights(ctx, flightIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load flights: %w", err)
	}

	classifyIDs := flightIDs
	if len(classifyIDs) == 0 {
		classifyIDs = idsOf(flights)
	}

	run := &runState{}
	s.classifyFlights(ctx, logger, classifyIDs, run)
	s.rescheduleConflicted(ctx, logger, run, forceExecute)

	return &models.AutoRescheduleResult{
		CorrelationID:      correlationID,
		FlightsProcessed:   run.flightsAnalyzed,
		ReschedulesCreated: run.rescheduled,
		AdvisoriesIssued:   run.advisories,
		PendingReview:      run.pendingReview,
		Skipped:            run.skipped,
		Errors:             run.errorDetails,
	}, nil
}

func (s *pipelineService) ListRuns(ctx context.Context, limit int, status string) (*models.CronRunsResult, error) {
	runs, total, err := s.store.CronRuns.List(ctx, limit, status)
	if err != nil {
		return nil, err
	}
	views := make([]models.CronRunView, 0, len(runs))
	for i := range runs {
		views = append(views, runView(&runs[i]))
	}
	return &models.CronRunsResult{Runs: views, TotalCount: total}, nil
}

func (s *pipelineService) ListNotifications(ctx context.Context, limit int) (*models.NotificationsResult, error) {
	notifications, err := s.store.Notifications.ListUnread(ctx, limit)
	if err != nil {
		return nil, err
	}
	views := make([]models.NotificationView, 0, len(notifications))
	for i := range notifications {
		n := &notifications[i]
		views = append(views, models.NotificationView{
			ID:        n.ID,
			FlightID:  n.FlightID,
			Type:      n.Type,
			Severity:  n.Severity,
			Message:   n.Message,
			CreatedAt: n.CreatedAt,
		})
	}
	return &models.NotificationsResult{Notifications: views}, nil
}

// runView decodes a run record for the API, deriving the trigger from the
// correlation id prefix.
func runView(run *store.CronRun) models.CronRunView {
	trigger := "unknown"
	if prefix, _, ok := strings.Cut(run.CorrelationID, "-run-"); ok && prefix != "" {
		trigger = prefix
	}
	return models.CronRunView{
		ID:               run.ID,
		CorrelationID:    run.CorrelationID,
		Trigger:          trigger,
		Status:           run.Status,
		StartedAt:        run.StartedAt,
		FinishedAt:       run.FinishedAt,
		DurationMs:       run.DurationMs,
		SnapshotsCreated: run.SnapshotsCreated,
		FlightsAnalyzed:  run.FlightsAnalyzed,
		ConflictsFound:   run.ConflictsFound,
		Rescheduled:      run.Rescheduled,
		PendingReview:    run.PendingReview,
		Skipped:          run.Skipped,
		Errors:           run.Errors,
		ErrorDetails:     run.ErrorDetailList(),
	}
}

// loadFlights resolves the run's flight set: the scheduled window when no
// ids are given, the named flights otherwise.
func (s *pipelineService) loadFlights(ctx context.Context, flightIDs []int64) ([]store.Flight, error) {
	if len(flightIDs) == 0 {
		now := time.Now().UTC()
		return s.store.Flights.ListScheduledBetween(ctx, now, now.AddDate(0, 0, s.cfg.SearchWindowDays))
	}
	return s.store.Flights.ListByIDs(ctx, flightIDs)
}

// ingestForecasts is Stage A: fetch and append forecasts for all three
// checkpoints of every flight, bounded by the worker pool. Failures are
// per-flight; one flight's trouble never touches another's.
func (s *pipelineService) ingestForecasts(ctx context.Context, logger *slog.Logger, flights []store.Flight, run *runState) {
	if len(flights) == 0 {
		return
	}

	sem := make(chan struct{}, s.maxParallel())
	var wg sync.WaitGroup
	for i := range flights {
		flight := &flights[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					run.addError(fmt.Sprintf("weather: flight %d: panic: %v", flight.ID, r))
					logger.Error("forecast worker panicked",
						slog.Int64("flight_id", flight.ID),
						slog.Any("panic", r),
					)
				}
			}()
			s.ingestFlight(ctx, flight, run)
		}()
	}
	wg.Wait()

	logger.Debug("forecast ingestion finished",
		slog.Int("flights", len(flights)),
		slog.Int("snapshots_created", run.snapshotsCreated),
	)
}

// ingestFlight fetches all three checkpoints for one flight and appends the
// fresh snapshots. Checkpoint problems are collapsed into one error detail
// per flight.
func (s *pipelineService) ingestFlight(ctx context.Context, flight *store.Flight, run *runState) {
	var problems []string
	for _, checkpointType := range checkpointTypes {
		result, err := s.deps.Weather.FetchCheckpoint(ctx, flight, checkpointType)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", checkpointType, err))
			continue
		}
		if result.DegradedReason != "" {
			problems = append(problems, fmt.Sprintf("%s: %s", checkpointType, result.DegradedReason))
		}
		if result.Source == weather.SourceCache {
			continue
		}
		if err := s.store.Snapshots.Append(ctx, result.Snapshot); err != nil {
			problems = append(problems, fmt.Sprintf("%s: append: %v", checkpointType, err))
			continue
		}
		run.addSnapshot()
	}
	if len(problems) > 0 {
		run.addError(fmt.Sprintf("weather: flight %d: %s", flight.ID, strings.Join(problems, "; ")))
	}
}

// classifyFlights is Stage B.
func (s *pipelineService) classifyFlights(ctx context.Context, logger *slog.Logger, flightIDs []int64, run *runState) {
	results, err := s.deps.Classify.Classify(ctx, flightIDs)
	if err != nil {
		run.addError("classification: " + err.Error())
		logger.Error("classification stage failed", slog.String("error", err.Error()))
		return
	}
	run.setClassifications(results)
	logger.Debug("classification finished",
		slog.Int("flights_analyzed", run.flightsAnalyzed),
		slog.Int("conflicts_found", run.conflictsFound),
	)
}

// rescheduleConflicted is Stage C: sweep conflicted flights through candidate
// generation, ranking, and the auto-accept gate, each in its own failure
// domain.
func (s *pipelineService) rescheduleConflicted(ctx context.Context, logger *slog.Logger, run *runState, includeAdvisory bool) {
	var targets []int64
	for _, result := range run.classifications {
		switch result.WeatherStatus {
		case store.WeatherStatusAutoReschedule:
			targets = append(targets, result.FlightID)
		case store.WeatherStatusAdvisory:
			if includeAdvisory {
				targets = append(targets, result.FlightID)
			}
		}
	}
	if len(targets) == 0 {
		return
	}

	sem := make(chan struct{}, s.maxParallel())
	var wg sync.WaitGroup
	for _, flightID := range targets {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					run.addSkipped()
					run.addError(fmt.Sprintf("reschedule: flight %d: panic: %v", flightID, r))
					logger.Error("reschedule worker panicked",
						slog.Int64("flight_id", flightID),
						slog.Any("panic", r),
					)
				}
			}()
			s.rescheduleFlight(ctx, logger, flightID, run)
		}()
	}
	wg.Wait()
}

func (s *pipelineService) rescheduleFlight(ctx context.Context, logger *slog.Logger, flightID int64, run *runState) {
	set, err := s.deps.Candidates.Generate(ctx, flightID)
	if err != nil {
		run.addSkipped()
		run.addError(fmt.Sprintf("reschedule: flight %d: candidates: %v", flightID, err))
		return
	}
	if len(set.CandidateSlots) == 0 {
		run.addSkipped()
		logger.Debug("no candidate slots",
			slog.Int64("flight_id", flightID),
			slog.String("reason", set.Reason),
		)
		return
	}

	ranked, err := s.deps.Ranking.Rank(ctx, set)
	if err != nil {
		run.addSkipped()
		run.addError(fmt.Sprintf("reschedule: flight %d: ranking: %v", flightID, err))
		return
	}
	if len(ranked.Recommendations) == 0 {
		run.addSkipped()
		logger.Debug("no recommendations",
			slog.Int64("flight_id", flightID),
			slog.String("ranker_error", ranked.Error),
		)
		return
	}

	top := ranked.Recommendations[0]
	if top.Confidence < s.cfg.AutoAcceptConfidence {
		run.addPendingReview()
		logger.Debug("confidence below auto-accept threshold",
			slog.Int64("flight_id", flightID),
			slog.Int("confidence", top.Confidence),
			slog.Int("threshold", s.cfg.AutoAcceptConfidence),
		)
		return
	}

	outcome, err := s.deps.Decision.RecordAutoReschedule(ctx, flightID, ranked.Recommendations)
	if err != nil {
		run.addSkipped()
		run.addError(fmt.Sprintf("reschedule: flight %d: record: %v", flightID, err))
		return
	}
	if outcome.ActionID < 0 {
		run.addSkipped()
		run.addError(fmt.Sprintf("reschedule: flight %d: %s", flightID, outcome.Message))
		return
	}
	run.addRescheduled()
}

// persistRun writes the cron run record and, for non-success runs, the
// failure notification.
func (s *pipelineService) persistRun(ctx context.Context, logger *slog.Logger, summary *models.RunSummary) {
	record := &store.CronRun{
		CorrelationID:    summary.CorrelationID,
		Status:           summary.Status,
		StartedAt:        summary.StartedAt,
		FinishedAt:       summary.FinishedAt,
		DurationMs:       summary.DurationMs,
		SnapshotsCreated: summary.SnapshotsCreated,
		FlightsAnalyzed:  summary.FlightsAnalyzed,
		ConflictsFound:   summary.ConflictsFound,
		Rescheduled:      summary.Rescheduled,
		PendingReview:    summary.PendingReview,
		Skipped:          summary.Skipped,
		Errors:           summary.Errors,
	}
	record.SetErrorDetails(summary.ErrorDetails)
	if err := s.store.CronRuns.Create(ctx, record); err != nil {
		logger.Error("failed to persist run record", slog.String("error", err.Error()))
	}

	if summary.Status == store.RunStatusSuccess {
		return
	}
	notification := &store.Notification{
		Type:    store.NotificationError,
		Message: failureMessage(summary),
	}
	if err := s.store.Notifications.Create(ctx, notification); err != nil {
		logger.Error("failed to append failure notification", slog.String("error", err.Error()))
	}
}

// failureMessage derives the notification text from the failing stage
// domains carried in the error detail prefixes.
func failureMessage(summary *models.RunSummary) string {
	domains := make(map[string]bool)
	for _, detail := range summary.ErrorDetails {
		switch {
		case strings.HasPrefix(detail, "weather:"):
			domains["weather"] = true
		case strings.HasPrefix(detail, "classification:"):
			domains["classification"] = true
		case strings.HasPrefix(detail, "reschedule:"):
			domains["reschedule"] = true
		default:
			domains["pipeline"] = true
		}
	}

	var kind string
	switch {
	case len(domains) > 1:
		kind = "Pipeline failure"
	case domains["weather"]:
		kind = "Weather service failure"
	case domains["classification"]:
		kind = "Classification failure"
	case domains["reschedule"]:
		kind = "Rescheduling failure"
	default:
		kind = "Pipeline failure"
	}

	if len(summary.ErrorDetails) == 0 {
		return fmt.Sprintf("%s during run %s", kind, summary.CorrelationID)
	}
	return fmt.Sprintf("%s during run %s: %d error(s); first: %s",
		kind, summary.CorrelationID, len(summary.ErrorDetails), summary.ErrorDetails[0])
}

func (s *pipelineService) maxParallel() int {
	if s.cfg.MaxParallelFlights <= 0 {
		return 1
	}
	return s.cfg.MaxParallelFlights
}

func idsOf(flights []store.Flight) []int64 {
	ids := make([]int64, 0, len(flights))
	for i := range flights {
		ids = append(ids, flights[i].ID)
	}
	return ids
}
