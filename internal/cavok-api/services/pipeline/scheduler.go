// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/cronexpr"

	"github.com/cavok-dev/cavok/internal/cavok-api/config"
)

// Scheduler fires pipeline runs on a cron schedule. Overlapping runs are
// never started; a tick that lands while a run is active is skipped.
type Scheduler struct {
	pipeline Service
	expr     *cronexpr.Expression
	logger   *slog.Logger

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler validates the schedule and builds the scheduler.
func NewScheduler(pipeline Service, cfg config.CronConfig, logger *slog.Logger) (*Scheduler, error) {
	expr, err := cronexpr.Parse(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", cfg.Schedule, err)
	}
	return &Scheduler{
		pipeline: pipeline,
		expr:     expr,
		logger:   logger,
	}, nil
}

// Start launches the tick loop. It returns immediately; use Stop to shut
// the scheduler down.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.logger.Info("scheduler started", slog.Time("next_run", s.expr.Next(time.Now())))
	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop cancels the loop and waits for it and any in-flight run to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	for {
		now := time.Now()
		next := s.expr.Next(now)
		if next.IsZero() {
			s.logger.Warn("cron schedule has no further activations, stopping scheduler")
			return
		}

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if !s.running.CompareAndSwap(false, true) {
			s.logger.Warn("previous pipeline run still active, skipping tick")
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.running.Store(false)
			if _, err := s.pipeline.RunPipeline(ctx, TriggerCron); err != nil {
				s.logger.Error("scheduled pipeline run failed", slog.String("error", err.Error()))
			}
		}()
	}
}
