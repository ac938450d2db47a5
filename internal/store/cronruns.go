// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Cron run listing limits.
const (
	CronRunDefaultLimit = 10
	CronRunMaxLimit     = 50
)

// CronRunRepository handles pipeline run records.
type CronRunRepository struct {
	db *gorm.DB
}

// Create persists a run summary.
func (r *CronRunRepository) Create(ctx context.Context, run *CronRun) error {
	result := r.db.WithContext(ctx).Create(run)
	if result.Error != nil {
		return fmt.Errorf("failed to create cron run: %w", result.Error)
	}
	return nil
}

// List retrieves runs newest-first with an optional status filter, plus the
// total count matching the filter. Limit defaults to 10 and is capped at 50.
func (r *CronRunRepository) List(ctx context.Context, limit int, status string) ([]CronRun, int64, error) {
	if limit <= 0 {
		limit = CronRunDefaultLimit
	}
	if limit > CronRunMaxLimit {
		limit = CronRunMaxLimit
	}

	tx := r.db.WithContext(ctx).Model(&CronRun{})
	if status != "" {
		tx = tx.Where("status = ?", status)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count cron runs: %w", err)
	}

	var runs []CronRun
	result := tx.Order("started_at DESC, id DESC").Limit(limit).Find(&runs)
	if result.Error != nil {
		return nil, 0, fmt.Errorf("failed to list cron runs: %w", result.Error)
	}
	return runs, total, nil
}
