// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

// Package store owns the relational schema of the scheduling engine: roster
// reference data, flights, weather snapshots, reschedule audit actions,
// notifications, and pipeline run records.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrRecordNotFound aliases the driver's not-found sentinel so service
// packages can errors.Is against it without importing gorm.
var ErrRecordNotFound = gorm.ErrRecordNotFound

// Store bundles the database handle and the per-relation repositories.
type Store struct {
	db *gorm.DB

	Flights       *FlightRepository
	Snapshots     *SnapshotRepository
	Actions       *ActionRepository
	Notifications *NotificationRepository
	CronRuns      *CronRunRepository
	Roster        *RosterRepository
}

// Open initializes the SQLite database at dbPath, migrates the schema, and
// seeds the training threshold reference data.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.AutoMigrate(
		&Student{},
		&Instructor{},
		&Aircraft{},
		&TrainingThreshold{},
		&Flight{},
		&WeatherSnapshot{},
		&RescheduleAction{},
		&Notification{},
		&CronRun{},
	); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate tables: %w", err)
	}

	if err := seedThresholds(db, logger); err != nil {
		return nil, fmt.Errorf("failed to seed training thresholds: %w", err)
	}

	return newStore(db), nil
}

func newStore(db *gorm.DB) *Store {
	return &Store{
		db:            db,
		Flights:       &FlightRepository{db: db},
		Snapshots:     &SnapshotRepository{db: db},
		Actions:       &ActionRepository{db: db},
		Notifications: &NotificationRepository{db: db},
		CronRuns:      &CronRunRepository{db: db},
		Roster:        &RosterRepository{db: db},
	}
}

// DB exposes the underlying handle for callers that need raw access.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn against a Store bound to a single database
// transaction. The decision recorder uses this so a new flight, the original
// flight's transition, and the audit action commit or roll back together.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newStore(tx))
	})
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql database: %w", err)
	}
	return sqlDB.Close()
}

// defaultThresholds are the stock safety limits per training level. Schools
// tune these rows after first boot; seeding only fills gaps.
var defaultThresholds = []TrainingThreshold{
	{TrainingLevel: TrainingLevelStudent, MaxWindSpeedKts: 15, MinVisibilityMi: 5, MinCeilingFt: 3000},
	{TrainingLevel: TrainingLevelPrivate, MaxWindSpeedKts: 20, MinVisibilityMi: 3, MinCeilingFt: 2000},
	{TrainingLevel: TrainingLevelInstrument, MaxWindSpeedKts: 25, MinVisibilityMi: 1, MinCeilingFt: 500},
}

// seedThresholds creates the default threshold rows if they don't exist.
func seedThresholds(db *gorm.DB, logger *slog.Logger) error {
	created := 0
	for _, seed := range defaultThresholds {
		threshold := seed
		result := db.Where(TrainingThreshold{TrainingLevel: seed.TrainingLevel}).FirstOrCreate(&threshold)
		if result.Error != nil {
			return fmt.Errorf("failed to create threshold %s: %w", seed.TrainingLevel, result.Error)
		}
		if result.RowsAffected > 0 {
			logger.Debug("created training threshold", "level", seed.TrainingLevel)
			created++
		}
	}

	logger.Info("training thresholds seeded", "levels", len(defaultThresholds), "created", created)
	return nil
}
