// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// NotificationRepository handles in-app notification rows.
type NotificationRepository struct {
	db *gorm.DB
}

// Create inserts a notification. Severity is derived from the type when the
// caller leaves it empty.
func (r *NotificationRepository) Create(ctx context.Context, notification *Notification) error {
	if notification.Severity == "" {
		notification.Severity = SeverityForType(notification.Type)
	}
	result := r.db.WithContext(ctx).Create(notification)
	if result.Error != nil {
		return fmt.Errorf("failed to create notification: %w", result.Error)
	}
	return nil
}

// ListUnread retrieves unread notifications, newest first.
func (r *NotificationRepository) ListUnread(ctx context.Context, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var notifications []Notification
	result := r.db.WithContext(ctx).
		Where("read = ?", false).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&notifications)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list unread notifications: %w", result.Error)
	}
	return notifications, nil
}
