// Package repository provides data access layer interfaces and implementations.
// This file defines all repository interfaces for data access operations.
package repository

import (
	"context"
	"time"

	models "e2e-infra/poolserver/internal/model"
)

// TelemetryRepository 遥测归档数据访问接口
type TelemetryRepository interface {
	// Insert archives one telemetry sample
	Insert(ctx context.Context, sample *models.TelemetrySample) error

	// Recent retrieves the latest samples, newest first
	Recent(ctx context.Context, limit int) ([]*models.TelemetrySample, error)

	// Latest retrieves the single newest sample; ErrNotFound when the table is empty
	Latest(ctx context.Context) (*models.TelemetrySample, error)

	// Range retrieves samples within [from, to), oldest first
	Range(ctx context.Context, from, to time.Time) ([]*models.TelemetrySample, error)

	// PruneBefore deletes samples older than cutoff, returns rows removed
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
