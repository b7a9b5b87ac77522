package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	models "e2e-infra/poolserver/internal/model"
)

type telemetryRepo struct {
	db *sqlx.DB
}

// NewTelemetryRepository creates a new telemetry repository
func NewTelemetryRepository(db *sqlx.DB) TelemetryRepository {
	return &telemetryRepo{db: db}
}

func (r *telemetryRepo) Insert(ctx context.Context, sample *models.TelemetrySample) error {
	if sample == nil {
		return fmt.Errorf("insert telemetry sample: %w", ErrInvalidInput)
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO pool_telemetry
			(sampled_at, health_score, active, waiting, total_created, failed, retried, epipe_errors, avg_acquire_us)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sample.SampledAt, sample.HealthScore, sample.Active, sample.Waiting,
		sample.TotalCreated, sample.Failed, sample.Retried, sample.EPIPEErrors, sample.AvgAcquireUs,
	)
	if err != nil {
		// sampled_at 上有唯一索引，同一秒的重复归档靠它挡掉
		if IsDuplicateKeyError(err) {
			return fmt.Errorf("insert telemetry sample: %w", ErrDuplicateEntry)
		}
		return fmt.Errorf("insert telemetry sample: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		sample.ID = id
	}
	return nil
}

func (r *telemetryRepo) Recent(ctx context.Context, limit int) ([]*models.TelemetrySample, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var samples []*models.TelemetrySample
	err := r.db.SelectContext(ctx, &samples, `
		SELECT id, sampled_at, health_score, active, waiting,
		       total_created, failed, retried, epipe_errors, avg_acquire_us
		FROM pool_telemetry
		ORDER BY sampled_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent telemetry: %w", err)
	}
	return samples, nil
}

func (r *telemetryRepo) Latest(ctx context.Context) (*models.TelemetrySample, error) {
	var sample models.TelemetrySample
	err := r.db.GetContext(ctx, &sample, `
		SELECT id, sampled_at, health_score, active, waiting,
		       total_created, failed, retried, epipe_errors, avg_acquire_us
		FROM pool_telemetry
		ORDER BY sampled_at DESC
		LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query latest telemetry: %w", err)
	}
	return &sample, nil
}

func (r *telemetryRepo) Range(ctx context.Context, from, to time.Time) ([]*models.TelemetrySample, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("query telemetry range: %w", ErrInvalidInput)
	}

	var samples []*models.TelemetrySample
	err := r.db.SelectContext(ctx, &samples, `
		SELECT id, sampled_at, health_score, active, waiting,
		       total_created, failed, retried, epipe_errors, avg_acquire_us
		FROM pool_telemetry
		WHERE sampled_at >= ? AND sampled_at < ?
		ORDER BY sampled_at ASC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query telemetry range: %w", err)
	}
	return samples, nil
}

func (r *telemetryRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM pool_telemetry WHERE sampled_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune telemetry: %w", err)
	}
	return result.RowsAffected()
}
