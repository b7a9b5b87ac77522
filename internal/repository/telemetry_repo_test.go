package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	models "e2e-infra/poolserver/internal/model"
	testutil "e2e-infra/poolserver/internal/testing"
)

func TestTelemetryRepository_Insert(t *testing.T) {
	db, mock, cleanup := testutil.NewMockDB(t)
	defer cleanup()

	repo := NewTelemetryRepository(db)

	sample := &models.TelemetrySample{
		SampledAt:    time.Now(),
		HealthScore:  95,
		Active:       3,
		Waiting:      1,
		TotalCreated: 42,
		Failed:       1,
		Retried:      2,
		EPIPEErrors:  2,
		AvgAcquireUs: 1500,
	}

	mock.ExpectExec("INSERT INTO pool_telemetry").
		WillReturnResult(sqlmock.NewResult(7, 1))

	err := repo.Insert(context.Background(), sample)

	assert.NoError(t, err)
	assert.Equal(t, int64(7), sample.ID, "应该回填自增主键")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTelemetryRepository_Recent(t *testing.T) {
	db, mock, cleanup := testutil.NewMockDB(t)
	defer cleanup()

	repo := NewTelemetryRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "sampled_at", "health_score", "active", "waiting",
		"total_created", "failed", "retried", "epipe_errors", "avg_acquire_us",
	}).
		AddRow(int64(2), now, 90, 4, 2, int64(50), int64(2), int64(3), int64(3), int64(2000)).
		AddRow(int64(1), now.Add(-time.Minute), 100, 1, 0, int64(10), int64(0), int64(0), int64(0), int64(900))

	mock.ExpectQuery("FROM pool_telemetry").
		WithArgs(10).
		WillReturnRows(rows)

	samples, err := repo.Recent(context.Background(), 10)

	assert.NoError(t, err)
	assert.Len(t, samples, 2)
	assert.Equal(t, 90, samples[0].HealthScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTelemetryRepository_Insert_Duplicate(t *testing.T) {
	db, mock, cleanup := testutil.NewMockDB(t)
	defer cleanup()

	repo := NewTelemetryRepository(db)

	mock.ExpectExec("INSERT INTO pool_telemetry").
		WillReturnError(errors.New("Error 1062: Duplicate entry '2026-08-27 10:00:00' for key 'uk_sampled_at'"))

	err := repo.Insert(context.Background(), &models.TelemetrySample{SampledAt: time.Now()})

	assert.ErrorIs(t, err, ErrDuplicateEntry, "1062 应该映射成哨兵错误")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTelemetryRepository_Insert_NilSample(t *testing.T) {
	db, _, cleanup := testutil.NewMockDB(t)
	defer cleanup()

	repo := NewTelemetryRepository(db)

	err := repo.Insert(context.Background(), nil)

	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTelemetryRepository_Latest(t *testing.T) {
	db, mock, cleanup := testutil.NewMockDB(t)
	defer cleanup()

	repo := NewTelemetryRepository(db)

	now := time.Now()
	columns := []string{
		"id", "sampled_at", "health_score", "active", "waiting",
		"total_created", "failed", "retried", "epipe_errors", "avg_acquire_us",
	}

	mock.ExpectQuery("FROM pool_telemetry").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(int64(5), now, 80, 3, 2, int64(25), int64(3), int64(4), int64(2), int64(3000)))

	sample, err := repo.Latest(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, int64(5), sample.ID)
	assert.Equal(t, 80, sample.HealthScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTelemetryRepository_Latest_Empty(t *testing.T) {
	db, mock, cleanup := testutil.NewMockDB(t)
	defer cleanup()

	repo := NewTelemetryRepository(db)

	mock.ExpectQuery("FROM pool_telemetry").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Latest(context.Background())

	assert.ErrorIs(t, err, ErrNotFound, "空表应该返回 ErrNotFound 而不是 sql.ErrNoRows")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTelemetryRepository_Range_InvalidWindow(t *testing.T) {
	db, _, cleanup := testutil.NewMockDB(t)
	defer cleanup()

	repo := NewTelemetryRepository(db)

	now := time.Now()
	_, err := repo.Range(context.Background(), now, now.Add(-time.Hour))

	assert.ErrorIs(t, err, ErrInvalidInput, "窗口颠倒不应该打到数据库")
}

func TestTelemetryRepository_PruneBefore(t *testing.T) {
	db, mock, cleanup := testutil.NewMockDB(t)
	defer cleanup()

	repo := NewTelemetryRepository(db)

	cutoff := time.Now().Add(-7 * 24 * time.Hour)
	mock.ExpectExec("DELETE FROM pool_telemetry WHERE sampled_at <").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 12))

	removed, err := repo.PruneBefore(context.Background(), cutoff)

	assert.NoError(t, err)
	assert.Equal(t, int64(12), removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
