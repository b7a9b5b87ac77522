//go:build integration

package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "e2e-infra/poolserver/internal/model"
)

func TestTelemetryRepository_Integration(t *testing.T) {
	ctx := getTestContext()
	repo := testContainer.GetTelemetryRepository()

	sample := &models.TelemetrySample{
		SampledAt:    time.Now().Truncate(time.Second),
		HealthScore:  88,
		Active:       3,
		Waiting:      1,
		TotalCreated: 42,
		Failed:       2,
		Retried:      5,
		EPIPEErrors:  1,
		AvgAcquireUs: 1500,
	}

	t.Run("insert assigns id", func(t *testing.T) {
		err := repo.Insert(ctx, sample)

		require.NoError(t, err)
		assert.Greater(t, sample.ID, int64(0))
	})

	t.Run("recent returns newest first", func(t *testing.T) {
		samples, err := repo.Recent(ctx, 10)

		require.NoError(t, err)
		require.NotEmpty(t, samples)
		assert.Equal(t, sample.ID, samples[0].ID, "刚插入的样本应排在最前")

		for i := 1; i < len(samples); i++ {
			assert.False(t, samples[i].SampledAt.After(samples[i-1].SampledAt),
				"采样时间应按降序排列")
		}
	})

	t.Run("range covers the inserted sample", func(t *testing.T) {
		from := sample.SampledAt.Add(-time.Minute)
		to := sample.SampledAt.Add(time.Minute)
		samples, err := repo.Range(ctx, from, to)

		require.NoError(t, err)
		found := false
		for _, s := range samples {
			if s.ID == sample.ID {
				found = true
			}
		}
		assert.True(t, found, "区间查询应包含刚插入的样本")
	})

	t.Run("prune removes old samples", func(t *testing.T) {
		old := &models.TelemetrySample{
			SampledAt:    time.Now().AddDate(0, 0, -365),
			HealthScore:  10,
			TotalCreated: 1,
		}
		require.NoError(t, repo.Insert(ctx, old))

		pruned, err := repo.PruneBefore(ctx, time.Now().AddDate(0, 0, -30))

		require.NoError(t, err)
		assert.GreaterOrEqual(t, pruned, int64(1))
		t.Logf("Pruned %d samples", pruned)
	})
}
