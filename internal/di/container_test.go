package di

import (
	"testing"

	"github.com/stretchr/testify/assert"

	testutil "e2e-infra/poolserver/internal/testing"
	"e2e-infra/poolserver/pkg/config"
)

func TestContainer(t *testing.T) {
	db, _, cleanup := testutil.NewMockDB(t)
	defer cleanup()

	cfg := &config.Config{
		Pool: config.PoolConfig{
			RetiredCacheSize: 32,
		},
	}

	container := NewContainer(db, cfg)

	t.Run("provides repositories", func(t *testing.T) {
		assert.NotNil(t, container.GetTelemetryRepository())
		assert.NotNil(t, container.GetRetiredCache())
	})

	t.Run("singleton pattern", func(t *testing.T) {
		repo1 := container.GetTelemetryRepository()
		repo2 := container.GetTelemetryRepository()

		// 应该返回相同的实例
		assert.Same(t, repo1, repo2)

		cache1 := container.GetRetiredCache()
		cache2 := container.GetRetiredCache()
		assert.Same(t, cache1, cache2)
	})

	t.Run("provides database", func(t *testing.T) {
		assert.NotNil(t, container.GetDB())
		assert.Same(t, db, container.GetDB())
	})

	t.Run("provides config", func(t *testing.T) {
		assert.NotNil(t, container.GetConfig())
		assert.Same(t, cfg, container.GetConfig())
	})
}

func TestContainerWithRedis(t *testing.T) {
	db, _, cleanup := testutil.NewMockDB(t)
	defer cleanup()

	cfg := &config.Config{}
	container := NewContainer(db, cfg)

	t.Run("redis is nil by default", func(t *testing.T) {
		assert.Nil(t, container.GetRedis())
	})
}

func TestContainerClose(t *testing.T) {
	db, _, cleanup := testutil.NewMockDB(t)
	defer cleanup()

	cfg := &config.Config{}
	container := NewContainer(db, cfg)

	t.Run("close does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			container.Close()
		})
	})
}
