// Package di provides dependency injection container for the application.
// It manages the lifecycle of repositories, services, and other dependencies.
package di

import (
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"e2e-infra/poolserver/internal/repository"
	core "e2e-infra/poolserver/internal/service"
	"e2e-infra/poolserver/pkg/config"
)

// Container is the dependency injection container that manages
// all application dependencies with lazy initialization and singleton pattern.
type Container struct {
	db     *sqlx.DB
	redis  *redis.Client
	config *config.Config

	mu sync.RWMutex

	// Lazily initialized singletons
	telemetryRepo repository.TelemetryRepository
	retired       *core.RetiredCache
}

// NewContainer creates a new dependency injection container.
func NewContainer(db *sqlx.DB, cfg *config.Config) *Container {
	return &Container{
		db:     db,
		config: cfg,
	}
}

// SetRedis sets the Redis client for the container.
func (c *Container) SetRedis(redis *redis.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.redis = redis
}

// GetDB returns the database connection.
func (c *Container) GetDB() *sqlx.DB {
	return c.db
}

// GetRedis returns the Redis client (may be nil if not configured).
func (c *Container) GetRedis() *redis.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.redis
}

// GetConfig returns the application configuration.
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetTelemetryRepository returns the telemetry repository singleton.
func (c *Container) GetTelemetryRepository() repository.TelemetryRepository {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.telemetryRepo == nil {
		c.telemetryRepo = repository.NewTelemetryRepository(c.db)
	}
	return c.telemetryRepo
}

// GetRetiredCache returns the retired resource cache singleton.
func (c *Container) GetRetiredCache() *core.RetiredCache {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.retired == nil {
		size := 256
		if c.config != nil && c.config.Pool.RetiredCacheSize > 0 {
			size = c.config.Pool.RetiredCacheSize
		}
		// 容量是正数时 NewRetiredCache 不会失败
		c.retired, _ = core.NewRetiredCache(size)
	}
	return c.retired
}

// NewArchiver builds a telemetry archiver over the container's database and
// Redis handles for the given pool.
func (c *Container) NewArchiver(source core.PoolTelemetry) *core.TelemetryArchiver {
	retention := 0
	if c.config != nil {
		retention = c.config.Archive.RetentionDays
	}
	return core.NewTelemetryArchiver(source, c.GetTelemetryRepository(), c.GetRedis(), retention)
}

// Close releases all resources held by the container.
// Note: The container does not own the database connection,
// so it does not close it. The caller is responsible for closing the database.
func (c *Container) Close() {
	// Currently, singletons don't need explicit cleanup.
	// This method is provided for future extensibility
	// (e.g., stopping background workers started via the container).
}
