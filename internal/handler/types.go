package api

import (
	"time"

	"github.com/redis/go-redis/v9"

	core "e2e-infra/poolserver/internal/service"
	"e2e-infra/poolserver/pkg/config"
	"e2e-infra/poolserver/pkg/pool"
)

// PoolAdmin 诊断 API 需要的池控制面
// Pool[T] 的任意实例化都满足它；Acquire/Release 属于库调用方，不经过 HTTP
type PoolAdmin interface {
	Status() pool.Status
	Metrics() pool.Metrics
	SweepIdle() int
	Resize(maxConcurrent int)
	SetRetryPolicy(maxRetries int, retryDelay time.Duration)
	Subscribe(kind pool.EventKind, h pool.Handler) int
	Unsubscribe(kind pool.EventKind, token int)
	Size() int
}

// Dependencies holds all dependencies required by the API handlers
type Dependencies struct {
	Pool        PoolAdmin
	Redis       *redis.Client
	Config      *config.Config
	Monitor     *core.Monitor
	Archiver    *core.TelemetryArchiver
	Retired     *core.RetiredCache
	SystemStats *core.SystemStatsCollector
}

// PoolConfigRequest 运行时调整池配置的请求体
// 零值字段表示不修改
type PoolConfigRequest struct {
	MaxConcurrent int `json:"max_concurrent"`
	MaxRetries    int `json:"max_retries"`
	RetryDelayMs  int `json:"retry_delay_ms"`
}
