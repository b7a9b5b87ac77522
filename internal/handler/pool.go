package api

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	core "e2e-infra/poolserver/internal/service"
	"e2e-infra/poolserver/pkg/config"
)

// PoolHandler handles pool diagnostics API requests
type PoolHandler struct {
	pool     PoolAdmin
	archiver *core.TelemetryArchiver
	retired  *core.RetiredCache
	cfg      *config.Config
}

// NewPoolHandler creates a new pool handler
func NewPoolHandler(pool PoolAdmin, archiver *core.TelemetryArchiver, retired *core.RetiredCache, cfg *config.Config) *PoolHandler {
	return &PoolHandler{
		pool:     pool,
		archiver: archiver,
		retired:  retired,
		cfg:      cfg,
	}
}

// Health 健康检查，未认证即可访问
// GET /health
func (h *PoolHandler) Health(c *gin.Context) {
	status := h.pool.Status()
	state := "ok"
	if status.HealthScore < 50 {
		state = "degraded"
	}
	c.JSON(200, gin.H{
		"status":       state,
		"health_score": status.HealthScore,
		"active":       status.Active,
		"waiting":      status.Waiting,
	})
}

// GetStatus 获取池实时状态
// GET /api/admin/pool/status
func (h *PoolHandler) GetStatus(c *gin.Context) {
	core.Success(c, h.pool.Status())
}

// GetMetrics 获取累计指标
// GET /api/admin/pool/metrics
func (h *PoolHandler) GetMetrics(c *gin.Context) {
	core.Success(c, gin.H{
		"metrics": h.pool.Metrics(),
		"status":  h.pool.Status(),
		"size":    h.pool.Size(),
	})
}

// GetRetired 列出最近销毁的资源
// GET /api/admin/pool/retired
func (h *PoolHandler) GetRetired(c *gin.Context) {
	if h.retired == nil {
		core.Success(c, []core.RetiredRecord{})
		return
	}
	core.Success(c, h.retired.List())
}

// GetRetiredByID 查询单个已销毁资源
// GET /api/admin/pool/retired/:id
func (h *PoolHandler) GetRetiredByID(c *gin.Context) {
	if h.retired == nil {
		core.FailWithCode(c, core.ErrNotFound)
		return
	}
	record, ok := h.retired.Get(c.Param("id"))
	if !ok {
		core.FailWithMessage(c, core.ErrPoolUnknownResource, "资源不存在或未被销毁")
		return
	}
	core.Success(c, record)
}

// Sweep 立即触发一次空闲清理
// POST /api/admin/pool/sweep
func (h *PoolHandler) Sweep(c *gin.Context) {
	reclaimed := h.pool.SweepIdle()
	log.Info().Int("reclaimed", reclaimed).Msg("Manual idle sweep triggered")
	core.Success(c, gin.H{"reclaimed": reclaimed})
}

// GetConfig returns current pool configuration
// GET /api/admin/pool/config
func (h *PoolHandler) GetConfig(c *gin.Context) {
	core.Success(c, gin.H{
		"max_concurrent": h.pool.Status().MaxConcurrent,
		"max_retries":    h.cfg.Pool.MaxRetries,
		"retry_delay_ms": h.cfg.Pool.RetryDelayMs,
	})
}

// UpdateConfig updates pool configuration at runtime
// 零值字段保持不变；修改同时广播给其它实例
// POST /api/admin/pool/config
func (h *PoolHandler) UpdateConfig(c *gin.Context) {
	var req PoolConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		core.FailWithMessage(c, core.ErrInvalidParam, err.Error())
		return
	}

	if req.MaxConcurrent < 0 || req.MaxConcurrent > 1000 {
		core.FailWithMessage(c, core.ErrPoolInvalidConfig, "max_concurrent must be between 1 and 1000")
		return
	}
	if req.MaxRetries < 0 || req.MaxRetries > 20 {
		core.FailWithMessage(c, core.ErrPoolInvalidConfig, "max_retries must be between 0 and 20")
		return
	}
	if req.RetryDelayMs < 0 || req.RetryDelayMs > 60000 {
		core.FailWithMessage(c, core.ErrPoolInvalidConfig, "retry_delay_ms must be between 0 and 60000")
		return
	}

	if req.MaxConcurrent > 0 {
		h.pool.Resize(req.MaxConcurrent)
		h.cfg.Pool.MaxConcurrent = req.MaxConcurrent
	}
	if req.MaxRetries > 0 || req.RetryDelayMs > 0 {
		maxRetries := req.MaxRetries
		if maxRetries == 0 {
			maxRetries = h.cfg.Pool.MaxRetries
		}
		delayMs := req.RetryDelayMs
		if delayMs == 0 {
			delayMs = h.cfg.Pool.RetryDelayMs
		}
		h.pool.SetRetryPolicy(maxRetries, time.Duration(delayMs)*time.Millisecond)
		h.cfg.Pool.MaxRetries = maxRetries
		h.cfg.Pool.RetryDelayMs = delayMs
	}

	// 通过 Redis 广播给其它实例，Redis 不可用时只改本地
	if rdb, exists := c.Get("redis"); exists {
		msg := core.ReloadMessage{
			MaxConcurrent: req.MaxConcurrent,
			MaxRetries:    req.MaxRetries,
			RetryDelayMs:  req.RetryDelayMs,
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := core.PublishReload(ctx, rdb.(*redis.Client), msg); err != nil {
			log.Warn().Err(err).Msg("Failed to broadcast pool config change")
		}
	}

	core.Success(c, gin.H{
		"success": true,
		"config": gin.H{
			"max_concurrent": h.cfg.Pool.MaxConcurrent,
			"max_retries":    h.cfg.Pool.MaxRetries,
			"retry_delay_ms": h.cfg.Pool.RetryDelayMs,
		},
	})
}

// GetHistory 查询归档的遥测历史
// GET /api/admin/pool/history?limit=100
func (h *PoolHandler) GetHistory(c *gin.Context) {
	if h.archiver == nil {
		core.FailWithCode(c, core.ErrArchiveNotRunning)
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 1 || limit > 1000 {
		core.FailWithMessage(c, core.ErrInvalidParam, "limit must be between 1 and 1000")
		return
	}

	samples, err := h.archiver.History(c.Request.Context(), limit)
	if err != nil {
		core.HandleError(c, err)
		return
	}
	core.Success(c, samples)
}

// GetLatestArchived 查询最近一次归档的快照
// GET /api/admin/pool/history/latest
func (h *PoolHandler) GetLatestArchived(c *gin.Context) {
	if h.archiver == nil {
		core.FailWithCode(c, core.ErrArchiveNotRunning)
		return
	}

	sample, err := h.archiver.Latest(c.Request.Context())
	if err != nil {
		core.HandleError(c, err)
		return
	}
	core.Success(c, sample)
}

// ArchiveNow 立即归档一次遥测样本
// POST /api/admin/pool/archive
func (h *PoolHandler) ArchiveNow(c *gin.Context) {
	if h.archiver == nil {
		core.FailWithCode(c, core.ErrArchiveNotRunning)
		return
	}
	h.archiver.ArchiveNow()
	core.Success(c, gin.H{"success": true})
}
