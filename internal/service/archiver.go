package core

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	models "e2e-infra/poolserver/internal/model"
	"e2e-infra/poolserver/internal/repository"
	"e2e-infra/poolserver/pkg/pool"
)

// latestStatusKey Redis 中最近一次快照的键，供外部看板直接读取
const latestStatusKey = "pool:latest_status"

// TelemetryArchiver 遥测归档服务
// 按 cron 计划把池遥测快照写入 MySQL 留作历史趋势，同时把最新快照
// 缓存到 Redis。MySQL 和 Redis 都可以缺省（nil），缺哪个就跳过哪个。
type TelemetryArchiver struct {
	source    PoolTelemetry
	repo      repository.TelemetryRepository
	redis     *redis.Client
	cron      *cron.Cron
	retention time.Duration

	mu      sync.Mutex
	running bool
}

// NewTelemetryArchiver 创建归档服务
// retentionDays <= 0 时禁用历史清理
func NewTelemetryArchiver(source PoolTelemetry, repo repository.TelemetryRepository, rdb *redis.Client, retentionDays int) *TelemetryArchiver {
	var retention time.Duration
	if retentionDays > 0 {
		retention = time.Duration(retentionDays) * 24 * time.Hour
	}
	return &TelemetryArchiver{
		source:    source,
		repo:      repo,
		redis:     rdb,
		cron:      cron.New(cron.WithSeconds()), // 支持秒级调度
		retention: retention,
	}
}

// Start 按给定的 cron 表达式启动归档
func (a *TelemetryArchiver) Start(cronSpec string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return nil
	}

	if _, err := a.cron.AddFunc(cronSpec, a.archiveOnce); err != nil {
		return NewErrorWithErr(ErrArchiveInvalidCron, err)
	}
	a.cron.Start()
	a.running = true

	log.Info().Str("cron_spec", cronSpec).Msg("Telemetry archiver started")
	return nil
}

// Stop 停止归档，等待进行中的任务结束
func (a *TelemetryArchiver) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return
	}
	ctx := a.cron.Stop()
	<-ctx.Done()
	a.running = false
	log.Info().Msg("Telemetry archiver stopped")
}

// IsRunning 返回归档服务运行状态
func (a *TelemetryArchiver) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// ArchiveNow 立即执行一次归档（调试接口）
func (a *TelemetryArchiver) ArchiveNow() {
	a.archiveOnce()
}

func (a *TelemetryArchiver) archiveOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := time.Now()
	status := a.source.Status()
	metrics := a.source.Metrics()

	if a.repo != nil {
		sample := &models.TelemetrySample{
			SampledAt:    now,
			HealthScore:  status.HealthScore,
			Active:       status.Active,
			Waiting:      status.Waiting,
			TotalCreated: metrics.TotalCreated,
			Failed:       metrics.Failed,
			Retried:      metrics.Retried,
			EPIPEErrors:  metrics.EPIPEErrors,
			AvgAcquireUs: metrics.AvgAcquireLatency.Microseconds(),
		}
		if err := a.repo.Insert(ctx, sample); err != nil {
			log.Error().Err(err).Msg("Failed to archive telemetry snapshot")
		}

		if a.retention > 0 {
			cutoff := now.Add(-a.retention)
			if removed, err := a.repo.PruneBefore(ctx, cutoff); err != nil {
				log.Error().Err(err).Msg("Failed to prune telemetry history")
			} else if removed > 0 {
				log.Debug().Int64("rows", removed).Time("cutoff", cutoff).Msg("Pruned telemetry history")
			}
		}
	}

	if a.redis != nil {
		a.publishLatest(ctx, now, status, metrics)
	}
}

func (a *TelemetryArchiver) publishLatest(ctx context.Context, now time.Time, status pool.Status, metrics pool.Metrics) {
	payload, err := json.Marshal(map[string]interface{}{
		"time":    now,
		"status":  status,
		"metrics": metrics,
	})
	if err != nil {
		return
	}
	if err := a.redis.Set(ctx, latestStatusKey, payload, time.Hour).Err(); err != nil {
		log.Warn().Err(err).Msg("Failed to cache latest pool status in Redis")
	}
}

// History 查询最近 limit 条归档记录，最新的在前
func (a *TelemetryArchiver) History(ctx context.Context, limit int) ([]*models.TelemetrySample, error) {
	if a.repo == nil {
		return nil, NewError(ErrDBConnection)
	}
	samples, err := a.repo.Recent(ctx, limit)
	if err != nil {
		return nil, NewErrorWithErr(ErrDBQuery, err)
	}
	return samples, nil
}

// Latest 查询最近一次归档的快照
func (a *TelemetryArchiver) Latest(ctx context.Context) (*models.TelemetrySample, error) {
	if a.repo == nil {
		return nil, NewError(ErrDBConnection)
	}
	sample, err := a.repo.Latest(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewErrorWithDetail(ErrDBNotFound, "no telemetry has been archived yet")
	}
	if err != nil {
		return nil, NewErrorWithErr(ErrDBQuery, err)
	}
	return sample, nil
}
