package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// PoolControl 热更新需要的池控制面
type PoolControl interface {
	Resize(maxConcurrent int)
	SetRetryPolicy(maxRetries int, retryDelay time.Duration)
}

// ReloadMessage pool:reload 频道上的消息格式
// 字段为零值时表示不修改对应参数
type ReloadMessage struct {
	MaxConcurrent int `json:"max_concurrent"`
	MaxRetries    int `json:"max_retries"`
	RetryDelayMs  int `json:"retry_delay_ms"`
}

// PoolReloader 池配置热更新监听器
// 订阅 Redis 的 pool:reload 频道，多实例部署时一条消息能同时调整所有实例
type PoolReloader struct {
	redis  *redis.Client
	target PoolControl
	ctx    context.Context
	cancel context.CancelFunc
}

// NewPoolReloader 创建热更新监听器
func NewPoolReloader(rdb *redis.Client, target PoolControl) *PoolReloader {
	ctx, cancel := context.WithCancel(context.Background())
	return &PoolReloader{
		redis:  rdb,
		target: target,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start 启动监听
func (r *PoolReloader) Start() {
	go r.listen()
	log.Info().Msg("Pool reloader started, listening on pool:reload channel")
}

// Stop 停止监听
func (r *PoolReloader) Stop() {
	r.cancel()
	log.Info().Msg("Pool reloader stopped")
}

// listen 监听 Redis 消息
func (r *PoolReloader) listen() {
	pubsub := r.redis.Subscribe(r.ctx, "pool:reload")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-r.ctx.Done():
			return
		case msg := <-ch:
			if msg == nil {
				// Channel closed, stop listening
				return
			}
			r.handleMessage(msg.Payload)
		}
	}
}

// handleMessage 应用一条热更新消息
func (r *PoolReloader) handleMessage(payload string) {
	var msg ReloadMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		log.Warn().Err(err).Str("payload", payload).Msg("Invalid reload message")
		return
	}

	if msg.MaxConcurrent > 0 {
		r.target.Resize(msg.MaxConcurrent)
	}
	if msg.MaxRetries > 0 || msg.RetryDelayMs > 0 {
		r.target.SetRetryPolicy(msg.MaxRetries, time.Duration(msg.RetryDelayMs)*time.Millisecond)
	}

	log.Info().
		Int("max_concurrent", msg.MaxConcurrent).
		Int("max_retries", msg.MaxRetries).
		Int("retry_delay_ms", msg.RetryDelayMs).
		Msg("Pool configuration reloaded from Redis")
}

// PublishReload 向 pool:reload 频道发布一条热更新消息
func PublishReload(ctx context.Context, rdb *redis.Client, msg ReloadMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := rdb.Publish(ctx, "pool:reload", payload).Err(); err != nil {
		return NewErrorWithErr(ErrCachePublish, err)
	}
	return nil
}
