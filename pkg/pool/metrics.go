package pool

import (
	"math"
	"time"
)

// Metrics 池运行指标快照（拷贝，不是活引用）
// 自池创建起累计，Shutdown 之后仍可读取，用于测试结束后的事后诊断
type Metrics struct {
	ActiveConnections int           `json:"active_connections"`
	TotalCreated      int64         `json:"total_created"`
	Failed            int64         `json:"failed"`
	Retried           int64         `json:"retried"`
	EPIPEErrors       int64         `json:"epipe_errors"`
	AvgAcquireLatency time.Duration `json:"avg_acquire_latency_ns"`
}

// Status 池的即时状态，HealthScore 是 0-100 的单值健康信号
type Status struct {
	Active        int `json:"active"`
	Total         int `json:"total"`
	Waiting       int `json:"waiting"`
	MaxConcurrent int `json:"max_concurrent"`
	HealthScore   int `json:"health_score"`
}

// HealthScore computes the 0-100 health figure:
//
//	100 − (failed/total)×50 − (epipe/total)×30 − (waiting/maxConcurrent)×20
//
// clamped to [0, 100] and rounded. Failures weigh more than queue pressure: a
// busy-but-healthy pool bottoms out around 80, while sustained failures drag
// the score toward 0 because they point at backend exhaustion, not load.
func HealthScore(failed, epipeErrors, total int64, waiting, maxConcurrent int) int {
	t := float64(total)
	if t < 1 {
		t = 1
	}
	mc := float64(maxConcurrent)
	if mc < 1 {
		mc = 1
	}

	penalty := float64(failed)/t*50 +
		float64(epipeErrors)/t*30 +
		float64(waiting)/mc*20

	score := 100 - penalty
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return int(math.Round(score))
}

// counters 由池锁保护的内部计数器
type counters struct {
	totalCreated int64
	failed       int64
	retried      int64
	epipeErrors  int64

	// acquire 延迟的滚动均值（运行和/计数）
	latencySum   time.Duration
	latencyCount int64
}

func (c *counters) recordLatency(d time.Duration) {
	c.latencySum += d
	c.latencyCount++
}

func (c *counters) avgLatency() time.Duration {
	if c.latencyCount == 0 {
		return 0
	}
	return c.latencySum / time.Duration(c.latencyCount)
}
