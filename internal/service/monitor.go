// Package core provides the pool telemetry monitor
package core

import (
	"sync"
	"time"

	"e2e-infra/poolserver/pkg/pool"
)

// PoolTelemetry 是监控采样所需的池接口
// Pool[T] 的任意实例化都满足它
type PoolTelemetry interface {
	Status() pool.Status
	Metrics() pool.Metrics
}

// TelemetrySnapshot 一次采样的完整切面：池状态 + 累计指标 + 系统指标
type TelemetrySnapshot struct {
	Time    time.Time    `json:"time"`
	Status  pool.Status  `json:"status"`
	Metrics pool.Metrics `json:"metrics"`
	System  *SystemStats `json:"system,omitempty"`
}

// Monitor 周期采样池遥测，保留历史并驱动告警
type Monitor struct {
	source       PoolTelemetry
	sysCollector *SystemStatsCollector
	alertManager *AlertManager
	history      []TelemetrySnapshot
	historySize  int
	mu           sync.RWMutex
	interval     time.Duration
	stopChan     chan struct{}
	running      bool
}

// NewMonitor 创建监控服务
// interval: 采集间隔
// historySize: 历史数据最大保存数量
func NewMonitor(source PoolTelemetry, interval time.Duration, historySize int) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if historySize <= 0 {
		historySize = 360 // 默认保存1小时数据（10秒间隔）
	}

	alertManager := NewAlertManager(1000)
	for _, rule := range DefaultAlertRules() {
		alertManager.AddRule(rule)
	}
	alertManager.AddHandler(NewLogAlertHandler())

	return &Monitor{
		source:       source,
		sysCollector: NewSystemStatsCollector(),
		alertManager: alertManager,
		history:      make([]TelemetrySnapshot, 0, historySize),
		historySize:  historySize,
		interval:     interval,
		stopChan:     make(chan struct{}),
	}
}

// Start 启动监控服务
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopChan = make(chan struct{})
	m.mu.Unlock()

	go m.collectLoop()
}

// Stop 停止监控服务
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	m.running = false
	close(m.stopChan)
}

// IsRunning 检查监控服务是否正在运行
func (m *Monitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// collectLoop 定时采集循环
func (m *Monitor) collectLoop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.collect()

	for {
		select {
		case <-ticker.C:
			m.collect()
		case <-m.stopChan:
			return
		}
	}
}

// collect 采集一次快照并检查告警
func (m *Monitor) collect() {
	snapshot := TelemetrySnapshot{
		Time:    time.Now(),
		Status:  m.source.Status(),
		Metrics: m.source.Metrics(),
	}
	// 系统指标采集失败不影响池遥测
	if sys, err := m.sysCollector.Collect(); err == nil {
		snapshot.System = sys
	}

	m.mu.Lock()
	m.history = append(m.history, snapshot)
	if len(m.history) > m.historySize {
		m.history = m.history[len(m.history)-m.historySize:]
	}
	m.mu.Unlock()

	m.alertManager.Check(snapshot)
}

// GetCurrentSnapshot 获取即时快照（不入历史）
func (m *Monitor) GetCurrentSnapshot() TelemetrySnapshot {
	snapshot := TelemetrySnapshot{
		Time:    time.Now(),
		Status:  m.source.Status(),
		Metrics: m.source.Metrics(),
	}
	if sys, err := m.sysCollector.Collect(); err == nil {
		snapshot.System = sys
	}
	return snapshot
}

// GetHistory 获取历史数据，最新的在前
// limit: 返回的最大数量，0 表示返回全部
func (m *Monitor) GetHistory(limit int) []TelemetrySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.history) {
		limit = len(m.history)
	}

	result := make([]TelemetrySnapshot, limit)
	copy(result, m.history[len(m.history)-limit:])
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result
}

// GetAlerts 获取告警列表
func (m *Monitor) GetAlerts(limit int) []Alert {
	return m.alertManager.GetAlerts(limit)
}

// GetUnresolvedAlerts 获取未解决的告警
func (m *Monitor) GetUnresolvedAlerts() []Alert {
	return m.alertManager.GetUnresolvedAlerts()
}

// AddAlertRule 添加告警规则
func (m *Monitor) AddAlertRule(rule *AlertRule) {
	m.alertManager.AddRule(rule)
}

// GetStats 获取监控统计信息
func (m *Monitor) GetStats() map[string]interface{} {
	m.mu.RLock()
	historyLen := len(m.history)
	running := m.running
	m.mu.RUnlock()

	status := m.source.Status()
	metrics := m.source.Metrics()
	unresolved := m.alertManager.GetUnresolvedAlerts()

	return map[string]interface{}{
		"running":       running,
		"interval_ms":   m.interval.Milliseconds(),
		"history_size":  m.historySize,
		"history_count": historyLen,

		"active":         status.Active,
		"waiting":        status.Waiting,
		"health_score":   status.HealthScore,
		"total_created":  metrics.TotalCreated,
		"failed":         metrics.Failed,
		"retried":        metrics.Retried,
		"epipe_errors":   metrics.EPIPEErrors,
		"avg_acquire_ms": float64(metrics.AvgAcquireLatency.Microseconds()) / 1000,

		"unresolved_alerts": len(unresolved),
		"timestamp":         time.Now(),
	}
}
