// Package core provides alerting for pool telemetry
package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// AlertLevel 告警级别
type AlertLevel string

const (
	AlertLevelInfo    AlertLevel = "info"
	AlertLevelWarning AlertLevel = "warning"
	AlertLevelError   AlertLevel = "error"
)

// Alert 告警记录
type Alert struct {
	ID        string     `json:"id"`
	Level     AlertLevel `json:"level"`
	Type      string     `json:"type"`
	Message   string     `json:"message"`
	Value     float64    `json:"value"`
	Threshold float64    `json:"threshold"`
	Timestamp time.Time  `json:"timestamp"`
	Resolved  bool       `json:"resolved"`
}

// AlertRule 告警规则
type AlertRule struct {
	Name      string
	Type      string
	Condition func(TelemetrySnapshot) (bool, float64) // 返回是否触发和当前值
	Threshold float64
	Level     AlertLevel
	Message   string
	Cooldown  time.Duration
	lastAlert time.Time
}

// AlertHandler 告警处理器接口
type AlertHandler interface {
	Handle(alert Alert)
}

// LogAlertHandler 日志告警处理器（使用 zerolog）
type LogAlertHandler struct{}

// NewLogAlertHandler 创建日志告警处理器
func NewLogAlertHandler() *LogAlertHandler {
	return &LogAlertHandler{}
}

// Handle 处理告警（写入日志）
func (h *LogAlertHandler) Handle(alert Alert) {
	logEvent := log.With().
		Str("alert_id", alert.ID).
		Str("type", alert.Type).
		Float64("value", alert.Value).
		Float64("threshold", alert.Threshold).
		Time("timestamp", alert.Timestamp).
		Logger()

	switch alert.Level {
	case AlertLevelError:
		logEvent.Error().Msg(alert.Message)
	case AlertLevelWarning:
		logEvent.Warn().Msg(alert.Message)
	default:
		logEvent.Info().Msg(alert.Message)
	}
}

// AlertManager 告警管理器
type AlertManager struct {
	mu        sync.RWMutex
	rules     []*AlertRule
	alerts    []Alert
	maxAlerts int
	handlers  []AlertHandler
	alertSeq  int64
}

// NewAlertManager 创建告警管理器
func NewAlertManager(maxAlerts int) *AlertManager {
	if maxAlerts <= 0 {
		maxAlerts = 1000
	}
	return &AlertManager{
		rules:     make([]*AlertRule, 0),
		alerts:    make([]Alert, 0),
		maxAlerts: maxAlerts,
		handlers:  make([]AlertHandler, 0),
	}
}

// AddHandler 添加告警处理器
func (m *AlertManager) AddHandler(handler AlertHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
}

// AddRule 添加告警规则
func (m *AlertManager) AddRule(rule *AlertRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule)
}

// Check 检查所有规则，触发告警
func (m *AlertManager) Check(snapshot TelemetrySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()

	for _, rule := range m.rules {
		if rule.Cooldown > 0 && now.Sub(rule.lastAlert) < rule.Cooldown {
			continue
		}

		triggered, value := rule.Condition(snapshot)
		if !triggered {
			m.resolveAlertsByType(rule.Type)
			continue
		}

		m.alertSeq++
		alert := Alert{
			ID:        fmt.Sprintf("alert-%d-%d", now.UnixNano(), m.alertSeq),
			Level:     rule.Level,
			Type:      rule.Type,
			Message:   fmt.Sprintf("%s: 当前值 %.2f, 阈值 %.2f", rule.Message, value, rule.Threshold),
			Value:     value,
			Threshold: rule.Threshold,
			Timestamp: now,
			Resolved:  false,
		}

		m.alerts = append(m.alerts, alert)
		if len(m.alerts) > m.maxAlerts {
			m.alerts = m.alerts[len(m.alerts)-m.maxAlerts:]
		}
		rule.lastAlert = now

		for _, handler := range m.handlers {
			handler.Handle(alert)
		}
	}
}

// resolveAlertsByType 将指定类型的未解决告警标记为已解决
func (m *AlertManager) resolveAlertsByType(alertType string) {
	for i := range m.alerts {
		if m.alerts[i].Type == alertType && !m.alerts[i].Resolved {
			m.alerts[i].Resolved = true
		}
	}
}

// GetAlerts 获取最近告警，最新的在前
func (m *AlertManager) GetAlerts(limit int) []Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.alerts) {
		limit = len(m.alerts)
	}

	result := make([]Alert, limit)
	copy(result, m.alerts[len(m.alerts)-limit:])
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result
}

// GetUnresolvedAlerts 获取未解决告警
func (m *AlertManager) GetUnresolvedAlerts() []Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Alert, 0)
	for _, alert := range m.alerts {
		if !alert.Resolved {
			result = append(result, alert)
		}
	}
	return result
}

// DefaultAlertRules 默认告警规则
// 健康分和失败率针对的是后端被压垮的前兆，队列积压只是负载信号
func DefaultAlertRules() []*AlertRule {
	return []*AlertRule{
		// 健康分过低 (<50)
		{
			Name: "low_health_score",
			Type: "health_score",
			Condition: func(s TelemetrySnapshot) (bool, float64) {
				return s.Status.HealthScore < 50, float64(s.Status.HealthScore)
			},
			Threshold: 50,
			Level:     AlertLevelError,
			Message:   "资源池健康分过低",
			Cooldown:  time.Minute,
		},
		// EPIPE 错误占比过高 (>20%)
		{
			Name: "high_epipe_rate",
			Type: "epipe_rate",
			Condition: func(s TelemetrySnapshot) (bool, float64) {
				if s.Metrics.TotalCreated < 10 {
					return false, 0
				}
				rate := float64(s.Metrics.EPIPEErrors) / float64(s.Metrics.TotalCreated) * 100
				return rate > 20, rate
			},
			Threshold: 20,
			Level:     AlertLevelWarning,
			Message:   "EPIPE 错误率过高",
			Cooldown:  5 * time.Minute,
		},
		// 等待队列长期满载
		{
			Name: "queue_saturated",
			Type: "queue",
			Condition: func(s TelemetrySnapshot) (bool, float64) {
				return s.Status.Waiting >= s.Status.MaxConcurrent*2, float64(s.Status.Waiting)
			},
			Threshold: 0,
			Level:     AlertLevelWarning,
			Message:   "等待队列积压",
			Cooldown:  time.Minute,
		},
		// 高内存使用 (>1GB)
		{
			Name: "high_memory_usage",
			Type: "memory",
			Condition: func(s TelemetrySnapshot) (bool, float64) {
				if s.System == nil {
					return false, 0
				}
				usedMB := float64(s.System.Memory.UsedBytes) / (1024 * 1024)
				return s.System.Memory.UsagePercent > 90, usedMB
			},
			Threshold: 90,
			Level:     AlertLevelError,
			Message:   "系统内存使用过高(MB)",
			Cooldown:  5 * time.Minute,
		},
	}
}
