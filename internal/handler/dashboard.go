package api

import (
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	core "e2e-infra/poolserver/internal/service"
)

var startTime = time.Now()

// DashboardHandler 监控面板 handler
type DashboardHandler struct {
	monitor     *core.Monitor
	systemStats *core.SystemStatsCollector
}

// NewDashboardHandler 创建 DashboardHandler
func NewDashboardHandler(monitor *core.Monitor, systemStats *core.SystemStatsCollector) *DashboardHandler {
	return &DashboardHandler{monitor: monitor, systemStats: systemStats}
}

// MonitorStats 获取监控汇总
// GET /api/admin/monitor/stats
func (h *DashboardHandler) MonitorStats(c *gin.Context) {
	if h.monitor == nil {
		core.Success(c, gin.H{})
		return
	}
	core.Success(c, h.monitor.GetStats())
}

// MonitorHistory 获取内存中的采样历史，最新在前
// GET /api/admin/monitor/history?limit=60
func (h *DashboardHandler) MonitorHistory(c *gin.Context) {
	if h.monitor == nil {
		core.Success(c, []core.TelemetrySnapshot{})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "60"))
	if err != nil || limit < 1 || limit > 600 {
		core.FailWithMessage(c, core.ErrInvalidParam, "limit must be between 1 and 600")
		return
	}
	core.Success(c, h.monitor.GetHistory(limit))
}

// Alerts 获取告警列表
// GET /api/admin/monitor/alerts?unresolved=true
func (h *DashboardHandler) Alerts(c *gin.Context) {
	if h.monitor == nil {
		core.Success(c, []core.Alert{})
		return
	}

	if c.Query("unresolved") == "true" {
		core.Success(c, h.monitor.GetUnresolvedAlerts())
		return
	}
	core.Success(c, h.monitor.GetAlerts(100))
}

// SystemStats 获取主机资源统计
// GET /api/admin/system/stats
func (h *DashboardHandler) SystemStats(c *gin.Context) {
	if h.systemStats == nil {
		core.FailWithCode(c, core.ErrInternalServer)
		return
	}
	stats, err := h.systemStats.Collect()
	if err != nil {
		core.HandleError(c, err)
		return
	}
	core.Success(c, stats)
}

// SystemInfo 获取进程运行信息
// GET /api/admin/system/info
func (h *DashboardHandler) SystemInfo(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	core.Success(c, gin.H{
		"go_version":     runtime.Version(),
		"goroutines":     runtime.NumGoroutine(),
		"num_cpu":        runtime.NumCPU(),
		"heap_alloc_mb":  float64(mem.HeapAlloc) / 1024 / 1024,
		"heap_sys_mb":    float64(mem.HeapSys) / 1024 / 1024,
		"gc_count":       mem.NumGC,
		"uptime_seconds": int64(time.Since(startTime).Seconds()),
	})
}
