// Package api provides the admin API routes and handlers
package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRouter configures all API routes
func SetupRouter(r *gin.Engine, deps *Dependencies) {
	// 全局依赖注入中间件：将 redis 和 config 注入到 context 中
	// 供使用 c.Get("redis") 和 c.Get("config") 的 Handler 使用
	r.Use(DependencyInjectionMiddleware(deps.Redis, deps.Config))

	poolHandler := NewPoolHandler(deps.Pool, deps.Archiver, deps.Retired, deps.Config)

	// Health check (public - no middleware required)
	r.GET("/health", poolHandler.Health)

	// Auth routes (public - no middleware required)
	authGroup := r.Group("/api/auth")
	{
		authHandler := NewAuthHandler(&deps.Config.Auth)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/logout", authHandler.Logout)

		// Protected auth routes (require JWT)
		authProtected := authGroup.Group("")
		authProtected.Use(AuthMiddleware(deps.Config.Auth.JWTSecret))
		{
			authProtected.GET("/profile", authHandler.Profile)
		}
	}

	// Admin API group (require JWT)
	admin := r.Group("/api/admin")
	admin.Use(AuthMiddleware(deps.Config.Auth.JWTSecret))

	// Pool diagnostics routes
	poolGroup := admin.Group("/pool")
	{
		poolGroup.GET("/status", poolHandler.GetStatus)
		poolGroup.GET("/metrics", poolHandler.GetMetrics)
		poolGroup.GET("/retired", poolHandler.GetRetired)
		poolGroup.GET("/retired/:id", poolHandler.GetRetiredByID)
		poolGroup.POST("/sweep", poolHandler.Sweep)
		poolGroup.GET("/config", poolHandler.GetConfig)
		poolGroup.POST("/config", poolHandler.UpdateConfig)
		poolGroup.GET("/history", poolHandler.GetHistory)
		poolGroup.GET("/history/latest", poolHandler.GetLatestArchived)
		poolGroup.POST("/archive", poolHandler.ArchiveNow)
	}

	// Monitor routes
	dashboardHandler := NewDashboardHandler(deps.Monitor, deps.SystemStats)
	monitorGroup := admin.Group("/monitor")
	{
		monitorGroup.GET("/stats", dashboardHandler.MonitorStats)
		monitorGroup.GET("/history", dashboardHandler.MonitorHistory)
		monitorGroup.GET("/alerts", dashboardHandler.Alerts)
	}

	// System info routes
	systemGroup := admin.Group("/system")
	{
		systemGroup.GET("/info", dashboardHandler.SystemInfo)
		systemGroup.GET("/stats", dashboardHandler.SystemStats)
	}

	// WebSocket routes (不需要认证)
	wsHandler := NewWebSocketHandler(deps.Pool, deps.SystemStats)
	r.GET("/ws/pool-events", wsHandler.PoolEvents)
	r.GET("/ws/pool-status", wsHandler.PoolStatus)
	r.GET("/ws/system-stats", wsHandler.SystemStats)
}
