// Package main is the entry point for the pool diagnostics server
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"e2e-infra/poolserver/internal/factory"
	api "e2e-infra/poolserver/internal/handler"
	"e2e-infra/poolserver/internal/repository"
	core "e2e-infra/poolserver/internal/service"
	"e2e-infra/poolserver/pkg/config"
	"e2e-infra/poolserver/pkg/pool"
)

func main() {
	// Find project root directory
	projectRoot := findProjectRoot()

	// Load configuration
	configPath := filepath.Join(projectRoot, "config.yaml")
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	// Configure logger
	if err := core.SetupLogger(cfg.Log, cfg.Server.Debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logger: %v\n", err)
	}

	log.Info().
		Str("project_root", projectRoot).
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Bool("debug", cfg.Server.Debug).
		Msg("Starting pool server")

	// Initialize database connection (optional, needed for telemetry archiving)
	var telemetryRepo repository.TelemetryRepository
	if cfg.Database.Enabled {
		if err := repository.Init(&cfg.Database); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize database, telemetry archiving disabled")
		} else {
			defer repository.Close()
			telemetryRepo = repository.NewTelemetryRepository(repository.GetDB())
			log.Info().Str("host", cfg.Database.Host).Msg("Database connected")
		}
	} else {
		log.Info().Msg("Database is disabled in configuration")
	}

	// Initialize Redis connection (optional)
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		// Test connection
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("Failed to connect to Redis, some features will be disabled")
			redisClient = nil
		} else {
			log.Info().
				Str("host", cfg.Redis.Host).
				Int("port", cfg.Redis.Port).
				Msg("Redis connected")
		}
		cancel()
	} else {
		log.Info().Msg("Redis is disabled in configuration")
	}

	// Create the bounded session pool
	sessionPool := pool.New(pool.Config[*factory.HTTPSession]{
		MaxConcurrent:  cfg.Pool.MaxConcurrent,
		MaxRetries:     cfg.Pool.MaxRetries,
		RetryDelay:     cfg.Pool.RetryDelay(),
		ConnectTimeout: cfg.Pool.ConnectTimeout(),
		IdleTimeout:    cfg.Pool.IdleTimeout(),
		EnableMetrics:  cfg.Pool.EnableMetrics,
		Close:          factory.CloseHTTPSession,
	}, factory.HTTPSessionFactory(cfg.Pool.TargetURL, cfg.Pool.ConnectTimeout()))
	log.Info().
		Str("target", cfg.Pool.TargetURL).
		Int("max_concurrent", cfg.Pool.MaxConcurrent).
		Int("max_retries", cfg.Pool.MaxRetries).
		Msg("Session pool created")

	// Track destroyed resources for the diagnostics API
	retired, err := core.NewRetiredCache(cfg.Pool.RetiredCacheSize)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create retired cache")
	}
	sessionPool.Subscribe(pool.EventConnectionDestroyed, retired.Observe())

	// Start the monitor: 10 秒采集一次，保留 1 小时历史
	monitor := core.NewMonitor(sessionPool, 10*time.Second, 360)
	monitor.Start()

	// Initialize and start TelemetryArchiver (requires database)
	var archiver *core.TelemetryArchiver
	if cfg.Archive.Enabled && telemetryRepo != nil {
		archiver = core.NewTelemetryArchiver(sessionPool, telemetryRepo, redisClient, cfg.Archive.RetentionDays)
		if err := archiver.Start(cfg.Archive.CronSpec); err != nil {
			log.Error().Err(err).Str("cron", cfg.Archive.CronSpec).Msg("Failed to start telemetry archiver")
			archiver = nil
		} else {
			log.Info().Str("cron", cfg.Archive.CronSpec).Msg("TelemetryArchiver started")
		}
	} else {
		log.Info().Msg("TelemetryArchiver skipped (archive disabled or database unavailable)")
	}

	// Initialize and start PoolReloader for cross-instance config changes (requires Redis)
	var poolReloader *core.PoolReloader
	if redisClient != nil {
		poolReloader = core.NewPoolReloader(redisClient, sessionPool)
		poolReloader.Start()
		log.Info().Msg("PoolReloader started")
	} else {
		log.Info().Msg("PoolReloader skipped (Redis not available)")
	}

	// Watch config.yaml and apply pool tuning changes without restart
	watcher := config.NewWatcher(configPath, func(newCfg *config.Config) {
		if newCfg.Pool.MaxConcurrent != cfg.Pool.MaxConcurrent {
			sessionPool.Resize(newCfg.Pool.MaxConcurrent)
		}
		if newCfg.Pool.MaxRetries != cfg.Pool.MaxRetries || newCfg.Pool.RetryDelayMs != cfg.Pool.RetryDelayMs {
			sessionPool.SetRetryPolicy(newCfg.Pool.MaxRetries, newCfg.Pool.RetryDelay())
		}
		cfg.Pool = newCfg.Pool
	})
	if err := watcher.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to watch configuration file")
	}

	// Setup Gin
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(core.RequestLogger())
	r.Use(core.Recovery())
	r.Use(api.ErrorHandlerMiddleware())

	// CORS middleware for cross-origin requests from the dashboard
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	api.SetupRouter(r, &api.Dependencies{
		Pool:        sessionPool,
		Redis:       redisClient,
		Config:      cfg,
		Monitor:     monitor,
		Archiver:    archiver,
		Retired:     retired,
		SystemStats: core.NewSystemStatsCollector(),
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Stop background services in reverse startup order
	watcher.Stop()

	if poolReloader != nil {
		poolReloader.Stop()
		log.Info().Msg("PoolReloader stopped")
	}

	if archiver != nil {
		archiver.Stop()
		log.Info().Msg("TelemetryArchiver stopped")
	}

	monitor.Stop()
	log.Info().Msg("Monitor stopped")

	// Drain the pool: queued waiters get ErrPoolClosed, live resources are destroyed
	sessionPool.Shutdown()
	log.Info().Msg("Session pool shut down")

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close Redis connection")
		}
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// findProjectRoot 查找项目根目录（包含 config.yaml 的目录）
// 搜索顺序：可执行文件的父目录 -> 当前目录的父目录 -> 当前目录
func findProjectRoot() string {
	const configFile = "config.yaml"
	cwd, _ := os.Getwd()

	candidates := []string{
		filepath.Dir(cwd),
		cwd,
	}

	if execPath, err := os.Executable(); err == nil {
		candidates = append([]string{filepath.Dir(filepath.Dir(execPath))}, candidates...)
	}

	for _, candidate := range candidates {
		if fileExists(filepath.Join(candidate, configFile)) {
			return candidate
		}
	}

	return cwd
}

// fileExists 检查文件是否存在
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
