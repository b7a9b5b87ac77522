// Package config handles configuration loading from YAML files
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Pool     PoolConfig     `yaml:"pool"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
	Archive  ArchiveConfig  `yaml:"archive"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Debug bool   `yaml:"debug"`
}

// PoolConfig holds resource pool tuning knobs
// 时间类字段单位为毫秒，和 Node/Playwright 侧的配置保持同一量纲
type PoolConfig struct {
	// TargetURL 池化 HTTP 会话指向的后端地址
	TargetURL        string `yaml:"target_url"`
	MaxConcurrent    int    `yaml:"max_concurrent"`
	MaxRetries       int    `yaml:"max_retries"`
	RetryDelayMs     int    `yaml:"retry_delay_ms"`
	ConnectTimeoutMs int    `yaml:"connect_timeout_ms"`
	IdleTimeoutMs    int    `yaml:"idle_timeout_ms"`
	EnableMetrics    bool   `yaml:"enable_metrics"`
	RetiredCacheSize int    `yaml:"retired_cache_size"`
}

// RetryDelay 返回 time.Duration 形式的退避基准
func (p PoolConfig) RetryDelay() time.Duration {
	return time.Duration(p.RetryDelayMs) * time.Millisecond
}

// ConnectTimeout 返回 time.Duration 形式的排队超时
func (p PoolConfig) ConnectTimeout() time.Duration {
	return time.Duration(p.ConnectTimeoutMs) * time.Millisecond
}

// IdleTimeout 返回 time.Duration 形式的空闲回收阈值
func (p PoolConfig) IdleTimeout() time.Duration {
	return time.Duration(p.IdleTimeoutMs) * time.Millisecond
}

// AuthConfig holds JWT authentication configuration
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	TokenTTLHours int    `yaml:"token_ttl_hours"`
	AdminUser     string `yaml:"admin_user"`
	// bcrypt hash, never the plaintext password
	AdminPasswordHash string `yaml:"admin_password_hash"`
}

// DatabaseConfig holds MySQL configuration for telemetry archival
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	Database    string `yaml:"database"`
	Charset     string `yaml:"charset"`
	PoolSize    int    `yaml:"pool_size"`
	PoolRecycle int    `yaml:"pool_recycle"`
}

// RedisConfig holds Redis configuration (event fan-out and hot reload)
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LogConfig holds structured logging configuration
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// ArchiveConfig holds the telemetry archiver schedule
type ArchiveConfig struct {
	Enabled       bool   `yaml:"enabled"`
	CronSpec      string `yaml:"cron_spec"`
	RetentionDays int    `yaml:"retention_days"`
}

// RawConfig represents the raw YAML structure with environments
type RawConfig struct {
	Default     map[string]interface{} `yaml:"default"`
	Development map[string]interface{} `yaml:"development"`
	Production  map[string]interface{} `yaml:"production"`
}

var globalConfig *Config

// Load loads configuration from a layered YAML file: the default section is
// merged with the section selected by GIN_MODE (release -> production),
// then environment variables override individual values.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var raw RawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	env := os.Getenv("GIN_MODE")
	var envConfig map[string]interface{}
	if env == "release" || env == "production" {
		envConfig = raw.Production
	} else {
		envConfig = raw.Development
	}

	merged := mergeConfig(raw.Default, envConfig)

	cfg := &Config{
		Server: ServerConfig{
			Host:  getEnv("SERVER_HOST", getString(merged, "server.host", "127.0.0.1")),
			Port:  getIntEnv("SERVER_PORT", getInt(merged, "server.port", 8080)),
			Debug: getBool(merged, "server.debug", false),
		},
		Pool: PoolConfig{
			TargetURL:        getEnv("POOL_TARGET_URL", getString(merged, "pool.target_url", "http://127.0.0.1:3000")),
			MaxConcurrent:    getIntEnv("POOL_MAX_CONCURRENT", getInt(merged, "pool.max_concurrent", 5)),
			MaxRetries:       getIntEnv("POOL_MAX_RETRIES", getInt(merged, "pool.max_retries", 3)),
			RetryDelayMs:     getInt(merged, "pool.retry_delay_ms", 1000),
			ConnectTimeoutMs: getInt(merged, "pool.connect_timeout_ms", 30000),
			IdleTimeoutMs:    getInt(merged, "pool.idle_timeout_ms", 60000),
			EnableMetrics:    getBool(merged, "pool.enable_metrics", true),
			RetiredCacheSize: getInt(merged, "pool.retired_cache_size", 256),
		},
		Auth: AuthConfig{
			JWTSecret:         getEnv("JWT_SECRET", getString(merged, "auth.jwt_secret", "")),
			TokenTTLHours:     getInt(merged, "auth.token_ttl_hours", 24),
			AdminUser:         getEnv("ADMIN_USER", getString(merged, "auth.admin_user", "admin")),
			AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", getString(merged, "auth.admin_password_hash", "")),
		},
		Database: DatabaseConfig{
			Enabled:     getBool(merged, "database.enabled", false),
			Host:        getEnv("DB_HOST", getString(merged, "database.host", "localhost")),
			Port:        getIntEnv("DB_PORT", getInt(merged, "database.port", 3306)),
			User:        getEnv("DB_USER", getString(merged, "database.user", "root")),
			Password:    getEnv("DB_PASSWORD", getString(merged, "database.password", "")),
			Database:    getEnv("DB_NAME", getString(merged, "database.database", "pool_telemetry")),
			Charset:     getString(merged, "database.charset", "utf8mb4"),
			PoolSize:    getInt(merged, "database.pool_size", 10),
			PoolRecycle: getInt(merged, "database.pool_recycle", 3600),
		},
		Redis: RedisConfig{
			Enabled:  getBool(merged, "redis.enabled", false),
			Host:     getEnv("REDIS_HOST", getString(merged, "redis.host", "localhost")),
			Port:     getIntEnv("REDIS_PORT", getInt(merged, "redis.port", 6379)),
			Password: getEnv("REDIS_PASSWORD", getString(merged, "redis.password", "")),
			DB:       getInt(merged, "redis.db", 0),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", getString(merged, "log.level", "info")),
			File:       getString(merged, "log.file", "./logs/poolserver.log"),
			MaxSizeMB:  getInt(merged, "log.max_size_mb", 100),
			MaxBackups: getInt(merged, "log.max_backups", 5),
			MaxAgeDays: getInt(merged, "log.max_age_days", 14),
			Compress:   getBool(merged, "log.compress", true),
		},
		Archive: ArchiveConfig{
			Enabled:       getBool(merged, "archive.enabled", false),
			CronSpec:      getString(merged, "archive.cron_spec", "0 */10 * * * *"),
			RetentionDays: getInt(merged, "archive.retention_days", 7),
		},
	}

	globalConfig = cfg
	return cfg, nil
}

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// getEnv returns environment variable value or default
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getIntEnv returns environment variable as int or default
func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// Helper functions for nested map access
func mergeConfig(base, overlay map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	for k, v := range base {
		result[k] = v
	}
	for k, v := range overlay {
		if baseMap, ok := result[k].(map[string]interface{}); ok {
			if overlayMap, ok := v.(map[string]interface{}); ok {
				result[k] = mergeConfig(baseMap, overlayMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

func getNestedValue(m map[string]interface{}, path string) interface{} {
	keys := splitPath(path)
	current := m
	for i, key := range keys {
		if i == len(keys)-1 {
			return current[key]
		}
		if next, ok := current[key].(map[string]interface{}); ok {
			current = next
		} else {
			return nil
		}
	}
	return nil
}

func splitPath(path string) []string {
	var result []string
	current := ""
	for _, c := range path {
		if c == '.' {
			if current != "" {
				result = append(result, current)
				current = ""
			}
		} else {
			current += string(c)
		}
	}
	if current != "" {
		result = append(result, current)
	}
	return result
}

func getString(m map[string]interface{}, path, defaultVal string) string {
	if v := getNestedValue(m, path); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultVal
}

func getInt(m map[string]interface{}, path string, defaultVal int) int {
	if v := getNestedValue(m, path); v != nil {
		switch val := v.(type) {
		case int:
			return val
		case float64:
			return int(val)
		}
	}
	return defaultVal
}

func getBool(m map[string]interface{}, path string, defaultVal bool) bool {
	if v := getNestedValue(m, path); v != nil {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}
