// Package models defines data structures shared by the pool server layers
package models

import "time"

// TelemetrySample 对应 pool_telemetry 表的一行归档快照
type TelemetrySample struct {
	ID           int64     `db:"id" json:"id"`
	SampledAt    time.Time `db:"sampled_at" json:"sampled_at"`
	HealthScore  int       `db:"health_score" json:"health_score"`
	Active       int       `db:"active" json:"active"`
	Waiting      int       `db:"waiting" json:"waiting"`
	TotalCreated int64     `db:"total_created" json:"total_created"`
	Failed       int64     `db:"failed" json:"failed"`
	Retried      int64     `db:"retried" json:"retried"`
	EPIPEErrors  int64     `db:"epipe_errors" json:"epipe_errors"`
	AvgAcquireUs int64     `db:"avg_acquire_us" json:"avg_acquire_us"`
}

// Admin 管理端登录账号
type Admin struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}
