// Package pool implements a bounded resource pool with a priority waiting
// queue, transient-error retry with exponential backoff, and health telemetry.
// It is the concurrency backbone used to keep parallel E2E test runs from
// opening more expensive sessions (browser contexts, DB connections) than the
// backend can survive.
package pool

import "errors"

var (
	// ErrAcquireTimeout 等待队列中的请求超过 connect_timeout 仍未被服务
	ErrAcquireTimeout = errors.New("pool: acquire timed out waiting for a free slot")

	// ErrRetryExhausted 同一资源的瞬时错误重试次数超过 max_retries
	ErrRetryExhausted = errors.New("pool: retry budget exhausted")

	// ErrPoolClosed 池已关闭（或正在关闭），acquire 快速失败而不是挂起
	ErrPoolClosed = errors.New("pool: pool is shutting down")

	// ErrUnknownResource 引用了不在注册表中的资源 ID（已销毁或从未存在）
	ErrUnknownResource = errors.New("pool: unknown resource id")
)
