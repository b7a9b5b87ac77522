package pool

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
	"time"
)

// transientSignatures 瞬时网络故障的特征串
// 与 Playwright/Node 侧看到的错误文案保持一致（EPIPE、socket hang up 等）
var transientSignatures = []string{
	"epipe",
	"broken pipe",
	"econnreset",
	"connection reset",
	"socket hang up",
	"timed out",
	"timeout",
	"empty response",
	"err_empty_response",
	"protocol error",
}

// IsTransient reports whether err looks like a transient network fault that is
// worth retrying: broken pipe, connection reset, socket hang-up, timeout,
// empty response or protocol error. Anything else must propagate immediately.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	// 结构化匹配优先：syscall 级别的 EPIPE/ECONNRESET 和 net 超时
	if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range transientSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// BackoffDelay 计算第 attempt 次重试前的等待时长：base × 2^(attempt−1)
// attempt 从 1 开始；attempt <= 1 时返回 base
func BackoffDelay(attempt int, base time.Duration) time.Duration {
	if attempt <= 1 {
		return base
	}
	return base << uint(attempt-1)
}

// WithRetry runs op, retrying transient failures up to maxRetries times with
// exponential backoff between attempts. Non-transient errors and exhausted
// budgets return the last error unchanged. This is the standalone helper the
// API test suites use around flaky HTTP calls; the pool uses the same policy
// internally via Retry.
func WithRetry(ctx context.Context, op func() error, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 1; attempt <= maxRetries+1; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
		if attempt > maxRetries {
			break
		}

		select {
		case <-time.After(BackoffDelay(attempt, baseDelay)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
