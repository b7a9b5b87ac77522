// Package core provides error code definitions and error handling utilities
package core

import (
	"errors"
	"fmt"
	"net/http"

	"e2e-infra/poolserver/pkg/pool"
)

// ErrorCode represents an error code type
type ErrorCode int

// Error code constants
const (
	// Common errors (1000-1999)
	ErrSuccess         ErrorCode = 0
	ErrUnknown         ErrorCode = 1000
	ErrInvalidParam    ErrorCode = 1001
	ErrUnauthorized    ErrorCode = 1002
	ErrForbidden       ErrorCode = 1003
	ErrNotFound        ErrorCode = 1004
	ErrMethodNotAllow  ErrorCode = 1005
	ErrTooManyRequests ErrorCode = 1006
	ErrInternalServer  ErrorCode = 1007
	ErrTimeout         ErrorCode = 1008
	ErrValidation      ErrorCode = 1009

	// Database errors (2000-2999)
	ErrDBConnection ErrorCode = 2000
	ErrDBQuery      ErrorCode = 2001
	ErrDBInsert     ErrorCode = 2002
	ErrDBDelete     ErrorCode = 2003
	ErrDBNotFound   ErrorCode = 2004

	// Cache errors (3000-3999)
	ErrCacheConnection ErrorCode = 3000
	ErrCacheGet        ErrorCode = 3001
	ErrCacheSet        ErrorCode = 3002
	ErrCachePublish    ErrorCode = 3003

	// Pool errors (5000-5999)
	ErrPoolTimeout         ErrorCode = 5000
	ErrPoolShuttingDown    ErrorCode = 5001
	ErrPoolRetryExhausted  ErrorCode = 5002
	ErrPoolUnknownResource ErrorCode = 5003
	ErrPoolFactoryFailed   ErrorCode = 5004
	ErrPoolInvalidConfig   ErrorCode = 5005

	// Auth errors (6000-6999)
	ErrAuthBadCredentials ErrorCode = 6000
	ErrAuthTokenExpired   ErrorCode = 6001
	ErrAuthTokenInvalid   ErrorCode = 6002

	// Archive errors (7000-7999)
	ErrArchiveNotRunning  ErrorCode = 7000
	ErrArchiveInvalidCron ErrorCode = 7001
	ErrArchiveExecFailed  ErrorCode = 7002
)

// errorMessages maps error codes to human-readable messages
var errorMessages = map[ErrorCode]string{
	// Common errors
	ErrSuccess:         "成功",
	ErrUnknown:         "未知错误",
	ErrInvalidParam:    "参数无效",
	ErrUnauthorized:    "未授权",
	ErrForbidden:       "禁止访问",
	ErrNotFound:        "资源不存在",
	ErrMethodNotAllow:  "方法不允许",
	ErrTooManyRequests: "请求过于频繁",
	ErrInternalServer:  "服务器内部错误",
	ErrTimeout:         "请求超时",
	ErrValidation:      "数据验证失败",

	// Database errors
	ErrDBConnection: "数据库连接失败",
	ErrDBQuery:      "数据库查询失败",
	ErrDBInsert:     "数据库插入失败",
	ErrDBDelete:     "数据库删除失败",
	ErrDBNotFound:   "数据不存在",

	// Cache errors
	ErrCacheConnection: "缓存连接失败",
	ErrCacheGet:        "缓存读取失败",
	ErrCacheSet:        "缓存写入失败",
	ErrCachePublish:    "缓存消息发布失败",

	// Pool errors
	ErrPoolTimeout:         "资源池获取超时",
	ErrPoolShuttingDown:    "资源池正在关闭",
	ErrPoolRetryExhausted:  "资源重试次数耗尽",
	ErrPoolUnknownResource: "资源不存在或已销毁",
	ErrPoolFactoryFailed:   "资源创建失败",
	ErrPoolInvalidConfig:   "资源池配置无效",

	// Auth errors
	ErrAuthBadCredentials: "用户名或密码错误",
	ErrAuthTokenExpired:   "登录已过期",
	ErrAuthTokenInvalid:   "无效的登录凭证",

	// Archive errors
	ErrArchiveNotRunning:  "归档任务未运行",
	ErrArchiveInvalidCron: "无效的Cron表达式",
	ErrArchiveExecFailed:  "归档执行失败",
}

// errorHTTPStatus maps error codes to HTTP status codes
var errorHTTPStatus = map[ErrorCode]int{
	// Common errors
	ErrSuccess:         http.StatusOK,
	ErrUnknown:         http.StatusInternalServerError,
	ErrInvalidParam:    http.StatusBadRequest,
	ErrUnauthorized:    http.StatusUnauthorized,
	ErrForbidden:       http.StatusForbidden,
	ErrNotFound:        http.StatusNotFound,
	ErrMethodNotAllow:  http.StatusMethodNotAllowed,
	ErrTooManyRequests: http.StatusTooManyRequests,
	ErrInternalServer:  http.StatusInternalServerError,
	ErrTimeout:         http.StatusGatewayTimeout,
	ErrValidation:      http.StatusUnprocessableEntity,

	// Database errors
	ErrDBConnection: http.StatusServiceUnavailable,
	ErrDBQuery:      http.StatusInternalServerError,
	ErrDBInsert:     http.StatusInternalServerError,
	ErrDBDelete:     http.StatusInternalServerError,
	ErrDBNotFound:   http.StatusNotFound,

	// Cache errors
	ErrCacheConnection: http.StatusServiceUnavailable,
	ErrCacheGet:        http.StatusInternalServerError,
	ErrCacheSet:        http.StatusInternalServerError,
	ErrCachePublish:    http.StatusInternalServerError,

	// Pool errors
	ErrPoolTimeout:         http.StatusServiceUnavailable,
	ErrPoolShuttingDown:    http.StatusServiceUnavailable,
	ErrPoolRetryExhausted:  http.StatusServiceUnavailable,
	ErrPoolUnknownResource: http.StatusNotFound,
	ErrPoolFactoryFailed:   http.StatusInternalServerError,
	ErrPoolInvalidConfig:   http.StatusBadRequest,

	// Auth errors
	ErrAuthBadCredentials: http.StatusUnauthorized,
	ErrAuthTokenExpired:   http.StatusUnauthorized,
	ErrAuthTokenInvalid:   http.StatusUnauthorized,

	// Archive errors
	ErrArchiveNotRunning:  http.StatusServiceUnavailable,
	ErrArchiveInvalidCron: http.StatusBadRequest,
	ErrArchiveExecFailed:  http.StatusInternalServerError,
}

// FromPoolError maps pool sentinel errors to API error codes
func FromPoolError(err error) ErrorCode {
	switch {
	case err == nil:
		return ErrSuccess
	case errors.Is(err, pool.ErrAcquireTimeout):
		return ErrPoolTimeout
	case errors.Is(err, pool.ErrPoolClosed):
		return ErrPoolShuttingDown
	case errors.Is(err, pool.ErrRetryExhausted):
		return ErrPoolRetryExhausted
	case errors.Is(err, pool.ErrUnknownResource):
		return ErrPoolUnknownResource
	default:
		return ErrInternalServer
	}
}

// AppError represents an application error with code and message
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Detail  string    `json:"detail,omitempty"`
	Err     error     `json:"-"` // Original error, not serialized
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code for this error
func (e *AppError) HTTPStatus() int {
	if status, ok := errorHTTPStatus[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// NewError creates a new AppError with the given error code
func NewError(code ErrorCode) *AppError {
	msg := errorMessages[code]
	if msg == "" {
		msg = errorMessages[ErrUnknown]
	}
	return &AppError{
		Code:    code,
		Message: msg,
	}
}

// NewErrorWithDetail creates a new AppError with code and detail message
func NewErrorWithDetail(code ErrorCode, detail string) *AppError {
	err := NewError(code)
	err.Detail = detail
	return err
}

// NewErrorWithErr creates a new AppError wrapping an existing error
func NewErrorWithErr(code ErrorCode, err error) *AppError {
	appErr := NewError(code)
	if err != nil {
		appErr.Err = err
		appErr.Detail = err.Error()
	}
	return appErr
}

// IsAppError checks if the given error is an AppError
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetAppError extracts AppError from an error, returns nil if not an AppError
func GetAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return nil
}

// GetErrorMessage returns the message for an error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return errorMessages[ErrUnknown]
}

// GetHTTPStatus returns the HTTP status code for an error code
func GetHTTPStatus(code ErrorCode) int {
	if status, ok := errorHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
