// Package repository provides data access layer interfaces and implementations.
// This file defines the sentinel errors callers match with errors.Is.
package repository

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound 查询无结果
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEntry 唯一键冲突，同一时刻的快照已经归档过
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrInvalidInput 参数未通过校验
	ErrInvalidInput = errors.New("invalid input")
)

// IsDuplicateKeyError 检测是否为重复键错误
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	// MySQL: Error 1062 - Duplicate entry
	return strings.Contains(errMsg, "Duplicate entry") ||
		strings.Contains(errMsg, "duplicate key")
}
