// Package storage 定义存储层领域错误
//
// 这些错误用于隔离业务层与底层存储引擎的错误类型，
// 各驱动实现负责将底层错误转换为这些领域错误。
package storage

import "craftbid/internal/shared/storagetypes"

var (
	// ErrNotFound 实体不存在
	ErrNotFound = storagetypes.ErrNotFound

	// ErrConflict 并发冲突（条件更新失败）
	ErrConflict = storagetypes.ErrConflict

	// ErrDuplicate 唯一键冲突（重复邮箱、同一用户重复建档）
	ErrDuplicate = storagetypes.ErrDuplicate
)
