// Package storagetypes 定义存储层共享数据类型
//
// 独立包，避免 storage 与 repository 之间的循环导入
package storagetypes

import (
	"errors"
	"time"

	"craftbid/internal/shared/model"
)

// ============================================================================
// 领域错误
// ============================================================================

var (
	// ErrNotFound 实体不存在
	// 替代 sql.ErrNoRows
	ErrNotFound = errors.New("entity not found")

	// ErrConflict 并发冲突（条件更新未命中）
	ErrConflict = errors.New("conflict: concurrent modification detected")

	// ErrDuplicate 唯一键冲突
	ErrDuplicate = errors.New("duplicate: entity already exists")
)

// ============================================================================
// 手艺人档案查询/更新参数
// ============================================================================

// ArtisanGuard 条件更新的期望状态
//
// UPDATE 只在行当前状态与快照一致时生效，否则返回 ErrConflict。
type ArtisanGuard struct {
	IDVerificationStatus model.IDVerificationStatus
	Status               model.ArtisanStatus
}

// GuardOf 以档案快照的当前状态构造期望状态
func GuardOf(p *model.ArtisanProfile) ArtisanGuard {
	return ArtisanGuard{
		IDVerificationStatus: p.IDVerificationStatus,
		Status:               p.Status,
	}
}

// ArtisanFilter 手艺人档案列表过滤条件
type ArtisanFilter struct {
	IDVerificationStatus model.IDVerificationStatus
	Status               model.ArtisanStatus
	// PendingBefore 非零时只返回 pending_at <= PendingBefore 的档案
	PendingBefore time.Time
	// After 非 nil 时按 (pending_at, id) 键集分页，只返回排在游标之后的档案；
	// 仅与 PendingBefore 同时使用
	After  *ArtisanCursor
	Limit  int
	Offset int
}

// ArtisanCursor 键集分页游标，取自上一页最后一条记录
type ArtisanCursor struct {
	PendingAt time.Time
	ID        string
}
