// Package storage 定义持久化存储层抽象接口
//
// 设计原则：依赖倒置 (DIP)
//   - 调用方只依赖接口，不知道具体实现
//   - 具体实现在 repository/ 中，SQL 方言由 driver/ 提供
//   - 初始化时通过依赖注入传入实现
//
// 约定：Get* 方法在记录不存在时返回 (nil, nil)；
// 写操作在记录不存在时返回 ErrNotFound。
package storage

import (
	"context"
	"time"

	"craftbid/internal/shared/model"
	"craftbid/internal/shared/storagetypes"
)

// ArtisanFilter 档案列表过滤条件
type ArtisanFilter = storagetypes.ArtisanFilter

// ArtisanCursor 键集分页游标
type ArtisanCursor = storagetypes.ArtisanCursor

// ArtisanGuard 条件更新的期望状态
type ArtisanGuard = storagetypes.ArtisanGuard

// GuardOf 以档案快照构造期望状态
var GuardOf = storagetypes.GuardOf

// UserStore 用户存储接口
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	// CreateArtisanUser 在同一事务中创建用户及其手艺人档案
	CreateArtisanUser(ctx context.Context, user *model.User, profile *model.ArtisanProfile) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByGoogleID(ctx context.Context, googleID string) (*model.User, error)
	LinkGoogleAccount(ctx context.Context, userID, googleID string, avatar *string) error
	// MarkEmailVerified 仅在尚未验证时写入，返回是否发生了变更
	MarkEmailVerified(ctx context.Context, userID string, at time.Time) (bool, error)
	MarkVerificationEmailSent(ctx context.Context, userID string, at time.Time) error
	AssignRole(ctx context.Context, userID string, role model.Role) error
}

// ArtisanStore 手艺人档案存储接口
type ArtisanStore interface {
	CreateArtisan(ctx context.Context, profile *model.ArtisanProfile) error
	GetArtisan(ctx context.Context, id string) (*model.ArtisanProfile, error)
	GetArtisanByUserID(ctx context.Context, userID string) (*model.ArtisanProfile, error)
	ListArtisans(ctx context.Context, filter ArtisanFilter) ([]*model.ArtisanProfile, error)
	// UpdateArtisanDetails 只更新描述性字段，不触碰审核状态
	UpdateArtisanDetails(ctx context.Context, profile *model.ArtisanProfile) error
	// UpdateArtisanState 条件更新审核/账户状态：
	// 行当前状态与 expect 不一致返回 ErrConflict，行不存在返回 ErrNotFound
	UpdateArtisanState(ctx context.Context, profile *model.ArtisanProfile, expect ArtisanGuard) error
	SoftDeleteArtisan(ctx context.Context, id string, at time.Time) error
}

// VerificationAuditStore 审核审计存储接口
type VerificationAuditStore interface {
	RecordVerificationEvent(ctx context.Context, event *model.VerificationEvent) error
	ListVerificationEvents(ctx context.Context, profileID string) ([]*model.VerificationEvent, error)
}

// PersistentStore 持久化存储组合接口
type PersistentStore interface {
	UserStore
	ArtisanStore
	VerificationAuditStore
	Close() error
}
