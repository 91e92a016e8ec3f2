package verification

import (
	"errors"
	"fmt"

	"craftbid/internal/shared/model"
	"craftbid/internal/shared/storage"
)

var (
	// ErrInvalidState 当前状态不允许该操作
	ErrInvalidState = errors.New("invalid verification state")

	// ErrProfileNotFound 档案不存在（或已软删除）
	ErrProfileNotFound = fmt.Errorf("artisan profile: %w", storage.ErrNotFound)

	// ErrPersistenceConflict 条件更新未命中，档案已被并发修改
	ErrPersistenceConflict = fmt.Errorf("artisan profile changed concurrently: %w", storage.ErrConflict)

	// ErrReasonRequired 拒绝时必须填写原因
	ErrReasonRequired = errors.New("rejection reason is required")

	// ErrTimeoutNotElapsed 自动审核等待时间未到
	ErrTimeoutNotElapsed = errors.New("auto-approve timeout has not elapsed")
)

// InvalidStateError 非法状态迁移
type InvalidStateError struct {
	Op      string
	Current model.IDVerificationStatus
	// Status 账户状态，仅账户操作（suspend/reactivate）时有意义
	Status model.ArtisanStatus
}

func (e *InvalidStateError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("cannot %s artisan: verification is %s, account is %s", e.Op, e.Current, e.Status)
	}
	return fmt.Sprintf("cannot %s artisan: verification is %s", e.Op, e.Current)
}

// Is 让 errors.Is(err, ErrInvalidState) 成立
func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}
