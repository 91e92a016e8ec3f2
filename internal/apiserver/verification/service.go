package verification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"craftbid/internal/shared/model"
	"craftbid/internal/shared/storage"
)

// Documents 提交审核时附带的证件照 key，nil 表示不变
type Documents struct {
	Front *string
	Back  *string
}

// Service 审核业务服务：加载档案 → 状态机计算 → 条件写入 → 审计
type Service struct {
	machine *Machine
	store   storage.ArtisanStore
	audit   AuditSink
	now     func() time.Time
}

// NewService 创建审核服务
func NewService(store storage.ArtisanStore, audit AuditSink, machine *Machine) *Service {
	if machine == nil {
		machine = NewMachine(true)
	}
	return &Service{
		machine: machine,
		store:   store,
		audit:   audit,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Machine 返回状态机
func (s *Service) Machine() *Machine {
	return s.machine
}

// Submit 提交审核
func (s *Service) Submit(ctx context.Context, profileID string, docs Documents) (*model.ArtisanProfile, error) {
	p, err := s.load(ctx, profileID)
	if err != nil {
		return nil, err
	}
	t, err := s.machine.Submit(p, s.now())
	if err != nil {
		return nil, err
	}
	if docs.Front != nil {
		t.After.IDDocumentFrontPath = docs.Front
	}
	if docs.Back != nil {
		t.After.IDDocumentBackPath = docs.Back
	}
	return s.apply(ctx, t)
}

// Confirm 管理员确认
func (s *Service) Confirm(ctx context.Context, profileID, adminID string) (*model.ArtisanProfile, error) {
	p, err := s.load(ctx, profileID)
	if err != nil {
		return nil, err
	}
	t, err := s.machine.Confirm(p, adminID, s.now())
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, t)
}

// Reject 管理员拒绝
func (s *Service) Reject(ctx context.Context, profileID, adminID, reason string) (*model.ArtisanProfile, error) {
	p, err := s.load(ctx, profileID)
	if err != nil {
		return nil, err
	}
	t, err := s.machine.Reject(p, adminID, reason, s.now())
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, t)
}

// AutoApprove 基于已查询出的快照自动通过（自动审核任务使用）
//
// 快照过期时条件更新失败，返回 ErrPersistenceConflict。
func (s *Service) AutoApprove(ctx context.Context, snapshot *model.ArtisanProfile, now time.Time, timeout time.Duration) (*model.ArtisanProfile, error) {
	t, err := s.machine.AutoApprove(snapshot, now, timeout)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, t)
}

// Suspend 停用账户
func (s *Service) Suspend(ctx context.Context, profileID, adminID, reason string) (*model.ArtisanProfile, error) {
	p, err := s.load(ctx, profileID)
	if err != nil {
		return nil, err
	}
	t, err := s.machine.Suspend(p, adminID, reason, s.now())
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, t)
}

// Reactivate 恢复账户
func (s *Service) Reactivate(ctx context.Context, profileID, adminID string) (*model.ArtisanProfile, error) {
	p, err := s.load(ctx, profileID)
	if err != nil {
		return nil, err
	}
	t, err := s.machine.Reactivate(p, adminID, s.now())
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, t)
}

func (s *Service) load(ctx context.Context, profileID string) (*model.ArtisanProfile, error) {
	p, err := s.store.GetArtisan(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to load artisan %s: %w", profileID, err)
	}
	if p == nil {
		return nil, ErrProfileNotFound
	}
	return p, nil
}

// apply 以迁移前快照为条件写入新状态，成功后记录审计事件
func (s *Service) apply(ctx context.Context, t *Transition) (*model.ArtisanProfile, error) {
	if err := t.After.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("refusing to persist %s: %w", t.Event.Event, err)
	}

	if err := s.store.UpdateArtisanState(ctx, t.After, storage.GuardOf(t.Before)); err != nil {
		switch {
		case errors.Is(err, storage.ErrConflict):
			return nil, fmt.Errorf("%w: %v", ErrPersistenceConflict, err)
		case errors.Is(err, storage.ErrNotFound):
			return nil, ErrProfileNotFound
		default:
			return nil, fmt.Errorf("failed to update artisan %s: %w", t.After.ID, err)
		}
	}

	// 状态已提交，审计失败不回滚
	if s.audit != nil {
		if err := s.audit.Record(ctx, t.Event); err != nil {
			log.Printf("[verification.audit.failed] profile_id=%s event=%s error=%v", t.Event.ProfileID, t.Event.Event, err)
		}
	}
	return t.After, nil
}
