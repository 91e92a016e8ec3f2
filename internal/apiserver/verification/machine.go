// Package verification 手艺人身份审核状态机
//
// 状态机只做纯计算：输入档案快照和时间，输出新状态与审计事件，
// 从不修改传入的快照。持久化与审计由 Service 完成。
//
//	not_started ──submit──▶ pending ──confirm / auto_approve──▶ confirmed
//	                 ▲         │
//	                 │       reject
//	                 │         ▼
//	                 └─────  rejected   （需开启 allow_resubmission）
//
// 账户状态独立流转：confirmed 后 active ⇄ suspended。
package verification

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"craftbid/internal/shared/model"
)

// MaxReasonLength 拒绝原因最大长度
const MaxReasonLength = 1000

// Transition 一次状态迁移的结果
type Transition struct {
	// Before 迁移前快照（调用方传入的对象）
	Before *model.ArtisanProfile
	// After 迁移后的新档案
	After *model.ArtisanProfile
	Event *model.VerificationEvent
}

// Machine 审核状态机
type Machine struct {
	// AllowResubmission 被拒绝后能否重新提交
	AllowResubmission bool
}

// NewMachine 创建状态机
func NewMachine(allowResubmission bool) *Machine {
	return &Machine{AllowResubmission: allowResubmission}
}

// Submit 手艺人提交审核材料
func (m *Machine) Submit(p *model.ArtisanProfile, now time.Time) (*Transition, error) {
	switch p.IDVerificationStatus {
	case model.IDVerificationNotStarted:
	case model.IDVerificationRejected:
		if !m.AllowResubmission {
			return nil, &InvalidStateError{Op: "submit", Current: p.IDVerificationStatus}
		}
	default:
		return nil, &InvalidStateError{Op: "submit", Current: p.IDVerificationStatus}
	}

	next := p.Clone()
	next.IDVerificationStatus = model.IDVerificationPending
	next.IDVerificationPendingAt = &now
	next.RejectionReason = nil
	next.UpdatedAt = now

	actor := p.UserID
	return newTransition(p, next, model.VerificationEventSubmitted, &actor, nil, now), nil
}

// Confirm 管理员确认
func (m *Machine) Confirm(p *model.ArtisanProfile, adminID string, now time.Time) (*Transition, error) {
	if p.IDVerificationStatus != model.IDVerificationPending {
		return nil, &InvalidStateError{Op: "confirm", Current: p.IDVerificationStatus}
	}
	actor := adminID
	return newTransition(p, approve(p, now), model.VerificationEventVerified, &actor, nil, now), nil
}

// Reject 管理员拒绝，原因必填
func (m *Machine) Reject(p *model.ArtisanProfile, adminID, reason string, now time.Time) (*Transition, error) {
	if p.IDVerificationStatus != model.IDVerificationPending {
		return nil, &InvalidStateError{Op: "reject", Current: p.IDVerificationStatus}
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	reason = truncateReason(reason)

	next := p.Clone()
	next.IDVerificationStatus = model.IDVerificationRejected
	next.IDVerificationPendingAt = nil
	next.RejectionReason = &reason
	next.UpdatedAt = now

	actor := adminID
	return newTransition(p, next, model.VerificationEventRejected, &actor, &reason, now), nil
}

// AutoApprove 系统自动通过
//
// 等待时间以 pending_at 为起点，now - pending_at >= timeout 时才允许。
func (m *Machine) AutoApprove(p *model.ArtisanProfile, now time.Time, timeout time.Duration) (*Transition, error) {
	if p.IDVerificationStatus != model.IDVerificationPending {
		return nil, &InvalidStateError{Op: "auto-approve", Current: p.IDVerificationStatus}
	}
	if p.IDVerificationPendingAt == nil || now.Sub(*p.IDVerificationPendingAt) < timeout {
		return nil, ErrTimeoutNotElapsed
	}
	return newTransition(p, approve(p, now), model.VerificationEventAutoVerified, nil, nil, now), nil
}

// Suspend 停用账户，保留审核结果
func (m *Machine) Suspend(p *model.ArtisanProfile, adminID, reason string, now time.Time) (*Transition, error) {
	if p.Status != model.ArtisanStatusActive {
		return nil, &InvalidStateError{Op: "suspend", Current: p.IDVerificationStatus, Status: p.Status}
	}

	next := p.Clone()
	next.Status = model.ArtisanStatusSuspended
	next.UpdatedAt = now

	actor := adminID
	var r *string
	if reason = strings.TrimSpace(reason); reason != "" {
		reason = truncateReason(reason)
		r = &reason
	}
	return newTransition(p, next, model.VerificationEventSuspended, &actor, r, now), nil
}

// Reactivate 恢复被停用的账户
func (m *Machine) Reactivate(p *model.ArtisanProfile, adminID string, now time.Time) (*Transition, error) {
	if p.Status != model.ArtisanStatusSuspended || p.IDVerificationStatus != model.IDVerificationConfirmed {
		return nil, &InvalidStateError{Op: "reactivate", Current: p.IDVerificationStatus, Status: p.Status}
	}

	next := p.Clone()
	next.Status = model.ArtisanStatusActive
	next.UpdatedAt = now

	actor := adminID
	return newTransition(p, next, model.VerificationEventReactivated, &actor, nil, now), nil
}

// approve confirm 与 auto_approve 共用的迁移
func approve(p *model.ArtisanProfile, now time.Time) *model.ArtisanProfile {
	next := p.Clone()
	next.IDVerificationStatus = model.IDVerificationConfirmed
	next.Status = model.ArtisanStatusActive
	next.IDVerificationPendingAt = nil
	next.RejectionReason = nil
	if next.IDVerifiedAt == nil {
		next.IDVerifiedAt = &now
	}
	next.UpdatedAt = now
	return next
}

func newTransition(before, after *model.ArtisanProfile, event model.VerificationEventType, actorID, reason *string, now time.Time) *Transition {
	return &Transition{
		Before: before,
		After:  after,
		Event: &model.VerificationEvent{
			ID:         uuid.New().String(),
			Event:      event,
			ProfileID:  before.ID,
			UserID:     before.UserID,
			ActorID:    actorID,
			FromStatus: before.IDVerificationStatus,
			ToStatus:   after.IDVerificationStatus,
			Reason:     reason,
			Timestamp:  now,
		},
	}
}

// truncateReason 截断到 MaxReasonLength 字节以内，不拆开多字节字符
func truncateReason(reason string) string {
	if len(reason) <= MaxReasonLength {
		return reason
	}
	n := MaxReasonLength
	for n > 0 && !utf8.RuneStart(reason[n]) {
		n--
	}
	return reason[:n]
}
