// Package model 定义核心数据模型
//
// artisan.go 包含手艺人档案相关的数据模型定义：
//   - ArtisanProfile：手艺人档案（审核状态机的作用对象）
//   - IDVerificationStatus：身份审核状态
//   - ArtisanStatus：账户状态
package model

import (
	"fmt"
	"time"
)

// ============================================================================
// IDVerificationStatus - 身份审核状态
// ============================================================================

// IDVerificationStatus 手艺人身份审核状态
//
// 状态流转：
//
//	not_started → pending → confirmed
//	     ↑           ↓
//	     └──────  rejected
//
// pending 可由管理员确认/拒绝，也可由自动审核任务在超时后确认。
type IDVerificationStatus string

const (
	// IDVerificationNotStarted 尚未提交审核材料
	IDVerificationNotStarted IDVerificationStatus = "not_started"

	// IDVerificationPending 已提交，等待审核
	IDVerificationPending IDVerificationStatus = "pending"

	// IDVerificationConfirmed 审核通过（终态）
	IDVerificationConfirmed IDVerificationStatus = "confirmed"

	// IDVerificationRejected 审核被拒绝
	IDVerificationRejected IDVerificationStatus = "rejected"
)

// Valid 判断是否为已知的审核状态
func (s IDVerificationStatus) Valid() bool {
	switch s {
	case IDVerificationNotStarted, IDVerificationPending, IDVerificationConfirmed, IDVerificationRejected:
		return true
	}
	return false
}

// ============================================================================
// ArtisanStatus - 账户状态
// ============================================================================

// ArtisanStatus 手艺人账户状态
type ArtisanStatus string

const (
	ArtisanStatusPending   ArtisanStatus = "pending"
	ArtisanStatusActive    ArtisanStatus = "active"
	ArtisanStatusSuspended ArtisanStatus = "suspended"
)

// Valid 判断是否为已知的账户状态
func (s ArtisanStatus) Valid() bool {
	switch s {
	case ArtisanStatusPending, ArtisanStatusActive, ArtisanStatusSuspended:
		return true
	}
	return false
}

// ============================================================================
// ArtisanProfile - 手艺人档案
// ============================================================================

// ArtisanProfile 手艺人档案
//
// 每个手艺人用户最多一份档案（user_id 唯一）。审核相关字段只能通过
// verification 包中的状态机修改，其余字段由手艺人自行编辑。
type ArtisanProfile struct {
	ID           string `json:"id" db:"id"`
	UserID       string `json:"user_id" db:"user_id"`
	BusinessName string `json:"business_name" db:"business_name"`
	Speciality   string `json:"speciality" db:"speciality"`
	Location     string `json:"location" db:"location"`
	Bio          string `json:"bio" db:"bio"`

	Status                  ArtisanStatus        `json:"status" db:"status"`
	IDVerificationStatus    IDVerificationStatus `json:"id_verification_status" db:"id_verification_status"`
	IDVerificationPendingAt *time.Time           `json:"id_verification_pending_at,omitempty" db:"id_verification_pending_at"`
	IDVerifiedAt            *time.Time           `json:"id_verified_at,omitempty" db:"id_verified_at"`
	RejectionReason         *string              `json:"verification_rejection_reason,omitempty" db:"verification_rejection_reason"`

	// 证件照在对象存储中的 key，不直接暴露给前端
	IDDocumentFrontPath *string `json:"-" db:"id_document_front_path"`
	IDDocumentBackPath  *string `json:"-" db:"id_document_back_path"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"-" db:"deleted_at"`
}

// NewArtisanProfile 创建初始状态的档案（账户 pending，审核 not_started）
func NewArtisanProfile(id, userID string, now time.Time) *ArtisanProfile {
	return &ArtisanProfile{
		ID:                   id,
		UserID:               userID,
		Status:               ArtisanStatusPending,
		IDVerificationStatus: IDVerificationNotStarted,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// Clone 深拷贝，状态机在副本上计算新状态，不修改调用方持有的快照
func (p *ArtisanProfile) Clone() *ArtisanProfile {
	if p == nil {
		return nil
	}
	c := *p
	c.IDVerificationPendingAt = cloneTime(p.IDVerificationPendingAt)
	c.IDVerifiedAt = cloneTime(p.IDVerifiedAt)
	c.DeletedAt = cloneTime(p.DeletedAt)
	c.RejectionReason = cloneString(p.RejectionReason)
	c.IDDocumentFrontPath = cloneString(p.IDDocumentFrontPath)
	c.IDDocumentBackPath = cloneString(p.IDDocumentBackPath)
	return &c
}

// CheckInvariants 校验状态组合是否合法
//
//   - pending_at 当且仅当 pending 时存在
//   - confirmed 必须带 verified_at，且账户不能是 pending
//   - 非 confirmed 不能有 verified_at
//   - active 只能出现在 confirmed 上
//   - 非 rejected 不能保留拒绝原因
func (p *ArtisanProfile) CheckInvariants() error {
	if !p.IDVerificationStatus.Valid() {
		return fmt.Errorf("unknown id_verification_status %q", p.IDVerificationStatus)
	}
	if !p.Status.Valid() {
		return fmt.Errorf("unknown status %q", p.Status)
	}
	switch p.IDVerificationStatus {
	case IDVerificationPending:
		if p.IDVerificationPendingAt == nil {
			return fmt.Errorf("pending profile %s has no pending_at", p.ID)
		}
	case IDVerificationConfirmed:
		if p.IDVerifiedAt == nil {
			return fmt.Errorf("confirmed profile %s has no verified_at", p.ID)
		}
		if p.Status == ArtisanStatusPending {
			return fmt.Errorf("confirmed profile %s still has account status pending", p.ID)
		}
	}
	if p.IDVerificationStatus != IDVerificationPending && p.IDVerificationPendingAt != nil {
		return fmt.Errorf("profile %s keeps pending_at while %s", p.ID, p.IDVerificationStatus)
	}
	if p.IDVerificationStatus != IDVerificationConfirmed {
		if p.IDVerifiedAt != nil {
			return fmt.Errorf("profile %s has verified_at while %s", p.ID, p.IDVerificationStatus)
		}
		if p.Status == ArtisanStatusActive {
			return fmt.Errorf("profile %s is active while %s", p.ID, p.IDVerificationStatus)
		}
	}
	if p.IDVerificationStatus != IDVerificationRejected && p.RejectionReason != nil {
		return fmt.Errorf("profile %s keeps a rejection reason while %s", p.ID, p.IDVerificationStatus)
	}
	return nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
