package model

import "time"

// VerificationEventType 审核事件类型
type VerificationEventType string

const (
	VerificationEventSubmitted    VerificationEventType = "submitted"
	VerificationEventVerified     VerificationEventType = "verified"
	VerificationEventAutoVerified VerificationEventType = "auto_verified"
	VerificationEventRejected     VerificationEventType = "rejected"
	VerificationEventSuspended    VerificationEventType = "suspended"
	VerificationEventReactivated  VerificationEventType = "reactivated"
)

// VerificationEvent 审核审计事件
//
// ActorID 为 nil 表示系统操作（自动审核）。同一结构用于审计表、
// 事件流和 WebSocket 推送。
type VerificationEvent struct {
	ID         string                `json:"id" db:"id"`
	Event      VerificationEventType `json:"event" db:"event"`
	ProfileID  string                `json:"profile_id" db:"profile_id"`
	UserID     string                `json:"user_id" db:"user_id"`
	ActorID    *string               `json:"actor_id" db:"actor_id"`
	FromStatus IDVerificationStatus  `json:"from_status" db:"from_status"`
	ToStatus   IDVerificationStatus  `json:"to_status" db:"to_status"`
	Reason     *string               `json:"reason,omitempty" db:"reason"`
	Timestamp  time.Time             `json:"timestamp" db:"created_at"`
}

// IsSystem 是否由系统（而非管理员）触发
func (e *VerificationEvent) IsSystem() bool {
	return e.ActorID == nil
}
