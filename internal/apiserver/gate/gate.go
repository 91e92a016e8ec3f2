// Package gate 手艺人访问门禁
//
// 只有完成全部入驻步骤的手艺人才能访问受保护的资源。检查按固定顺序
// 进行，遇到第一个不满足的条件立即返回：
//
//	登录 → 手艺人角色 → 邮箱验证 → 档案 → 身份审核 → 账户启用
package gate

import (
	"fmt"
	"net/http"

	"craftbid/internal/shared/model"
)

// Reason 门禁判定结果
type Reason string

const (
	ReasonAuthorized               Reason = "authorized"
	ReasonUnauthenticated          Reason = "unauthenticated"
	ReasonWrongRole                Reason = "wrong_role"
	ReasonEmailUnverified          Reason = "email_unverified"
	ReasonProfileIncomplete        Reason = "profile_incomplete"
	ReasonPendingAdminVerification Reason = "pending_admin_verification"
	ReasonAccountInactive          Reason = "account_inactive"
)

// Subject 门禁判定所需的用户能力信息
type Subject struct {
	UserID        string
	Roles         model.RoleSet
	EmailVerified bool
	// ExternalProvider 第三方登录来源（如 google），为空表示普通注册
	ExternalProvider string
	// Artisan 手艺人档案，未建档为 nil
	Artisan *model.ArtisanProfile
}

// SubjectFor 由用户和档案构造 Subject
func SubjectFor(user *model.User, profile *model.ArtisanProfile) *Subject {
	if user == nil {
		return nil
	}
	return &Subject{
		UserID:           user.ID,
		Roles:            user.Roles,
		EmailVerified:    user.HasVerifiedEmail(),
		ExternalProvider: user.ExternalProvider(),
		Artisan:          profile,
	}
}

// Body 拒绝时返回给客户端的 JSON
type Body struct {
	Message                   string                     `json:"message"`
	RequiresEmailVerification bool                       `json:"requires_email_verification,omitempty"`
	RequiresProfileCompletion bool                       `json:"requires_profile_completion,omitempty"`
	VerificationStatus        model.IDVerificationStatus `json:"verification_status,omitempty"`
	RequiresAdminVerification bool                       `json:"requires_admin_verification,omitempty"`
	Status                    model.ArtisanStatus        `json:"status,omitempty"`
}

// Decision 门禁判定
type Decision struct {
	Reason     Reason
	HTTPStatus int
	Body       Body
}

// Allowed 是否放行
func (d Decision) Allowed() bool {
	return d.Reason == ReasonAuthorized
}

// Err 拒绝时返回 *DeniedError，放行时为 nil
func (d Decision) Err() error {
	if d.Allowed() {
		return nil
	}
	return &DeniedError{Decision: d}
}

// DeniedError 门禁拒绝
type DeniedError struct {
	Decision Decision
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("access denied: %s", e.Decision.Reason)
}

// Authorize 按顺序检查，返回第一个未满足的条件
func Authorize(s *Subject) Decision {
	if s == nil {
		return deny(ReasonUnauthenticated, http.StatusUnauthorized, Body{
			Message: "Unauthenticated.",
		})
	}

	if !s.Roles.Has(model.RoleArtisan) {
		return deny(ReasonWrongRole, http.StatusForbidden, Body{
			Message: "You must be an artisan to access this resource.",
		})
	}

	// Google 等第三方登录的邮箱视为已验证
	if !s.EmailVerified && s.ExternalProvider == "" {
		return deny(ReasonEmailUnverified, http.StatusForbidden, Body{
			Message:                   "Please verify your email address first.",
			RequiresEmailVerification: true,
		})
	}

	if s.Artisan == nil {
		return deny(ReasonProfileIncomplete, http.StatusForbidden, Body{
			Message:                   "Please complete your artisan profile first.",
			RequiresProfileCompletion: true,
		})
	}

	if s.Artisan.IDVerificationStatus != model.IDVerificationConfirmed {
		return deny(ReasonPendingAdminVerification, http.StatusForbidden, Body{
			Message:                   "Your artisan account is pending admin verification. Please wait for approval.",
			VerificationStatus:        s.Artisan.IDVerificationStatus,
			RequiresAdminVerification: true,
		})
	}

	if s.Artisan.Status != model.ArtisanStatusActive {
		return deny(ReasonAccountInactive, http.StatusForbidden, Body{
			Message: "Your artisan account is not active. Please contact support.",
			Status:  s.Artisan.Status,
		})
	}

	return Decision{Reason: ReasonAuthorized, HTTPStatus: http.StatusOK}
}

func deny(reason Reason, status int, body Body) Decision {
	return Decision{Reason: reason, HTTPStatus: status, Body: body}
}
