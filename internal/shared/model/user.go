package model

import (
	"encoding/json"
	"sort"
	"time"
)

// Role 用户角色
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleVerifier Role = "verifier"
	RoleBuyer    Role = "buyer"
	RoleArtisan  Role = "artisan"
)

// Valid 判断是否为已知角色
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleVerifier, RoleBuyer, RoleArtisan:
		return true
	}
	return false
}

// 角色优先级，用于选取主角色（token 与前端跳转使用）
var rolePriority = map[Role]int{
	RoleAdmin:    0,
	RoleVerifier: 1,
	RoleArtisan:  2,
	RoleBuyer:    3,
}

// RoleSet 用户拥有的角色集合
//
// JSON 序列化为有序字符串数组。
type RoleSet map[Role]struct{}

// NewRoleSet 从角色列表构建集合
func NewRoleSet(roles ...Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// Has 是否拥有指定角色
func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// HasAny 是否拥有任意一个角色
func (s RoleSet) HasAny(roles ...Role) bool {
	for _, r := range roles {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// List 按优先级排序的角色列表
func (s RoleSet) List() []Role {
	out := make([]Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		pi, iok := rolePriority[out[i]]
		pj, jok := rolePriority[out[j]]
		if iok != jok {
			return iok
		}
		if pi != pj {
			return pi < pj
		}
		return out[i] < out[j]
	})
	return out
}

// Primary 主角色；没有任何角色时视为 buyer
func (s RoleSet) Primary() Role {
	if list := s.List(); len(list) > 0 {
		return list[0]
	}
	return RoleBuyer
}

func (s RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

func (s *RoleSet) UnmarshalJSON(data []byte) error {
	var roles []Role
	if err := json.Unmarshal(data, &roles); err != nil {
		return err
	}
	*s = NewRoleSet(roles...)
	return nil
}

// User 用户
type User struct {
	ID           string  `json:"id" db:"id"`
	Name         string  `json:"name" db:"name"`
	Email        string  `json:"email" db:"email"`
	PasswordHash string  `json:"-" db:"password_hash"` // never expose in JSON
	GoogleID     *string `json:"-" db:"google_id"`
	Avatar       *string `json:"avatar,omitempty" db:"avatar"`

	EmailVerifiedAt         *time.Time `json:"email_verified_at,omitempty" db:"email_verified_at"`
	VerificationEmailSentAt *time.Time `json:"-" db:"verification_email_sent_at"`

	Roles RoleSet `json:"roles" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasVerifiedEmail 邮箱是否已验证
func (u *User) HasVerifiedEmail() bool {
	return u.EmailVerifiedAt != nil
}

// ExternalProvider 第三方登录来源，未绑定时为空
func (u *User) ExternalProvider() string {
	if u.GoogleID != nil && *u.GoogleID != "" {
		return "google"
	}
	return ""
}
