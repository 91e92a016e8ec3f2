// Package auth 用户认证：JWT 令牌管理、密码哈希、HTTP 中间件
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"craftbid/internal/config"
	"craftbid/internal/shared/model"
)

// contextKey context 键类型
type contextKey string

const (
	ctxKeyAuthUser contextKey = "auth_user"
	ctxKeyUser     contextKey = "user"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// AuthUser 从 JWT 解析出的用户信息
//
// Role 是签发令牌时的主角色，仅用于前端展示；
// 权限判断以 RequireRole 从存储重新加载的角色为准。
type AuthUser struct {
	ID    string
	Email string
	Role  model.Role
}

// Config 认证配置
type Config struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// DefaultConfig 返回默认认证配置
func DefaultConfig() Config {
	return Config{
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	}
}

// ConfigFrom 从应用配置构造认证配置
func ConfigFrom(c config.AuthConfig) Config {
	cfg := DefaultConfig()
	cfg.JWTSecret = c.JWTSecret
	if c.AccessTokenTTL > 0 {
		cfg.AccessTokenTTL = c.AccessTokenTTL
	}
	if c.RefreshTokenTTL > 0 {
		cfg.RefreshTokenTTL = c.RefreshTokenTTL
	}
	return cfg
}

// ============================================================================
// 密码哈希
// ============================================================================

// MaxPasswordLength bcrypt 只接受不超过 72 字节的密码
const MaxPasswordLength = 72

// HashPassword 使用 bcrypt 哈希密码
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	return string(bytes), err
}

// CheckPassword 验证密码，空哈希（仅 Google 登录的账号）总是失败
func CheckPassword(password, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ============================================================================
// JWT Token
// ============================================================================

// Claims JWT 声明
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	Type  string `json:"type,omitempty"` // "access" | "refresh"
}

// GenerateAccessToken 生成访问令牌
func GenerateAccessToken(cfg Config, user *model.User) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.AccessTokenTTL)),
		},
		Email: user.Email,
		Role:  string(user.Roles.Primary()),
		Type:  tokenTypeAccess,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// GenerateRefreshToken 生成刷新令牌
func GenerateRefreshToken(cfg Config, userID string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.RefreshTokenTTL)),
		},
		Type: tokenTypeRefresh,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// ParseToken 解析并验证 JWT
func ParseToken(cfg Config, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// AuthenticateToken 校验访问令牌并返回认证用户（WebSocket 握手使用）
func AuthenticateToken(cfg Config, tokenString string) (*AuthUser, error) {
	claims, err := ParseToken(cfg, tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != tokenTypeAccess {
		return nil, fmt.Errorf("invalid token type %q", claims.Type)
	}
	return &AuthUser{
		ID:    claims.Subject,
		Email: claims.Email,
		Role:  model.Role(claims.Role),
	}, nil
}

// TokenPair 访问令牌 + 刷新令牌
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// IssueTokens 为用户签发一对令牌
func IssueTokens(cfg Config, user *model.User) (*TokenPair, error) {
	access, err := GenerateAccessToken(cfg, user)
	if err != nil {
		return nil, err
	}
	refresh, err := GenerateRefreshToken(cfg, user.ID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// ============================================================================
// Context 辅助函数
// ============================================================================

// WithAuthUser 将认证用户信息注入 context
func WithAuthUser(ctx context.Context, user *AuthUser) context.Context {
	return context.WithValue(ctx, ctxKeyAuthUser, user)
}

// GetAuthUser 从 context 获取认证用户
func GetAuthUser(ctx context.Context) *AuthUser {
	user, _ := ctx.Value(ctxKeyAuthUser).(*AuthUser)
	return user
}

// WithUser 注入 RequireRole 加载的完整用户
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, ctxKeyUser, user)
}

// GetUser 获取 RequireRole 加载的用户，未经过 RequireRole 时为 nil
func GetUser(ctx context.Context) *model.User {
	user, _ := ctx.Value(ctxKeyUser).(*model.User)
	return user
}
