// Package cache 缓存层抽象接口
//
// 提供带过期时间的临时状态存取能力，由 Redis 或进程内存实现。
package cache

import (
	"context"
	"time"

	"craftbid/internal/shared/model"
)

// OAuthStateCache OAuth state → 注册角色 的临时映射
//
// Google 登录跳转前写入，回调时一次性取出；过期或不存在视为未命中。
type OAuthStateCache interface {
	PutOAuthState(ctx context.Context, state string, role model.Role, ttl time.Duration) error
	// TakeOAuthState 取出并删除，第二个返回值表示是否命中
	TakeOAuthState(ctx context.Context, state string) (model.Role, bool, error)
}

// Cache 缓存组合接口
type Cache interface {
	OAuthStateCache
	Close() error
}
