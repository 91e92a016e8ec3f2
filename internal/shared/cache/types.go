// Package cache 缓存层常量定义
package cache

import "time"

// Redis Key 前缀
const (
	// KeyOAuthState OAuth state 对应的注册角色
	// 格式：craftbid:oauth_state:{state}
	KeyOAuthState = "craftbid:oauth_state:"
)

// TTL 常量
const (
	// OAuthStateTTL Google 登录 state 的有效期
	OAuthStateTTL = 10 * time.Minute
)
