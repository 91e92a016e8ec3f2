package cache

import (
	"context"
	"sync"
	"time"

	"craftbid/internal/shared/model"
)

// ============================================================================
// MemoryCache - 进程内缓存（未配置 Redis 时使用，仅适用于单实例部署）
// ============================================================================

type memoryEntry struct {
	role      model.Role
	expiresAt time.Time
}

// MemoryCache 基于 map 的带过期缓存
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache 创建进程内缓存
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// PutOAuthState 写入 state，顺带清理已过期条目
func (c *MemoryCache) PutOAuthState(ctx context.Context, state string, role model.Role, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[state] = memoryEntry{role: role, expiresAt: now.Add(ttl)}
	return nil
}

// TakeOAuthState 取出并删除 state
func (c *MemoryCache) TakeOAuthState(ctx context.Context, state string) (model.Role, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[state]
	if !ok {
		return "", false, nil
	}
	delete(c.entries, state)
	if !c.now().Before(e.expiresAt) {
		return "", false, nil
	}
	return e.role, true, nil
}

// Len 当前条目数（含未清理的过期条目）
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close 关闭缓存
func (c *MemoryCache) Close() error {
	return nil
}

var _ Cache = (*MemoryCache)(nil)
