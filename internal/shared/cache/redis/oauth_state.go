package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"craftbid/internal/shared/cache"
	"craftbid/internal/shared/model"
)

// PutOAuthState 写入 state → role，使用 SET EX 设置过期
func (s *Store) PutOAuthState(ctx context.Context, state string, role model.Role, ttl time.Duration) error {
	if err := s.client.Set(ctx, cache.KeyOAuthState+state, string(role), ttl).Err(); err != nil {
		return fmt.Errorf("failed to store oauth state: %w", err)
	}
	return nil
}

// TakeOAuthState 使用 GETDEL 原子地取出并删除，保证 state 只能被使用一次
func (s *Store) TakeOAuthState(ctx context.Context, state string) (model.Role, bool, error) {
	val, err := s.client.GetDel(ctx, cache.KeyOAuthState+state).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to take oauth state: %w", err)
	}
	return model.Role(val), true, nil
}

var _ cache.Cache = (*Store)(nil)
