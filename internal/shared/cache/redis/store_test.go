package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"craftbid/internal/shared/cache"
	"craftbid/internal/shared/model"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestRedisURL() string {
	if url := os.Getenv("REDIS_URL"); url != "" {
		return url
	}
	return "redis://localhost:6379/1" // 使用 DB 1 进行测试
}

func setupTestStore(t *testing.T) *Store {
	opts, err := goredis.ParseURL(getTestRedisURL())
	require.NoError(t, err)

	client := goredis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available: %v", err)
	}

	store := NewStoreFromClient(client)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_OAuthState(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	state := "test-state-" + time.Now().Format("150405.000000")

	require.NoError(t, store.PutOAuthState(ctx, state, model.RoleArtisan, cache.OAuthStateTTL))

	ttl, err := store.Client().TTL(ctx, cache.KeyOAuthState+state).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 9*time.Minute)

	role, ok, err := store.TakeOAuthState(ctx, state)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, model.RoleArtisan, role)

	_, ok, err = store.TakeOAuthState(ctx, state)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_OAuthStateExpires(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	state := "test-expiring-" + time.Now().Format("150405.000000")

	require.NoError(t, store.PutOAuthState(ctx, state, model.RoleBuyer, 50*time.Millisecond))
	time.Sleep(150 * time.Millisecond)

	_, ok, err := store.TakeOAuthState(ctx, state)
	require.NoError(t, err)
	assert.False(t, ok)
}
