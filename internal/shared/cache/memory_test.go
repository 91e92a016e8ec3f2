package cache

import (
	"context"
	"testing"
	"time"

	"craftbid/internal/shared/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClockedCache() (*MemoryCache, *time.Time) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }
	return c, &now
}

func TestMemoryCache_TakeOnce(t *testing.T) {
	c, _ := newClockedCache()
	ctx := context.Background()

	require.NoError(t, c.PutOAuthState(ctx, "state-1", model.RoleArtisan, OAuthStateTTL))

	role, ok, err := c.TakeOAuthState(ctx, "state-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, model.RoleArtisan, role)

	_, ok, err = c.TakeOAuthState(ctx, "state-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c, now := newClockedCache()
	ctx := context.Background()

	require.NoError(t, c.PutOAuthState(ctx, "state-1", model.RoleArtisan, OAuthStateTTL))
	*now = now.Add(OAuthStateTTL)

	_, ok, err := c.TakeOAuthState(ctx, "state-1")
	require.NoError(t, err)
	assert.False(t, ok, "entry must expire exactly at ttl")
}

func TestMemoryCache_PurgesExpiredOnPut(t *testing.T) {
	c, now := newClockedCache()
	ctx := context.Background()

	require.NoError(t, c.PutOAuthState(ctx, "old", model.RoleBuyer, time.Minute))
	*now = now.Add(2 * time.Minute)
	require.NoError(t, c.PutOAuthState(ctx, "new", model.RoleBuyer, time.Minute))

	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_UnknownState(t *testing.T) {
	c := NewMemoryCache()
	role, ok, err := c.TakeOAuthState(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, role)
}
