package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booknest/internal/cache"
	"booknest/internal/errors"
)

func newTestTokenStore(t *testing.T) (*TokenStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := cache.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })
	return NewTokenStore(client), mr
}

func TestTokenStore_RefreshTokenLifecycle(t *testing.T) {
	store, mr := newTestTokenStore(t)
	ctx := context.Background()

	require.NoError(t, store.StoreRefreshToken(ctx, "tid", 7, time.Hour))
	userID, err := store.GetRefreshToken(ctx, "tid")
	require.NoError(t, err)
	assert.Equal(t, uint(7), userID)

	require.NoError(t, store.DeleteRefreshToken(ctx, "tid"))
	_, err = store.GetRefreshToken(ctx, "tid")
	assert.ErrorIs(t, err, errors.ErrInvalidToken)

	require.NoError(t, store.StoreRefreshToken(ctx, "short", 7, time.Minute))
	mr.FastForward(2 * time.Minute)
	_, err = store.GetRefreshToken(ctx, "short")
	assert.ErrorIs(t, err, errors.ErrInvalidToken)
}

func TestTokenStore_Blacklist(t *testing.T) {
	store, mr := newTestTokenStore(t)
	ctx := context.Background()

	blacklisted, err := store.IsAccessTokenBlacklisted(ctx, "access")
	require.NoError(t, err)
	assert.False(t, blacklisted)

	require.NoError(t, store.BlacklistAccessToken(ctx, "access", time.Minute))
	blacklisted, err = store.IsAccessTokenBlacklisted(ctx, "access")
	require.NoError(t, err)
	assert.True(t, blacklisted)

	mr.FastForward(2 * time.Minute)
	blacklisted, err = store.IsAccessTokenBlacklisted(ctx, "access")
	require.NoError(t, err)
	assert.False(t, blacklisted)

	require.NoError(t, store.BlacklistAccessToken(ctx, "expired", 0))
	assert.False(t, mr.Exists(accessTokenKeyPrefix+"expired"))
}
