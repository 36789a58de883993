package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace_back_end/internal/cache"
	"marketplace_back_end/internal/cache/cachetest"
)

func TestTokenStoreRotation(t *testing.T) {
	ctx := context.Background()
	store := cache.NewTokenStore(cachetest.NewMemKV())

	require.NoError(t, store.Replace(ctx, "u1", cache.AccessToken, "old", time.Hour))
	require.NoError(t, store.Replace(ctx, "u1", cache.AccessToken, "new", time.Hour))

	ok, err := store.Contains(ctx, "u1", cache.AccessToken, "old")
	require.NoError(t, err)
	assert.False(t, ok, "previous token must be invalidated")

	ok, err = store.Contains(ctx, "u1", cache.AccessToken, "new")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Contains(ctx, "u1", cache.RefreshToken, "new")
	require.NoError(t, err)
	assert.False(t, ok, "kinds are kept apart")
}

func TestTokenStoreExpiryAndRevoke(t *testing.T) {
	ctx := context.Background()
	kv := cachetest.NewMemKV()
	store := cache.NewTokenStore(kv)

	require.NoError(t, store.Replace(ctx, "u1", cache.AccessToken, "a", time.Minute))
	require.NoError(t, store.Replace(ctx, "u1", cache.RefreshToken, "r", time.Hour))

	kv.Advance(2 * time.Minute)
	ok, err := store.Contains(ctx, "u1", cache.AccessToken, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Revoke(ctx, "u1"))
	ok, err = store.Contains(ctx, "u1", cache.RefreshToken, "r")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResetTokens(t *testing.T) {
	ctx := context.Background()
	kv := cachetest.NewMemKV()
	tokens := cache.NewResetTokens(kv, 2*time.Hour)

	token, err := tokens.Issue(ctx, "user@example.com")
	require.NoError(t, err)

	email, err := tokens.Lookup(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", email)

	_, err = kv.Get(ctx, "password_reset:"+token)
	assert.ErrorIs(t, err, cache.ErrNotFound, "raw token must not be used as key")

	require.NoError(t, tokens.Consume(ctx, token))
	_, err = tokens.Lookup(ctx, token)
	assert.ErrorIs(t, err, cache.ErrResetTokenInvalid)
}

func TestResetTokenExpires(t *testing.T) {
	ctx := context.Background()
	kv := cachetest.NewMemKV()
	tokens := cache.NewResetTokens(kv, 2*time.Hour)

	token, err := tokens.Issue(ctx, "user@example.com")
	require.NoError(t, err)

	kv.Advance(2*time.Hour + time.Second)
	_, err = tokens.Lookup(ctx, token)
	assert.ErrorIs(t, err, cache.ErrResetTokenInvalid)

	_, err = tokens.Lookup(ctx, "")
	assert.ErrorIs(t, err, cache.ErrResetTokenInvalid)
}
