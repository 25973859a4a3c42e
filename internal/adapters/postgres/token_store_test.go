package postgres

import (
	"context"
	"testing"
	"time"

	domainsession "github.com/brightcart/storefront/internal/domain/session"
	"github.com/brightcart/storefront/internal/ports"
	"github.com/brightcart/storefront/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func setupStore(t *testing.T, ttl time.Duration) *TokenStore {
	t.Helper()
	pool := testutil.SetupTestDB(t)
	store, err := NewTokenStore(TokenStoreOptions{Pool: pool, TTL: ttl})
	require.NoError(t, err)
	return store
}

func TestTokenStore_SaveAndGet(t *testing.T) {
	store := setupStore(t, time.Hour)
	ctx := context.Background()

	rec := domainsession.Record{
		ID:    "pg-session-1",
		Token: &oauth2.Token{AccessToken: "T1", RefreshToken: "R1"},
		User: &domainsession.UserProfile{
			ID:         "u1",
			Name:       "Test User",
			Email:      "user@example.com",
			Role:       domainsession.RoleAdmin,
			IsVerified: true,
			IsActive:   true,
		},
	}
	require.NoError(t, store.Save(ctx, rec))

	got, err := store.Get(ctx, "pg-session-1")
	require.NoError(t, err)
	assert.Equal(t, "T1", got.AccessToken())
	assert.Equal(t, "R1", got.RefreshToken())
	require.NotNil(t, got.User)
	assert.Equal(t, domainsession.RoleAdmin, got.User.Role)
	assert.True(t, got.User.IsAdmin())
}

func TestTokenStore_SaveUpserts(t *testing.T) {
	store := setupStore(t, time.Hour)
	ctx := context.Background()

	rec := domainsession.Record{
		ID:    "pg-upsert",
		Token: &oauth2.Token{AccessToken: "old", RefreshToken: "old-r"},
	}
	require.NoError(t, store.Save(ctx, rec))

	rec.Token = &oauth2.Token{AccessToken: "new", RefreshToken: "new-r"}
	require.NoError(t, store.Save(ctx, rec))

	got, err := store.Get(ctx, "pg-upsert")
	require.NoError(t, err)
	assert.Equal(t, "new", got.AccessToken())
}

func TestTokenStore_GetNonExistent(t *testing.T) {
	store := setupStore(t, time.Hour)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestTokenStore_ExpiredRecordReadsAsAbsent(t *testing.T) {
	store := setupStore(t, time.Millisecond)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domainsession.Record{ID: "pg-expired"}))
	time.Sleep(50 * time.Millisecond)

	_, err := store.Get(ctx, "pg-expired")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	ids, err := store.IDs(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids, "pg-expired")

	purged, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, purged, int64(1))
}

func TestTokenStore_DeleteAndIDs(t *testing.T) {
	store := setupStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domainsession.Record{ID: "a"}))
	require.NoError(t, store.Save(ctx, domainsession.Record{ID: "b"}))

	ids, err := store.IDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)

	require.NoError(t, store.Delete(ctx, "a"))
	require.NoError(t, store.Delete(ctx, "a")) // idempotent
	require.NoError(t, store.Delete(ctx, ""))

	ids, err = store.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)
}
