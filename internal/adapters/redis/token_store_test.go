package redis

import (
	"context"
	"testing"
	"time"

	domainsession "github.com/brightcart/storefront/internal/domain/session"
	"github.com/brightcart/storefront/internal/ports"
	"github.com/brightcart/storefront/internal/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// setupTestRedis creates a Redis client for testing.
// Tests will be skipped if Redis is not available.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	return testutil.SetupTestRedis(t)
}

func testRecord(id string) domainsession.Record {
	return domainsession.Record{
		ID:    id,
		Token: &oauth2.Token{AccessToken: "T1", RefreshToken: "R1"},
		User: &domainsession.UserProfile{
			ID:         "u1",
			Name:       "Test User",
			Email:      "user@example.com",
			Role:       domainsession.RoleUser,
			IsVerified: true,
			IsActive:   true,
		},
	}
}

func TestTokenStore_SaveAndGet(t *testing.T) {
	client := setupTestRedis(t)
	store := NewTokenStore(TokenStoreOptions{Client: client, TTL: 30 * time.Minute})
	ctx := context.Background()

	rec := testRecord("test-session-1")
	require.NoError(t, store.Save(ctx, rec))

	got, err := store.Get(ctx, "test-session-1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "T1", got.AccessToken())
	assert.Equal(t, "R1", got.RefreshToken())
	require.NotNil(t, got.User)
	assert.Equal(t, "u1", got.User.ID)
	assert.Equal(t, domainsession.RoleUser, got.User.Role)
}

func TestTokenStore_SaveRequiresID(t *testing.T) {
	client := setupTestRedis(t)
	store := NewTokenStore(TokenStoreOptions{Client: client})

	err := store.Save(context.Background(), domainsession.Record{})
	require.Error(t, err)
}

func TestTokenStore_GetNonExistent(t *testing.T) {
	client := setupTestRedis(t)
	store := NewTokenStore(TokenStoreOptions{Client: client})

	_, err := store.Get(context.Background(), "non-existent")
	assert.Equal(t, ErrNotFound, err)
}

func TestTokenStore_CorruptRecordReadsAsAbsent(t *testing.T) {
	client := setupTestRedis(t)
	store := NewTokenStore(TokenStoreOptions{Client: client, Prefix: "session:"})
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "session:corrupt", "{not json", time.Minute).Err())

	_, err := store.Get(ctx, "corrupt")
	assert.Equal(t, ErrNotFound, err)

	// the corrupt entry was cleared
	exists, err := client.Exists(ctx, "session:corrupt").Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}

func TestTokenStore_Delete(t *testing.T) {
	client := setupTestRedis(t)
	store := NewTokenStore(TokenStoreOptions{Client: client})
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testRecord("to-delete")))
	require.NoError(t, store.Delete(ctx, "to-delete"))

	_, err := store.Get(ctx, "to-delete")
	assert.Equal(t, ErrNotFound, err)

	// deleting twice is a no-op
	require.NoError(t, store.Delete(ctx, "to-delete"))
	require.NoError(t, store.Delete(ctx, ""))
}

func TestTokenStore_IDs(t *testing.T) {
	client := setupTestRedis(t)
	store := NewTokenStore(TokenStoreOptions{Client: client, Prefix: "session:"})
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testRecord("a")))
	require.NoError(t, store.Save(ctx, testRecord("b")))

	// unrelated keys are not listed
	require.NoError(t, client.Set(ctx, "notice:a", "x", time.Minute).Err())

	ids, err := store.IDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func testNotice(level ports.NoticeLevel, msg string) ports.Notice {
	return ports.Notice{Level: level, Message: msg}
}

func TestNoticeStore_PushAndDrain(t *testing.T) {
	client := setupTestRedis(t)
	notices := NewNoticeStore(client, nil)
	ctx := context.Background()

	notices.Push(ctx, "s1", testNotice("warning", "Please sign in to continue."))
	notices.Push(ctx, "s1", testNotice("error", "Admins only."))
	notices.Push(ctx, "other", testNotice("info", "unrelated"))

	got := notices.Drain(ctx, "s1")
	require.Len(t, got, 2)
	assert.Equal(t, "Please sign in to continue.", got[0].Message)
	assert.Equal(t, "Admins only.", got[1].Message)

	// drained notices are gone
	assert.Empty(t, notices.Drain(ctx, "s1"))
}
