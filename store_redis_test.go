package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-docauth"
)

func redisStore(t *testing.T) *auth.RedisRefreshTokenStore {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return auth.NewRedisRefreshTokenStoreWithClient(client, "authtest:")
}

func redisRecord(identityID string, ttl time.Duration) *auth.RefreshToken {
	now := time.Now()
	return &auth.RefreshToken{
		ID:         uuid.New(),
		Token:      uuid.NewString(),
		IdentityID: identityID,
		Status:     auth.RefreshStatusActive,
		IssuedAt:   now,
		ExpiresAt:  now.Add(ttl),
	}
}

func TestRedisStore_InsertAndFind(t *testing.T) {
	store := redisStore(t)
	ctx := context.Background()

	record := redisRecord("usr-1", time.Hour)
	require.NoError(t, store.Insert(ctx, record))

	found, err := store.Find(ctx, record.Token)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, record.ID, found.ID)
	assert.Equal(t, "usr-1", found.IdentityID)
	assert.Equal(t, auth.RefreshStatusActive, found.Status)
	assert.Nil(t, found.ReplacedBy)

	missing, err := store.Find(ctx, "no-such-token")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRedisStore_InsertCollision(t *testing.T) {
	store := redisStore(t)
	ctx := context.Background()

	record := redisRecord("usr-1", time.Hour)
	require.NoError(t, store.Insert(ctx, record))

	dupe := redisRecord("usr-2", time.Hour)
	dupe.Token = record.Token
	require.Error(t, store.Insert(ctx, dupe))
}

func TestRedisStore_Rotate(t *testing.T) {
	store := redisStore(t)
	ctx := context.Background()

	record := redisRecord("usr-1", time.Hour)
	require.NoError(t, store.Insert(ctx, record))

	replacement := redisRecord("usr-1", time.Hour)
	ok, err := store.Rotate(ctx, record.Token, replacement, time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	rotated, err := store.Find(ctx, record.Token)
	require.NoError(t, err)
	require.NotNil(t, rotated)
	assert.Equal(t, auth.RefreshStatusRotated, rotated.Status)
	require.NotNil(t, rotated.ReplacedBy)
	assert.Equal(t, replacement.ID, *rotated.ReplacedBy)

	fresh, err := store.Find(ctx, replacement.Token)
	require.NoError(t, err)
	require.NotNil(t, fresh)
	assert.Equal(t, auth.RefreshStatusActive, fresh.Status)

	// A second rotation of the consumed token must lose the race.
	again := redisRecord("usr-1", time.Hour)
	ok, err = store.Rotate(ctx, record.Token, again, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_RotateUnknownToken(t *testing.T) {
	store := redisStore(t)
	ctx := context.Background()

	replacement := redisRecord("usr-1", time.Hour)
	ok, err := store.Rotate(ctx, "ghost", replacement, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_RevokeAllForIdentity(t *testing.T) {
	store := redisStore(t)
	ctx := context.Background()

	first := redisRecord("usr-1", time.Hour)
	second := redisRecord("usr-1", time.Hour)
	other := redisRecord("usr-2", time.Hour)
	require.NoError(t, store.Insert(ctx, first))
	require.NoError(t, store.Insert(ctx, second))
	require.NoError(t, store.Insert(ctx, other))

	affected, err := store.RevokeAllForIdentity(ctx, "usr-1", time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 2, affected)

	for _, token := range []string{first.Token, second.Token} {
		found, err := store.Find(ctx, token)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, auth.RefreshStatusRevoked, found.Status)
		assert.NotNil(t, found.RevokedAt)
	}

	untouched, err := store.Find(ctx, other.Token)
	require.NoError(t, err)
	require.NotNil(t, untouched)
	assert.Equal(t, auth.RefreshStatusActive, untouched.Status)

	// Revoking again touches nothing.
	affected, err = store.RevokeAllForIdentity(ctx, "usr-1", time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 0, affected)
}

func TestRedisStore_DeleteExpired(t *testing.T) {
	store := redisStore(t)
	ctx := context.Background()

	shortLived := redisRecord("usr-1", time.Minute)
	longLived := redisRecord("usr-1", time.Hour)
	require.NoError(t, store.Insert(ctx, shortLived))
	require.NoError(t, store.Insert(ctx, longLived))

	deleted, err := store.DeleteExpired(ctx, time.Now().Add(30*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	gone, err := store.Find(ctx, shortLived.Token)
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := store.Find(ctx, longLived.Token)
	require.NoError(t, err)
	assert.NotNil(t, kept)
}
