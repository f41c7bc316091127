package auth_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-docauth"
)

func memoryRecord(identityID string) *auth.RefreshToken {
	now := time.Now()
	return &auth.RefreshToken{
		ID:         uuid.New(),
		Token:      uuid.NewString(),
		IdentityID: identityID,
		Status:     auth.RefreshStatusActive,
		IssuedAt:   now,
		ExpiresAt:  now.Add(time.Hour),
	}
}

func TestMemoryStore_InsertCollision(t *testing.T) {
	store := auth.NewMemoryRefreshTokenStore()
	ctx := context.Background()

	record := memoryRecord("usr-1")
	require.NoError(t, store.Insert(ctx, record))

	dupe := memoryRecord("usr-2")
	dupe.Token = record.Token
	require.Error(t, store.Insert(ctx, dupe))
}

func TestMemoryStore_CloneOnRead(t *testing.T) {
	store := auth.NewMemoryRefreshTokenStore()
	ctx := context.Background()

	record := memoryRecord("usr-1")
	require.NoError(t, store.Insert(ctx, record))

	found, err := store.Find(ctx, record.Token)
	require.NoError(t, err)
	found.Status = auth.RefreshStatusRevoked

	// Mutating the returned record must not leak into the store.
	again, err := store.Find(ctx, record.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.RefreshStatusActive, again.Status)
}

func TestMemoryStore_ConcurrentRotation(t *testing.T) {
	store := auth.NewMemoryRefreshTokenStore()
	ctx := context.Background()

	record := memoryRecord("usr-1")
	require.NoError(t, store.Insert(ctx, record))

	const racers = 16
	var wins int64
	var wg sync.WaitGroup
	wg.Add(racers)

	for i := 0; i < racers; i++ {
		go func() {
			defer wg.Done()
			ok, err := store.Rotate(ctx, record.Token, memoryRecord("usr-1"), time.Now())
			assert.NoError(t, err)
			if ok {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins, "exactly one rotation may win")
}
