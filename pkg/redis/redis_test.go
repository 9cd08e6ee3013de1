package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb), mr
}

func TestBlacklistToken(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	revoked, err := store.IsTokenBlacklisted(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.BlacklistToken(ctx, "jti-1", time.Minute))

	revoked, err = store.IsTokenBlacklisted(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	mr.FastForward(2 * time.Minute)

	revoked, err = store.IsTokenBlacklisted(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestBlacklistToken_ExpiredIsNoop(t *testing.T) {
	store, mr := setupStore(t)

	require.NoError(t, store.BlacklistToken(context.Background(), "jti-2", 0))
	assert.False(t, mr.Exists(blacklistKey("jti-2")))
}

func TestLock_MutualExclusion(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	token, ok, err := store.AcquireLock(ctx, "lock:cp:1", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = store.AcquireLock(ctx, "lock:cp:1", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	// a stale token must not release someone else's lock
	require.NoError(t, store.ReleaseLock(ctx, "lock:cp:1", "not-mine"))
	assert.True(t, mr.Exists("lock:cp:1"))

	require.NoError(t, store.ReleaseLock(ctx, "lock:cp:1", token))
	assert.False(t, mr.Exists("lock:cp:1"))

	_, ok, err = store.AcquireLock(ctx, "lock:cp:1", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLock_ExpiresAfterTTL(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	_, ok, err := store.AcquireLock(ctx, "lock:cp:2", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok, err = store.AcquireLock(ctx, "lock:cp:2", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInvalidations_ReachSubscribers(t *testing.T) {
	store, _ := setupStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan []string, 1)
	require.NoError(t, store.SubscribeInvalidations(ctx, func(keys ...string) {
		got <- keys
	}))

	require.NoError(t, store.PublishInvalidation(ctx, "id:7", "cp:3"))

	select {
	case keys := <-got:
		assert.Equal(t, []string{"id:7", "cp:3"}, keys)
	case <-time.After(2 * time.Second):
		t.Fatal("invalidation was not delivered")
	}
}
