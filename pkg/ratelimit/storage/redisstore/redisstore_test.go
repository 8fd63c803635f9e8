package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-run/ratecore/pkg/ratelimit/storage"
	"github.com/lattice-run/ratecore/pkg/ratelimit/storage/redisstore"
)

func newTestStore(t *testing.T) (*redisstore.Store, *miniredis.Miniredis) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })

	return redisstore.NewFromClient(client), s
}

func TestFixedWindow_AllowsUpToLimitThenBlocks(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	d1, err := store.CheckAndIncrement(ctx, "k1", 2, 10*time.Second, storage.StrategyFixedWindow, 0, 1)
	require.NoError(t, err)
	assert.True(t, d1.Allowed)
	assert.EqualValues(t, 1, d1.Remaining)

	d2, err := store.CheckAndIncrement(ctx, "k1", 2, 10*time.Second, storage.StrategyFixedWindow, 0, 1)
	require.NoError(t, err)
	assert.True(t, d2.Allowed)
	assert.EqualValues(t, 0, d2.Remaining)

	d3, err := store.CheckAndIncrement(ctx, "k1", 2, 10*time.Second, storage.StrategyFixedWindow, 0, 1)
	require.NoError(t, err)
	assert.False(t, d3.Allowed)
	assert.EqualValues(t, 0, d3.Remaining)
	assert.True(t, d3.RetryAfter > 0 && d3.RetryAfter <= 10*time.Second)
}

// Sliding/bucket "now" is read from the host's wall clock (go-timecache),
// not from miniredis's internal clock — miniredis.FastForward only advances
// its own TTL bookkeeping, so these tests sleep for real instead. The bucket
// scripts receive now in whole seconds, so the bucket tests sleep past a
// second boundary before expecting a refill or drain.

func TestSlidingWindow_AdmitsAcrossDistinctInstants(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	allow := func() storage.Decision {
		d, err := store.CheckAndIncrement(ctx, "k2", 2, 200*time.Millisecond, storage.StrategySlidingWindow, 0, 1)
		require.NoError(t, err)
		return d
	}

	d1 := allow()
	assert.True(t, d1.Allowed)
	d2 := allow()
	assert.True(t, d2.Allowed)

	d3 := allow()
	assert.False(t, d3.Allowed, "third call within the 200ms window must be blocked")

	time.Sleep(250 * time.Millisecond)
	d4 := allow()
	assert.True(t, d4.Allowed, "after the window elapses the oldest events must be pruned")
}

func TestTokenBucket_RefillsOverTime(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		d, err := store.CheckAndIncrement(ctx, "k3", 10, 200*time.Millisecond, storage.StrategyTokenBucket, 10, 1)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "call %d should be admitted from a full bucket", i)
	}

	blocked, err := store.CheckAndIncrement(ctx, "k3", 10, 200*time.Millisecond, storage.StrategyTokenBucket, 10, 1)
	require.NoError(t, err)
	assert.False(t, blocked.Allowed)

	time.Sleep(1100 * time.Millisecond)
	refilled, err := store.CheckAndIncrement(ctx, "k3", 10, 200*time.Millisecond, storage.StrategyTokenBucket, 10, 1)
	require.NoError(t, err)
	assert.True(t, refilled.Allowed, "after a whole second of refill a token must be available")
}

func TestLeakyBucket_DrainsOverTime(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := store.CheckAndIncrement(ctx, "k4", 5, 500*time.Millisecond, storage.StrategyLeakyBucket, 5, 1)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}

	blocked, err := store.CheckAndIncrement(ctx, "k4", 5, 500*time.Millisecond, storage.StrategyLeakyBucket, 5, 1)
	require.NoError(t, err)
	assert.False(t, blocked.Allowed, "bucket is full and has had no time to drain")

	time.Sleep(1100 * time.Millisecond)
	drained, err := store.CheckAndIncrement(ctx, "k4", 5, 500*time.Millisecond, storage.StrategyLeakyBucket, 5, 1)
	require.NoError(t, err)
	assert.True(t, drained.Allowed, "after a whole second of draining the level must admit")
}

func TestCheckAndIncrement_UnknownStrategy(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.CheckAndIncrement(ctx, "k5", 1, time.Second, storage.Strategy("bogus"), 0, 1)
	assert.Error(t, err)
}

func TestClose_ReleasesClient(t *testing.T) {
	store, _ := newTestStore(t)
	assert.NoError(t, store.Close())
}
