package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-run/ratecore/pkg/ratelimit/storage"
)

func TestCheckAndIncrement_AllowsUpToLimit(t *testing.T) {
	s := New()
	ctx := context.Background()

	d1, err := s.CheckAndIncrement(ctx, "k", 2, time.Second, storage.StrategySlidingWindow, 0, 1)
	require.NoError(t, err)
	assert.True(t, d1.Allowed)
	assert.EqualValues(t, 1, d1.Remaining)

	d2, err := s.CheckAndIncrement(ctx, "k", 2, time.Second, storage.StrategySlidingWindow, 0, 1)
	require.NoError(t, err)
	assert.True(t, d2.Allowed)
	assert.EqualValues(t, 0, d2.Remaining)

	d3, err := s.CheckAndIncrement(ctx, "k", 2, time.Second, storage.StrategySlidingWindow, 0, 1)
	require.NoError(t, err)
	assert.False(t, d3.Allowed)
	assert.EqualValues(t, 0, d3.Remaining)
	assert.True(t, d3.RetryAfter > 0 && d3.RetryAfter <= time.Second)
}

func TestCheckAndIncrement_PrunesExpiredEvents(t *testing.T) {
	s := New()
	ctx := context.Background()

	d1, err := s.CheckAndIncrement(ctx, "k", 1, 50*time.Millisecond, storage.StrategySlidingWindow, 0, 1)
	require.NoError(t, err)
	require.True(t, d1.Allowed)

	d2, err := s.CheckAndIncrement(ctx, "k", 1, 50*time.Millisecond, storage.StrategySlidingWindow, 0, 1)
	require.NoError(t, err)
	assert.False(t, d2.Allowed)

	time.Sleep(60 * time.Millisecond)

	d3, err := s.CheckAndIncrement(ctx, "k", 1, 50*time.Millisecond, storage.StrategySlidingWindow, 0, 1)
	require.NoError(t, err)
	assert.True(t, d3.Allowed, "events older than window must be pruned before counting")
}

func TestCheckAndIncrement_IndependentKeys(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.CheckAndIncrement(ctx, "a", 1, time.Second, storage.StrategySlidingWindow, 0, 1)
	require.NoError(t, err)

	d, err := s.CheckAndIncrement(ctx, "b", 1, time.Second, storage.StrategySlidingWindow, 0, 1)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "a separate key must not share a's counter")
}

func TestClose_FailsSubsequentCalls(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Close())

	_, err := s.CheckAndIncrement(ctx, "k", 1, time.Second, storage.StrategySlidingWindow, 0, 1)
	assert.Error(t, err)
}

func TestCheckAndIncrement_ConcurrentCallersNeverExceedLimit(t *testing.T) {
	s := New()
	ctx := context.Background()

	const limit = 20
	const callers = 100

	results := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		go func() {
			d, err := s.CheckAndIncrement(ctx, "k", limit, time.Minute, storage.StrategySlidingWindow, 0, 1)
			if err != nil {
				results <- false
				return
			}
			results <- d.Allowed
		}()
	}

	allowed := 0
	for i := 0; i < callers; i++ {
		if <-results {
			allowed++
		}
	}

	assert.Equal(t, limit, allowed)
}
