package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLimit_ValidSpecs(t *testing.T) {
	cases := []struct {
		spec     string
		requests uint32
		window   time.Duration
	}{
		{"100/minute", 100, time.Minute},
		{"10/s", 10, time.Second},
		{"5/2h", 5, 2 * time.Hour},
		{"1/DAY", 1, 24 * time.Hour},
		{"3/m", 3, time.Minute},
	}

	for _, c := range cases {
		requests, window, err := ParseLimit(c.spec)
		require.NoError(t, err, c.spec)
		assert.Equal(t, c.requests, requests, c.spec)
		assert.Equal(t, c.window, window, c.spec)
	}
}

func TestParseLimit_Malformed(t *testing.T) {
	cases := []string{
		"",
		"100",
		"100/",
		"0/minute",
		"-1/minute",
		"100/fortnight",
		"abc/minute",
	}

	for _, spec := range cases {
		_, _, err := ParseLimit(spec)
		assert.Error(t, err, spec)
	}
}

func TestNewRule_UnknownStrategy(t *testing.T) {
	_, err := NewRule("10/s", Strategy("bogus"))
	require.Error(t, err)
}

func TestNewRule_CapacityDefaultsToRequests(t *testing.T) {
	r, err := NewRule("10/s", StrategyTokenBucket)
	require.NoError(t, err)
	assert.EqualValues(t, 10, r.Capacity)
}

func TestNewRule_WithCapacity(t *testing.T) {
	r, err := NewRule("10/s", StrategyTokenBucket, WithCapacity(50))
	require.NoError(t, err)
	assert.EqualValues(t, 50, r.Capacity)
}

func TestRule_CompositeKey_ChangesWithLimitText(t *testing.T) {
	r1, err := NewRule("10/s", StrategySlidingWindow)
	require.NoError(t, err)
	r2, err := NewRule("20/s", StrategySlidingWindow)
	require.NoError(t, err)

	assert.NotEqual(t, r1.CompositeKey("alice"), r2.CompositeKey("alice"))
	assert.Contains(t, r1.CompositeKey("alice"), "rl:alice:")
}

func TestRule_String(t *testing.T) {
	r, err := NewRule("10/minute", StrategyFixedWindow)
	require.NoError(t, err)
	assert.Equal(t, "10/60s", r.String())
}
