// Package storage defines the storage contract (C2) that both the local
// fallback store and the Redis-backed remote store implement, and that the
// limiter engine depends on as an interface rather than a concrete type.
package storage

import (
	"context"
	"time"
)

// Strategy identifies which atomic algorithm CheckAndIncrement should run.
// Mirrors ratelimit.Strategy without importing it, so storage has no
// dependency on the engine package.
type Strategy string

const (
	StrategySlidingWindow Strategy = "sliding_window"
	StrategyFixedWindow   Strategy = "fixed_window"
	StrategyTokenBucket   Strategy = "token_bucket"
	StrategyLeakyBucket   Strategy = "leaky_bucket"
)

// Decision is the outcome of one CheckAndIncrement call: whether the
// request was admitted, how many requests remain in the current window (or
// bucket), and — when blocked — how long the caller should wait before
// retrying. When Allowed is true, RetryAfter is always 0; when false,
// Remaining is always 0.
type Decision struct {
	Allowed    bool
	Remaining  uint32
	RetryAfter time.Duration
}

// Store is the storage contract (C2). A single operation,
// CheckAndIncrement, is linearizable per key: two concurrent callers on the
// same key never both observe a partial update. Implementations must
// satisfy the monotone-remaining, retry-after-bound, no-partial-increment,
// and liveness-on-deletion invariants from the rate-limiting core's
// specification.
type Store interface {
	// CheckAndIncrement evaluates and, if admitted, consumes increment
	// units of the rule identified by key. limit and window describe a
	// window-based strategy's budget; capacity bounds a bucket strategy's
	// level. Unknown strategies return a StorageError.
	CheckAndIncrement(ctx context.Context, key string, limit uint32, window time.Duration, strategy Strategy, capacity uint32, increment uint32) (Decision, error)

	// Close releases any resources (connections, goroutines, maps) held by
	// the store. After Close, CheckAndIncrement must fail predictably.
	Close() error
}
