// Package memory implements the local fallback store (C3): a purely
// in-process sliding-window counter guarded by a single mutex, used when the
// remote store is unreachable and graceful_degradation is enabled.
//
// Only sliding-window is implemented here, per spec: the local store exists
// solely to keep the library usable during remote outages, and exact
// multi-host fairness is already lost the moment a process falls back to
// its own memory, so one canonical algorithm suffices. When a rule using
// another strategy is served from fallback, CheckAndIncrement approximates
// it with sliding-window over the same (limit, window) — it ignores the
// strategy and capacity arguments entirely, by design.
package memory

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/agilira/go-timecache"

	rcerrors "github.com/lattice-run/ratecore/pkg/errors"
	"github.com/lattice-run/ratecore/pkg/ratelimit/storage"
)

var errClosed = rcerrors.NewStorageError(rcerrors.NewClosedError(), "local store is closed")

// Store is the local, process-wide fallback store (C3).
type Store struct {
	mu     sync.Mutex
	events map[string][]time.Time
	closed bool
}

// New creates an empty local store.
func New() *Store {
	return &Store{events: make(map[string][]time.Time)}
}

func now() time.Time {
	return time.Unix(0, timecache.CachedTimeNano())
}

// CheckAndIncrement implements the sliding-window algorithm described in
// §4.3: prune events at or before now-window, then admit iff the pruned
// count plus increment does not exceed limit. strategy and capacity are
// accepted for interface compatibility with storage.Store but unused.
func (s *Store) CheckAndIncrement(_ context.Context, key string, limit uint32, window time.Duration, _ storage.Strategy, _ uint32, increment uint32) (storage.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.Decision{}, errClosed
	}

	t := now()
	cutoff := t.Add(-window)

	events := pruneBefore(s.events[key], cutoff)

	if uint32(len(events))+increment <= limit {
		for i := uint32(0); i < increment; i++ {
			events = append(events, t)
		}
		s.events[key] = events
		return storage.Decision{
			Allowed:   true,
			Remaining: limit - uint32(len(events)),
		}, nil
	}

	s.events[key] = events

	retryAfter := time.Duration(0)
	if len(events) > 0 {
		oldest := events[0]
		remaining := oldest.Add(window).Sub(t)
		if remaining > 0 {
			retryAfter = time.Duration(math.Ceil(remaining.Seconds())) * time.Second
		}
	}

	return storage.Decision{
		Allowed:    false,
		RetryAfter: retryAfter,
	}, nil
}

func pruneBefore(events []time.Time, cutoff time.Time) []time.Time {
	kept := events[:0]
	for _, t := range events {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// Close clears all local state. Subsequent CheckAndIncrement calls fail.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.events = nil
	return nil
}
