// Package observability defines the observability sink (C7): the interface
// the engine reports decisions and latencies through, plus a no-op and an
// OpenTelemetry-backed implementation.
package observability

import (
	"context"
	"time"
)

// Sink receives engine-level events. Implementations must not block the
// caller for longer than recording a metric takes — the engine calls these
// synchronously on the request path.
type Sink interface {
	// LogAllowed records an admitted request for rule against identity.
	LogAllowed(ctx context.Context, rule string, identity string)

	// LogViolation records a blocked request, including the retry-after
	// the caller was given.
	LogViolation(ctx context.Context, rule string, identity string, retryAfter time.Duration)

	// ObserveLatency records how long the primary-store round trip took.
	ObserveLatency(ctx context.Context, store string, d time.Duration)
}

// NoopSink discards every event. It is the engine's default sink so that
// observability is opt-in rather than a hard dependency on an OTel
// MeterProvider being configured.
type NoopSink struct{}

func (NoopSink) LogAllowed(context.Context, string, string)                  {}
func (NoopSink) LogViolation(context.Context, string, string, time.Duration) {}
func (NoopSink) ObserveLatency(context.Context, string, time.Duration)       {}

var _ Sink = NoopSink{}
