package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelSink implements Sink using an OpenTelemetry MeterProvider, grounded on
// agilira-balios/otel/collector.go's OTelMetricsCollector: one counter per
// outcome plus a latency histogram, tagged with a rule attribute (counters)
// or a store attribute (histogram) rather than baked into separate
// instruments. The identity is not recorded as an attribute.
type OTelSink struct {
	allowed metric.Int64Counter
	blocked metric.Int64Counter
	latency metric.Int64Histogram
}

// Options configures an OTelSink.
type Options struct {
	// MeterName is the OpenTelemetry meter name. Default: "ratecore".
	MeterName string
}

// Option is a functional option for NewOTelSink.
type Option func(*Options)

// WithMeterName sets a custom meter name, useful when multiple engines run
// in the same process and need distinguishable metrics.
func WithMeterName(name string) Option {
	return func(o *Options) { o.MeterName = name }
}

// NewOTelSink creates the three OTel instruments backing this sink.
func NewOTelSink(provider metric.MeterProvider, opts ...Option) (*OTelSink, error) {
	if provider == nil {
		return nil, errors.New("ratecore: meter provider cannot be nil")
	}

	options := Options{MeterName: "ratecore"}
	for _, opt := range opts {
		opt(&options)
	}

	meter := provider.Meter(options.MeterName)

	s := &OTelSink{}
	var err error

	s.allowed, err = meter.Int64Counter(
		"ratecore_requests_allowed_total",
		metric.WithDescription("Total number of requests admitted by the rate limiter"),
	)
	if err != nil {
		return nil, err
	}

	s.blocked, err = meter.Int64Counter(
		"ratecore_requests_blocked_total",
		metric.WithDescription("Total number of requests blocked by the rate limiter"),
	)
	if err != nil {
		return nil, err
	}

	s.latency, err = meter.Int64Histogram(
		"ratecore_store_latency_ns",
		metric.WithDescription("Latency of the primary-store round trip in nanoseconds"),
		metric.WithUnit("ns"),
	)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *OTelSink) LogAllowed(ctx context.Context, rule string, identity string) {
	s.allowed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("rule", rule),
	))
}

func (s *OTelSink) LogViolation(ctx context.Context, rule string, identity string, retryAfter time.Duration) {
	s.blocked.Add(ctx, 1, metric.WithAttributes(
		attribute.String("rule", rule),
	))
}

func (s *OTelSink) ObserveLatency(ctx context.Context, store string, d time.Duration) {
	s.latency.Record(ctx, d.Nanoseconds(), metric.WithAttributes(
		attribute.String("store", store),
	))
}

var _ Sink = (*OTelSink)(nil)
