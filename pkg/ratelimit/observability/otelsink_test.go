package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/lattice-run/ratecore/pkg/ratelimit/observability"
)

func TestOTelSink_RecordsAllowedBlockedAndLatency(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	sink, err := observability.NewOTelSink(provider)
	require.NoError(t, err)

	ctx := context.Background()
	sink.LogAllowed(ctx, "10/s", "alice")
	sink.LogViolation(ctx, "10/s", "alice", 2*time.Second)
	sink.ObserveLatency(ctx, "primary", 5*time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	var allowedTotal, blockedTotal int64
	var histogramPoints int

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case "ratecore_requests_allowed_total":
				sum := m.Data.(metricdata.Sum[int64])
				for _, dp := range sum.DataPoints {
					allowedTotal += dp.Value
				}
			case "ratecore_requests_blocked_total":
				sum := m.Data.(metricdata.Sum[int64])
				for _, dp := range sum.DataPoints {
					blockedTotal += dp.Value
				}
			case "ratecore_store_latency_ns":
				hist := m.Data.(metricdata.Histogram[int64])
				for _, dp := range hist.DataPoints {
					histogramPoints += int(dp.Count)
				}
			}
		}
	}

	assert.EqualValues(t, 1, allowedTotal)
	assert.EqualValues(t, 1, blockedTotal)
	assert.Equal(t, 1, histogramPoints)
}

func TestNewOTelSink_NilProvider(t *testing.T) {
	_, err := observability.NewOTelSink(nil)
	assert.Error(t, err)
}

func TestNoopSink_DoesNotPanic(t *testing.T) {
	sink := observability.NoopSink{}
	ctx := context.Background()
	sink.LogAllowed(ctx, "r", "i")
	sink.LogViolation(ctx, "r", "i", time.Second)
	sink.ObserveLatency(ctx, "primary", time.Millisecond)
}
