package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"

	"github.com/erp/dealbridge/internal/infrastructure/telemetry"
)

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:     false,
		ServiceName: "dealbridge-test",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.Shutdown(ctx))

	// instruments on the no-op meter accept recordings
	m, err := telemetry.NewBridgeMetrics(mp.Meter("test"))
	require.NoError(t, err)
	m.RecordEvent(ctx, true, time.Second)
}

func TestNewMeterProvider_WithReader(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		ServiceName: "dealbridge-test",
	}, zaptest.NewLogger(t), telemetry.WithMetricReader(reader))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mp.Shutdown(ctx) })

	assert.True(t, mp.IsEnabled())
	telemetry.MustBridgeMetrics(mp.Meter("dealbridge")).RecordCRMLookup(ctx, false)

	got := collect(t, reader)
	lookups, ok := got["dealbridge.crm.lookups"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, lookups.DataPoints, 1)
	outcome, _ := lookups.DataPoints[0].Attributes.Value(telemetry.AttrOutcome)
	assert.Equal(t, "failure", outcome.AsString())
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestBridgeMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	m := telemetry.MustBridgeMetrics(provider.Meter("dealbridge"))
	m.RecordEvent(ctx, true, 200*time.Millisecond)
	m.RecordEvent(ctx, false, time.Second)
	m.RecordEvent(ctx, false, time.Second)
	m.RecordERPPost(ctx, 500, 300*time.Millisecond)
	m.RecordCRMLookup(ctx, true)
	m.RecordDuplicate(ctx)

	got := collect(t, reader)

	events, ok := got["dealbridge.events"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	counts := map[string]int64{}
	for _, dp := range events.DataPoints {
		v, _ := dp.Attributes.Value(telemetry.AttrOutcome)
		counts[v.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"success": 1, "failure": 2}, counts)

	posts, ok := got["dealbridge.erp.posts"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, posts.DataPoints, 1)
	status, _ := posts.DataPoints[0].Attributes.Value(telemetry.AttrStatusCode)
	assert.Equal(t, int64(500), status.AsInt64())

	duration, ok := got["dealbridge.erp.post.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, duration.DataPoints, 1)
	assert.InDelta(t, 0.3, duration.DataPoints[0].Sum, 1e-9)
	assert.Equal(t, telemetry.UpstreamDurationBuckets, duration.DataPoints[0].Bounds)

	assert.Contains(t, got, "dealbridge.crm.lookups")
	assert.Contains(t, got, "dealbridge.event.duration")

	dups, ok := got["dealbridge.deliveries.duplicate"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, dups.DataPoints, 1)
	assert.Equal(t, int64(1), dups.DataPoints[0].Value)
}

func TestCounterAndHistogram(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("test")

	counter, err := telemetry.NewCounter(meter, "test_counter", "Test counter", "1")
	require.NoError(t, err)
	counter.Add(ctx, 5, metric.WithAttributes(attribute.String("k", "v")))
	counter.Inc(ctx, attribute.String("k", "v"))

	hist, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{Name: "test_hist", Unit: "s"})
	require.NoError(t, err)
	hist.Observe(ctx, 0.5)

	got := collect(t, reader)
	sum := got["test_counter"].Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(6), sum.DataPoints[0].Value)

	h := got["test_hist"].Data.(metricdata.Histogram[float64])
	require.Len(t, h.DataPoints, 1)
	assert.Equal(t, uint64(1), h.DataPoints[0].Count)
}
