package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetricsCreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	assert.NotNil(t, m)
}

func TestBuildRecorderRecordsStageHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	rec := BuildRecorder{Metrics: m}

	rec.RecordStage("chunking", 120*time.Millisecond)
	rec.RecordStage("embedding", 80*time.Millisecond)

	rm := collect(t, reader)
	found := findMetric(rm, "georag.build.stage.duration")
	require.NotNil(t, found)
	hist, ok := found.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Len(t, hist.DataPoints, 2)
}

func TestQueryRecorderRecordsStageHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	rec := QueryRecorder{Metrics: m}

	rec.RecordStage("spatial", 5*time.Millisecond)

	rm := collect(t, reader)
	found := findMetric(rm, "georag.query.stage.duration")
	require.NotNil(t, found)
	hist, ok := found.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Len(t, hist.DataPoints, 1)
}

func TestRecordBuildAndQueryCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordBuild(ctx, "ready")
	m.RecordBuild(ctx, "failed")
	m.RecordQuery(ctx, "ok")

	rm := collect(t, reader)

	builds := findMetric(rm, "georag.builds.total")
	require.NotNil(t, builds)
	sum, ok := builds.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, sum.DataPoints, 2)

	queries := findMetric(rm, "georag.queries.total")
	require.NotNil(t, queries)
	qsum, ok := queries.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, qsum.DataPoints, 1)
}
