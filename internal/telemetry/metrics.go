// Package telemetry wires the Index Builder and Retrieval Pipeline's stage
// timings into OpenTelemetry metric instruments (spec §4.7, §4.8 "(added)"):
// a histogram per stage kind and counters for build and query outcomes,
// exported through a Prometheus bridge.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/georag/georag"

// latencyBuckets are the explicit histogram boundaries, in seconds, used for
// every stage-latency histogram.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// Metrics holds the OTel instruments shared by the Builder and the
// Pipeline. All fields are safe for concurrent use.
type Metrics struct {
	// BuildStageDuration records how long each build finite-state stage
	// took, keyed by the "stage" attribute (spec §4.7's Idle..Ready chain).
	BuildStageDuration metric.Float64Histogram

	// QueryStageDuration records how long each retrieval pipeline stage
	// took, keyed by the "stage" attribute (spec §4.8's spatial/lexical/
	// semantic narrowing chain).
	QueryStageDuration metric.Float64Histogram

	// BuildsTotal counts completed builds by outcome ("ready"/"failed").
	BuildsTotal metric.Int64Counter

	// QueriesTotal counts completed queries by outcome ("ok"/"error").
	QueriesTotal metric.Int64Counter
}

// NewMetrics creates a fully initialized Metrics using mp. Returns an error
// if any instrument registration fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}
	var err error

	if met.BuildStageDuration, err = m.Float64Histogram("georag.build.stage.duration",
		metric.WithDescription("Duration of each index build stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.QueryStageDuration, err = m.Float64Histogram("georag.query.stage.duration",
		metric.WithDescription("Duration of each retrieval pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BuildsTotal, err = m.Int64Counter("georag.builds.total",
		metric.WithDescription("Total index builds by outcome."),
	); err != nil {
		return nil, err
	}
	if met.QueriesTotal, err = m.Int64Counter("georag.queries.total",
		metric.WithDescription("Total retrieval queries by outcome."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level Metrics instance, creating it on
// first call from otel.GetMeterProvider. Panics if instrument creation
// fails, which should not happen against the global provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("telemetry: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordBuild increments BuildsTotal for outcome ("ready" or "failed").
func (m *Metrics) RecordBuild(ctx context.Context, outcome string) {
	m.BuildsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordQuery increments QueriesTotal for outcome ("ok" or "error").
func (m *Metrics) RecordQuery(ctx context.Context, outcome string) {
	m.QueriesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
