package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BuildRecorder adapts Metrics.BuildStageDuration to internal/build's
// StageRecorder interface, so a Builder records every finite-state
// transition's duration into the shared histogram.
type BuildRecorder struct {
	Metrics *Metrics
}

// RecordStage records d against the build-stage histogram, attributed by
// stage name.
func (r BuildRecorder) RecordStage(stage string, d time.Duration) {
	r.Metrics.BuildStageDuration.Record(context.Background(), d.Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// QueryRecorder adapts Metrics.QueryStageDuration to internal/retrieval's
// StageRecorder interface, so a Pipeline records every stage's duration
// into the shared histogram.
type QueryRecorder struct {
	Metrics *Metrics
}

// RecordStage records d against the query-stage histogram, attributed by
// stage name.
func (r QueryRecorder) RecordStage(stage string, d time.Duration) {
	r.Metrics.QueryStageDuration.Record(context.Background(), d.Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}
