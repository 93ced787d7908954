package retrieval

import "time"

// StageRecorder observes per-stage latency so an operator can see which
// pipeline stage dominates a slow query (spec §4.8 "(added)"). The OTel
// histogram-backed implementation lives in internal/telemetry; tests and
// callers that don't care about metrics use noopRecorder.
type StageRecorder interface {
	RecordStage(stage string, d time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) RecordStage(string, time.Duration) {}
