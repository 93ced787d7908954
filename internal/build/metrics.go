package build

import "time"

// StageRecorder observes how long each build stage took, mirroring
// internal/retrieval's StageRecorder so both the Builder and the Pipeline
// can be wired to the same OTel histogram by internal/telemetry.
type StageRecorder interface {
	RecordStage(stage string, d time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) RecordStage(string, time.Duration) {}
