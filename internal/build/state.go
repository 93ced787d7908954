// Package build implements the Index Builder (spec §4.7): a finite-state
// pipeline that normalizes, validates, chunks, embeds, and fingerprints a
// workspace's datasets into a queryable IndexBuild.
package build

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/georag/georag/internal/errs"
)

// State is one stage of the Builder's finite-state machine.
type State string

const (
	Idle        State = "idle"
	Normalizing State = "normalizing"
	Validating  State = "validating"
	Chunking    State = "chunking"
	Embedding   State = "embedding"
	Finalizing  State = "finalizing"
	Ready       State = "ready"
	Failed      State = "failed"
)

// next enumerates the only state each State is allowed to advance to;
// Failed absorbs a transition from any non-terminal state.
var next = map[State]State{
	Idle:        Normalizing,
	Normalizing: Validating,
	Validating:  Chunking,
	Chunking:    Embedding,
	Embedding:   Finalizing,
	Finalizing:  Ready,
}

// transition advances the run to state s, logging the stage change and
// recording the elapsed time spent in the state being left, and rejects
// any jump that isn't Failed or the machine's single permitted successor.
func (r *run) transition(s State) error {
	if s != Failed && next[r.state] != s {
		return errInvalidTransition(r.state, s)
	}
	slog.Info("build_stage", slog.String("workspace_id", r.ws.ID), slog.String("state", string(s)), slog.String("from", string(r.state)))
	if r.recorder != nil && r.state != Idle {
		r.recorder.RecordStage(string(r.state), time.Since(r.stageStart))
	}
	r.state = s
	r.stageStart = time.Now()
	return nil
}

func errInvalidTransition(from, to State) error {
	return errs.New(errs.Internal, fmt.Sprintf("invalid build state transition: %s -> %s", from, to), nil)
}
