package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStyledRendererUpdateProgress(t *testing.T) {
	var buf bytes.Buffer
	r := NewStyledRenderer(Config{Output: &buf, NoColor: true})

	r.UpdateProgress(ProgressEvent{Stage: StageEmbedding, Current: 5, Total: 20})
	assert.Contains(t, buf.String(), "5/20")
}

func TestStyledRendererAddError(t *testing.T) {
	var buf bytes.Buffer
	r := NewStyledRenderer(Config{Output: &buf, NoColor: true})

	r.AddError(ErrorEvent{File: "ds.geojson", Err: errors.New("bad geometry")})
	assert.Contains(t, buf.String(), "ds.geojson")
	assert.Equal(t, 1, r.errors)
}

func TestStyledRendererUpdateProgressShowsSpeedOnceSampled(t *testing.T) {
	var buf bytes.Buffer
	r := NewStyledRenderer(Config{Output: &buf, NoColor: true})

	r.UpdateProgress(ProgressEvent{Stage: StageEmbedding, Current: 1, Total: 100})
	r.tracker.lastSpeedCalc = r.tracker.lastSpeedCalc.Add(-time.Second)
	r.UpdateProgress(ProgressEvent{Stage: StageEmbedding, Current: 50, Total: 100})

	assert.Contains(t, buf.String(), "/s, eta")
}

func TestStyledRendererCompleteFallsBackToTrackedIssueCounts(t *testing.T) {
	var buf bytes.Buffer
	r := NewStyledRenderer(Config{Output: &buf, NoColor: true})

	r.AddError(ErrorEvent{Err: errors.New("boom")})
	r.AddError(ErrorEvent{Err: errors.New("careful"), IsWarn: true})
	r.Complete(CompletionStats{Datasets: 1, Chunks: 1})

	assert.Contains(t, buf.String(), "1 errors, 1 warnings")
}

func TestStyledRendererComplete(t *testing.T) {
	var buf bytes.Buffer
	r := NewStyledRenderer(Config{Output: &buf, NoColor: true})

	r.Complete(CompletionStats{
		Datasets: 3, Chunks: 120, Duration: 2 * time.Second,
		Stages: StageTimings{Chunk: 500 * time.Millisecond, Embed: 1200 * time.Millisecond},
		Embedder: EmbedderInfo{Provider: "hash", Model: "hash-16", Dimensions: 16},
	})

	out := buf.String()
	assert.Contains(t, out, "build complete")
	assert.Contains(t, out, "hash-16")
}

func TestNewRendererPicksPlainWhenNoColor(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(Config{Output: &buf, NoColor: true})

	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
}
