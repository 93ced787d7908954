package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStageIconAndString(t *testing.T) {
	assert.Equal(t, "Embedding", StageEmbedding.String())
	assert.Equal(t, "EMBED", StageEmbedding.Icon())
}

func TestPlainRendererUpdateProgress(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(Config{Output: &buf})

	r.UpdateProgress(ProgressEvent{Stage: StageChunking, Current: 3, Total: 10})
	assert.Contains(t, buf.String(), "[CHUNK] 3/10")
}

func TestPlainRendererAddError(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(Config{Output: &buf})

	r.AddError(ErrorEvent{File: "ds.geojson", Err: errors.New("bad geometry"), IsWarn: true})
	assert.Contains(t, buf.String(), "WARN: ds.geojson: bad geometry")
}

func TestPlainRendererComplete(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(Config{Output: &buf})

	r.Complete(CompletionStats{
		Datasets: 2, Chunks: 50, Duration: 1200 * time.Millisecond,
		Embedder: EmbedderInfo{Provider: "hash", Model: "hash-16", Dimensions: 16},
	})

	out := buf.String()
	assert.Contains(t, out, "2 datasets, 50 chunks")
	assert.Contains(t, out, "hash-16")
}

func TestDetectNoColorWithoutTTY(t *testing.T) {
	var buf bytes.Buffer
	assert.True(t, DetectNoColor(&buf))
}
