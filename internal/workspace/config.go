// Package workspace implements the Workspace Coordinator (spec §4.9): the
// build/query exclusion lock, per-dataset ingestion locking, readiness
// status computation, and optional config hot-reload.
package workspace

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings are the non-structural knobs a running Coordinator may reload
// without requiring a rebuild: pipeline timeouts and batch sizes (spec
// §4.9 "(added)"). Anything that would change a build's fingerprint
// (chunking window, embedder model) is NOT here — those require a rebuild
// and are not hot-reloadable. The Coordinator stores the loaded values and
// returns them from Coordinator.Settings; the Builder and Pipeline do not
// read them and keep their own compiled-in batch size and deadline.
type Settings struct {
	PipelineDeadline time.Duration `yaml:"pipeline_deadline"`
	EmbedBatchSize   int           `yaml:"embed_batch_size"`
	SpatialBatchSize int           `yaml:"spatial_batch_size"`
}

// DefaultSettings mirrors internal/build's EmbedBatchSize (64) and
// internal/retrieval's pipeline deadline (10s), plus a spatial candidate
// batch of 256 (spec §5), the same default internal/config uses.
func DefaultSettings() Settings {
	return Settings{
		PipelineDeadline: 10 * time.Second,
		EmbedBatchSize:   64,
		SpatialBatchSize: 256,
	}
}

// loadSettings reads and parses a YAML settings file, merging onto
// DefaultSettings so a partial file only overrides what it sets.
func loadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings file %s: %w", path, err)
	}
	return s, nil
}
