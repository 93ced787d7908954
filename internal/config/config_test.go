package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaultsValidate(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 4326, cfg.Workspace.CRS)
	assert.Equal(t, UnitKilometers, cfg.Workspace.Unit)
}

func TestValidateRejectsBadUnit(t *testing.T) {
	cfg := NewConfig()
	cfg.Workspace.Unit = "furlongs"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsOverlapTooLarge(t *testing.T) {
	cfg := NewConfig()
	cfg.Chunking.Overlap = cfg.Chunking.WindowSize
	assert.Error(t, cfg.Validate())
}

func TestLoadMergesWorkspaceFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	yamlContent := "workspace:\n  crs: 3857\n  distance_unit: mi\nembedding:\n  model: custom-model\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".georag.yaml"), []byte(yamlContent), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 3857, cfg.Workspace.CRS)
	assert.Equal(t, DistanceUnit("mi"), cfg.Workspace.Unit)
	assert.Equal(t, "custom-model", cfg.Embedding.Model)
}

func TestLoadAppliesEnvOverrideOverFile(t *testing.T) {
	dir := t.TempDir()
	yamlContent := "embedding:\n  model: file-model\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".georag.yaml"), []byte(yamlContent), 0o644))

	t.Setenv("GEORAG_EMBEDDER_MODEL", "env-model")
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "env-model", cfg.Embedding.Model)
}
