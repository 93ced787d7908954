// Package config loads GeoRAG's layered YAML configuration: hardcoded
// defaults, overridden by a user/global config, overridden by a
// per-workspace config, overridden by GEORAG_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/georag/georag/internal/geo"
)

// DistanceUnit is an alias for geo.Unit so config files can reference the
// workspace's distance unit without importing internal/geo directly.
type DistanceUnit = geo.Unit

// GeometryValidity is an alias for geo.Validity (spec §4.1).
type GeometryValidity = geo.Validity

const (
	UnitMeters     = geo.UnitMeters
	UnitKilometers = geo.UnitKilometers
	UnitMiles      = geo.UnitMiles
	UnitFeet       = geo.UnitFeet

	ValidityStrict  = geo.ValidityStrict
	ValidityLenient = geo.ValidityLenient
)

// Config is the complete GeoRAG configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	Workspace WorkspaceConfig `yaml:"workspace" json:"workspace"`
	Chunking  ChunkingConfig  `yaml:"chunking" json:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding" json:"embedding"`
	Pipeline  PipelineConfig  `yaml:"pipeline" json:"pipeline"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	Server    ServerConfig    `yaml:"server" json:"server"`
}

// WorkspaceConfig holds the workspace-level invariants from spec §3.
type WorkspaceConfig struct {
	Name     string           `yaml:"name" json:"name"`
	CRS      int              `yaml:"crs" json:"crs"`
	Unit     DistanceUnit     `yaml:"distance_unit" json:"distance_unit"`
	Validity GeometryValidity `yaml:"geometry_validity" json:"geometry_validity"`
}

// ChunkingConfig configures the sliding-window text chunker (spec §4.3).
type ChunkingConfig struct {
	WindowSize int `yaml:"window_size" json:"window_size"`
	Overlap    int `yaml:"overlap" json:"overlap"`
}

// EmbeddingConfig configures the Embedding Port adapter (spec §4.4, §6).
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider" json:"provider"` // "http" or "mock"
	Endpoint   string        `yaml:"endpoint" json:"endpoint"`
	Model      string        `yaml:"model" json:"model"`
	Dimensions int           `yaml:"dimensions" json:"dimensions"`
	BatchSize  int           `yaml:"batch_size" json:"batch_size"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	CacheSize  int           `yaml:"cache_size" json:"cache_size"`
}

// PipelineConfig configures the Retrieval Pipeline's deadlines and defaults
// (spec §4.8, §5).
type PipelineConfig struct {
	DefaultTopK      int           `yaml:"default_top_k" json:"default_top_k"`
	QueryTimeout     time.Duration `yaml:"query_timeout" json:"query_timeout"`
	SpatialBatchSize int           `yaml:"spatial_batch_size" json:"spatial_batch_size"`
	EmbedBatchSize   int           `yaml:"embed_batch_size" json:"embed_batch_size"`
}

// StorageConfig selects and configures the storage port adapter (spec §4.6).
type StorageConfig struct {
	Adapter string `yaml:"adapter" json:"adapter"` // "ephemeral" or "postgres"
	DataDir string `yaml:"data_dir" json:"data_dir"`
	DSN     string `yaml:"dsn" json:"dsn"`
	MinConn int32  `yaml:"min_conn" json:"min_conn"`
	MaxConn int32  `yaml:"max_conn" json:"max_conn"`
}

// ServerConfig configures the optional HTTP surface (spec §6).
type ServerConfig struct {
	Address  string `yaml:"address" json:"address"`
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Workspace: WorkspaceConfig{
			CRS:      4326,
			Unit:     UnitKilometers,
			Validity: ValidityLenient,
		},
		Chunking: ChunkingConfig{
			WindowSize: 1000,
			Overlap:    200,
		},
		Embedding: EmbeddingConfig{
			Provider:   "http",
			Endpoint:   "http://localhost:11434",
			Model:      "embedding-gemma",
			Dimensions: 768,
			BatchSize:  64,
			Timeout:    30 * time.Second,
			CacheSize:  1000,
		},
		Pipeline: PipelineConfig{
			DefaultTopK:      10,
			QueryTimeout:     10 * time.Second,
			SpatialBatchSize: 256,
			EmbedBatchSize:   64,
		},
		Storage: StorageConfig{
			Adapter: "ephemeral",
			DataDir: defaultDataDir(),
			MinConn: 2,
			MaxConn: 10,
		},
		Server: ServerConfig{
			Address:  ":8765",
			LogLevel: "info",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".georag", "workspaces")
	}
	return filepath.Join(home, ".georag", "workspaces")
}

// GetUserConfigPath follows the XDG Base Directory convention:
// $XDG_CONFIG_HOME/georag/config.yaml, falling back to ~/.config/georag/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "georag", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "georag", "config.yaml")
	}
	return filepath.Join(home, ".config", "georag", "config.yaml")
}

// Load applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/georag/config.yaml)
//  3. Workspace config (.georag.yaml in dir)
//  4. Environment variables (GEORAG_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadIfExists(GetUserConfigPath()); err != nil {
		return nil, fmt.Errorf("load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	workspacePath := filepath.Join(dir, ".georag.yaml")
	if wsCfg, err := loadIfExists(workspacePath); err != nil {
		return nil, fmt.Errorf("load workspace config: %w", err)
	} else if wsCfg != nil {
		cfg.mergeWith(wsCfg)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadIfExists(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &parsed, nil
}

// mergeWith overlays non-zero values from other onto c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.Workspace.Name != "" {
		c.Workspace.Name = other.Workspace.Name
	}
	if other.Workspace.CRS != 0 {
		c.Workspace.CRS = other.Workspace.CRS
	}
	if other.Workspace.Unit != "" {
		c.Workspace.Unit = other.Workspace.Unit
	}
	if other.Workspace.Validity != "" {
		c.Workspace.Validity = other.Workspace.Validity
	}
	if other.Chunking.WindowSize != 0 {
		c.Chunking.WindowSize = other.Chunking.WindowSize
	}
	if other.Chunking.Overlap != 0 {
		c.Chunking.Overlap = other.Chunking.Overlap
	}
	if other.Embedding.Provider != "" {
		c.Embedding.Provider = other.Embedding.Provider
	}
	if other.Embedding.Endpoint != "" {
		c.Embedding.Endpoint = other.Embedding.Endpoint
	}
	if other.Embedding.Model != "" {
		c.Embedding.Model = other.Embedding.Model
	}
	if other.Embedding.Dimensions != 0 {
		c.Embedding.Dimensions = other.Embedding.Dimensions
	}
	if other.Embedding.BatchSize != 0 {
		c.Embedding.BatchSize = other.Embedding.BatchSize
	}
	if other.Embedding.Timeout != 0 {
		c.Embedding.Timeout = other.Embedding.Timeout
	}
	if other.Embedding.CacheSize != 0 {
		c.Embedding.CacheSize = other.Embedding.CacheSize
	}
	if other.Pipeline.DefaultTopK != 0 {
		c.Pipeline.DefaultTopK = other.Pipeline.DefaultTopK
	}
	if other.Pipeline.QueryTimeout != 0 {
		c.Pipeline.QueryTimeout = other.Pipeline.QueryTimeout
	}
	if other.Pipeline.SpatialBatchSize != 0 {
		c.Pipeline.SpatialBatchSize = other.Pipeline.SpatialBatchSize
	}
	if other.Pipeline.EmbedBatchSize != 0 {
		c.Pipeline.EmbedBatchSize = other.Pipeline.EmbedBatchSize
	}
	if other.Storage.Adapter != "" {
		c.Storage.Adapter = other.Storage.Adapter
	}
	if other.Storage.DataDir != "" {
		c.Storage.DataDir = other.Storage.DataDir
	}
	if other.Storage.DSN != "" {
		c.Storage.DSN = other.Storage.DSN
	}
	if other.Storage.MinConn != 0 {
		c.Storage.MinConn = other.Storage.MinConn
	}
	if other.Storage.MaxConn != 0 {
		c.Storage.MaxConn = other.Storage.MaxConn
	}
	if other.Server.Address != "" {
		c.Server.Address = other.Server.Address
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies GEORAG_* environment variable overrides, the
// highest-precedence layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GEORAG_WORKSPACE_CRS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Workspace.CRS = n
		}
	}
	if v := os.Getenv("GEORAG_DISTANCE_UNIT"); v != "" {
		c.Workspace.Unit = DistanceUnit(v)
	}
	if v := os.Getenv("GEORAG_GEOMETRY_VALIDITY"); v != "" {
		c.Workspace.Validity = GeometryValidity(v)
	}
	if v := os.Getenv("GEORAG_EMBEDDER_ENDPOINT"); v != "" {
		c.Embedding.Endpoint = v
	}
	if v := os.Getenv("GEORAG_EMBEDDER_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv("GEORAG_EMBEDDER_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Embedding.Dimensions = n
		}
	}
	if v := os.Getenv("GEORAG_EMBEDDER_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("GEORAG_STORAGE_ADAPTER"); v != "" {
		c.Storage.Adapter = v
	}
	if v := os.Getenv("GEORAG_STORAGE_DSN"); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv("GEORAG_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

// Validate rejects configurations that violate the engine's invariants.
func (c *Config) Validate() error {
	if c.Workspace.CRS <= 0 {
		return fmt.Errorf("workspace.crs must be a positive EPSG code")
	}
	switch c.Workspace.Unit {
	case UnitMeters, UnitKilometers, UnitMiles, UnitFeet:
	default:
		return fmt.Errorf("workspace.distance_unit must be one of m, km, mi, ft, got %q", c.Workspace.Unit)
	}
	switch c.Workspace.Validity {
	case ValidityStrict, ValidityLenient:
	default:
		return fmt.Errorf("workspace.geometry_validity must be strict or lenient, got %q", c.Workspace.Validity)
	}
	if c.Chunking.WindowSize <= 0 {
		return fmt.Errorf("chunking.window_size must be positive")
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.WindowSize {
		return fmt.Errorf("chunking.overlap must be in [0, window_size)")
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding.batch_size must be positive")
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must not be negative")
	}
	switch strings.ToLower(c.Storage.Adapter) {
	case "ephemeral", "postgres":
	default:
		return fmt.Errorf("storage.adapter must be ephemeral or postgres, got %q", c.Storage.Adapter)
	}
	if c.Pipeline.DefaultTopK <= 0 {
		return fmt.Errorf("pipeline.default_top_k must be positive")
	}
	return nil
}

// IndexWorkers returns the worker pool size for CPU-heavy build stages
// (spec §9: batches over 1000 elements dispatch onto a bounded pool).
func IndexWorkers() int {
	return runtime.NumCPU()
}
