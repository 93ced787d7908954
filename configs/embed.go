// Package configs provides GeoRAG's embedded configuration templates,
// available in every distribution (source build or binary release) via
// go:embed rather than read from a path that may not exist post-install.
package configs

import _ "embed"

// UserConfigTemplate is the example content for ~/.config/georag/config.yaml.
// Holds machine-level settings: embedder endpoint, storage adapter, log level.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// WorkspaceConfigTemplate is the example content for a workspace's .georag.yaml.
// Holds workspace-level settings: CRS, distance unit, chunking, pipeline.
//
//go:embed workspace-config.example.yaml
var WorkspaceConfigTemplate string
