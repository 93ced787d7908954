package embed

import (
	"context"
	"os"
	"strconv"
	"strings"
)

// ProviderType selects which Embedder adapter to construct.
type ProviderType string

const (
	ProviderHTTP ProviderType = "http"
	ProviderHash ProviderType = "hash"
)

// ParseProvider converts a config/CLI string to a ProviderType, defaulting
// to the HTTP adapter for anything unrecognized.
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hash", "mock", "static":
		return ProviderHash
	default:
		return ProviderHTTP
	}
}

// NewEmbedder constructs an Embedder for the given provider and model,
// applying the GEORAG_EMBEDDER_* environment overrides (spec §6), then
// wraps it with the query-embedding cache.
func NewEmbedder(ctx context.Context, provider ProviderType, model string) (Embedder, error) {
	if env := os.Getenv("GEORAG_EMBEDDER_PROVIDER"); env != "" {
		provider = ParseProvider(env)
	}

	var inner Embedder
	var err error

	switch provider {
	case ProviderHash:
		inner = NewHashEmbedder(envDimensions(DefaultDimensions))

	default:
		cfg := DefaultHTTPConfig()
		if model != "" {
			cfg.Model = model
		}
		if endpoint := os.Getenv("GEORAG_EMBEDDER_ENDPOINT"); endpoint != "" {
			cfg.Endpoint = endpoint
		}
		if m := os.Getenv("GEORAG_EMBEDDER_MODEL"); m != "" {
			cfg.Model = m
		}
		cfg.Dimensions = envDimensions(0)
		inner, err = NewHTTPEmbedder(ctx, cfg)
	}

	if err != nil {
		return nil, err
	}
	return NewCachedEmbedder(inner, DefaultCacheSize), nil
}

func envDimensions(fallback int) int {
	v := os.Getenv("GEORAG_EMBEDDER_DIMENSIONS")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
