// Package embed implements the Embedding Port (spec §4.4): a synchronous
// Embed(model, texts[]) -> vectors[] contract with unit-L2-normalized
// output, behind two adapters (HTTP and hash-based mock) and an LRU cache
// decorator.
package embed

import (
	"context"
	"math"
)

// Batch and dimension limits shared by both adapters.
const (
	MinBatchSize     = 1
	MaxBatchSize     = 256
	DefaultBatchSize = 32

	// DefaultDimensions is used when a mock embedder is constructed without
	// an explicit dimension.
	DefaultDimensions = 256

	// DefaultCacheSize bounds the query-embedding LRU (spec §4.4).
	DefaultCacheSize = 1000
)

// Embedder generates L2-normalized vector embeddings for text (spec §4.4).
// Implementations are responsible for batching, retries, and normalizing
// the returned vectors to unit length; callers assume normalization already
// happened.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call;
	// len(result) == len(texts).
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension for ModelName().
	Dimensions() int

	// ModelName returns the model identifier recorded in the build fingerprint.
	ModelName() string

	// Available reports whether the embedder is reachable right now.
	Available(ctx context.Context) bool

	// Close releases any held resources (connections, pools).
	Close() error
}

// normalizeVector scales v to unit L2 length. A zero vector is returned
// unchanged: there is no meaningful direction to normalize it to.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}
	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
