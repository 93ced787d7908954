package embed

import (
	"context"
	"errors"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
	"unicode"
)

var errEmbedderClosed = errors.New("embedder is closed")

// Weights for the two feature families blended into a hash vector.
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

var tokenRegex = regexp.MustCompile(`[\p{L}\p{N}]+`)

// HashEmbedder is a deterministic, network-free mock of the Embedding Port
// (spec §4.4), for build and pipeline tests. It maps word tokens and
// character trigrams into a fixed-size vector via FNV-64 hashing, so the
// same text always produces the same embedding and semantically similar
// text (shared words) produces a nearby one.
type HashEmbedder struct {
	mu     sync.RWMutex
	closed bool
	dims   int
	model  string
}

var _ Embedder = (*HashEmbedder)(nil)

// NewHashEmbedder creates a hash embedder with the given dimension. A zero
// dimension defaults to DefaultDimensions.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &HashEmbedder{dims: dims, model: "hash-mock"}
}

func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, errEmbedderClosed
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, e.dims), nil
	}
	return normalizeVector(e.generateVector(trimmed)), nil
}

func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	results := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		results[i] = v
	}
	return results, nil
}

func (e *HashEmbedder) generateVector(text string) []float32 {
	vector := make([]float32, e.dims)

	for _, token := range tokenize(text) {
		vector[hashToIndex(token, e.dims)] += tokenWeight
	}
	normalized := normalizeForNgrams(text)
	for _, ngram := range extractNgrams(normalized, ngramSize) {
		vector[hashToIndex(ngram, e.dims)] += ngramWeight
	}
	return vector
}

func tokenize(text string) []string {
	var tokens []string
	for _, word := range tokenRegex.FindAllString(text, -1) {
		lower := strings.ToLower(word)
		if lower != "" {
			tokens = append(tokens, lower)
		}
	}
	return tokens
}

func normalizeForNgrams(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func extractNgrams(text string, n int) []string {
	if len(text) < n {
		return []string{}
	}
	ngrams := make([]string, 0, len(text)-n+1)
	for i := 0; i <= len(text)-n; i++ {
		ngrams = append(ngrams, text[i:i+n])
	}
	return ngrams
}

func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

func (e *HashEmbedder) Dimensions() int   { return e.dims }
func (e *HashEmbedder) ModelName() string { return e.model }

func (e *HashEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

func (e *HashEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

