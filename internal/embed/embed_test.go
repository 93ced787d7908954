package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vecLen(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestHashEmbedderProducesUnitVectors(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	for _, text := range []string{
		"Beach-side seafood restaurant",
		"Mountain seafood market",
		"a",
		"the quick brown fox jumps over the lazy dog",
	} {
		v, err := e.Embed(ctx, text)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, vecLen(v), 1e-6, "embedding for %q must be unit length", text)
	}
}

func TestHashEmbedderIsDeterministic(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "harbor seafood district")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "harbor seafood district")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHashEmbedderEmptyTextYieldsZeroVector(t *testing.T) {
	e := NewHashEmbedder(32)
	v, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)
	assert.Len(t, v, 32)
	for _, x := range v {
		assert.Equal(t, float32(0), x)
	}
}

func TestHashEmbedderBatchMatchesIndividual(t *testing.T) {
	e := NewHashEmbedder(48)
	ctx := context.Background()
	texts := []string{"alpha park", "beta marina", "gamma pier"}

	batch, err := e.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, len(texts))

	for i, text := range texts {
		single, err := e.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
}

func TestCachedEmbedderReturnsCachedVector(t *testing.T) {
	inner := NewHashEmbedder(32)
	cached := NewCachedEmbedder(inner, 16)
	ctx := context.Background()

	first, err := cached.Embed(ctx, "lighthouse")
	require.NoError(t, err)

	_ = inner.Close() // inner now errors on further calls; cache must still serve
	second, err := cached.Embed(ctx, "lighthouse")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = cached.Embed(ctx, "never seen before")
	assert.Error(t, err)
}

func TestCachedEmbedderBatchPartialHit(t *testing.T) {
	inner := NewHashEmbedder(32)
	cached := NewCachedEmbedder(inner, 16)
	ctx := context.Background()

	_, err := cached.Embed(ctx, "pier")
	require.NoError(t, err)

	batch, err := cached.EmbedBatch(ctx, []string{"pier", "dock"})
	require.NoError(t, err)
	require.Len(t, batch, 2)

	direct, err := inner.Embed(ctx, "pier")
	require.NoError(t, err)
	assert.Equal(t, direct, batch[0])
}

func TestParseProvider(t *testing.T) {
	assert.Equal(t, ProviderHash, ParseProvider("hash"))
	assert.Equal(t, ProviderHash, ParseProvider("static"))
	assert.Equal(t, ProviderHTTP, ParseProvider("http"))
	assert.Equal(t, ProviderHTTP, ParseProvider("anything-else"))
}
