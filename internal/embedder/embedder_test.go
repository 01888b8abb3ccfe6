package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProviderDeterministic(t *testing.T) {
	p := NewLocalProvider(nil)
	defer func() { _ = p.Close() }()

	ctx := context.Background()
	a, err := p.Embed(ctx, "same text")
	require.NoError(t, err)
	b, err := p.Embed(ctx, "same text")
	require.NoError(t, err)

	assert.Equal(t, a.Vector, b.Vector, "identical text must embed identically")
	assert.Equal(t, LocalDimension, a.Dimension)

	c, err := p.Embed(ctx, "different text")
	require.NoError(t, err)
	assert.NotEqual(t, a.Vector, c.Vector)
}

func TestLocalProviderBatchOrderAndLength(t *testing.T) {
	p := NewLocalProvider(nil)
	ctx := context.Background()

	texts := []string{"first", "second", "third"}
	resp, err := p.EmbedBatch(ctx, BatchRequest{Texts: texts})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, len(texts), "same-length output is part of the contract")

	for i, text := range texts {
		single, err := p.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single.Vector, resp.Embeddings[i].Vector, "output must match input order")
	}
}

func TestBatchRequestValidation(t *testing.T) {
	p := NewLocalProvider(nil)
	ctx := context.Background()

	_, err := p.EmbedBatch(ctx, BatchRequest{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = p.EmbedBatch(ctx, BatchRequest{Texts: []string{"ok", ""}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = p.Embed(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCacheRoundTrip(t *testing.T) {
	cache := NewCache(10)

	emb := &Embedding{
		Vector:    []float32{1, 2, 3},
		Dimension: 3,
		Provider:  "test",
		Model:     "m",
		Hash:      "h",
	}
	cache.Set("h", emb)

	got, ok := cache.Get("h")
	require.True(t, ok)
	assert.Equal(t, emb.Vector, got.Vector)

	// Mutating the returned copy must not affect the cached value.
	got.Vector[0] = 99
	again, ok := cache.Get("h")
	require.True(t, ok)
	assert.Equal(t, float32(1), again.Vector[0])

	_, ok = cache.Get("missing")
	assert.False(t, ok)
}

func TestCacheEviction(t *testing.T) {
	cache := NewCache(2)
	cache.Set("a", &Embedding{Hash: "a"})
	cache.Set("b", &Embedding{Hash: "b"})
	cache.Set("c", &Embedding{Hash: "c"})

	assert.Equal(t, 2, cache.Size())
	_, ok := cache.Get("a")
	assert.False(t, ok, "oldest entry should be evicted")
}

func TestLocalProviderUsesCache(t *testing.T) {
	cache := NewCache(10)
	p := NewLocalProvider(cache)
	ctx := context.Background()

	_, err := p.Embed(ctx, "cached text")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Size())

	_, err = p.Embed(ctx, "cached text")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Size())
}
