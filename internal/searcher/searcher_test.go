package searcher

import (
	"context"
	"crypto/sha256"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecsync/vecsync/internal/embedder"
	"github.com/vecsync/vecsync/internal/hasher"
	"github.com/vecsync/vecsync/internal/vectorstore"
	"github.com/vecsync/vecsync/pkg/types"
)

type fixedEmbedder struct {
	mu    sync.Mutex
	calls int
}

func (f *fixedEmbedder) EmbedBatch(_ context.Context, req embedder.BatchRequest) (*embedder.BatchResponse, error) {
	resp := &embedder.BatchResponse{Provider: "fixed", Model: "fixed"}
	for _, text := range req.Texts {
		resp.Embeddings = append(resp.Embeddings, vectorFor(text))
	}
	return resp, nil
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) (*embedder.Embedding, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return vectorFor(text), nil
}

func (f *fixedEmbedder) Dimension() int     { return 4 }
func (f *fixedEmbedder) Provider() string   { return "fixed" }
func (f *fixedEmbedder) Model() string      { return "fixed" }
func (f *fixedEmbedder) MaxInputChars() int { return 8000 }
func (f *fixedEmbedder) Close() error       { return nil }

func vectorFor(text string) *embedder.Embedding {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, 4)
	for i := range vec {
		vec[i] = float32(sum[i]) / 255.0
	}
	return &embedder.Embedding{Vector: vec, Dimension: 4, Provider: "fixed", Model: "fixed"}
}

func seedStore(t *testing.T) vectorstore.Store {
	t.Helper()
	store, err := vectorstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	texts := []string{"go concurrency patterns", "sqlite storage layer", "vector similarity search"}
	points := make([]vectorstore.Point, len(texts))
	for i, text := range texts {
		points[i] = vectorstore.Point{
			ID:     hasher.ChunkID(text),
			Text:   text,
			Vector: vectorFor(text).Vector,
			Metadata: types.Metadata{
				SourcePath:  "/docs/notes.txt",
				ScopeRoot:   "/docs",
				FileModTime: time.Unix(1700000000, 0),
				ChunkIndex:  i,
				ChunkTotal:  len(texts),
				ContentHash: "hash",
			},
		}
	}
	require.NoError(t, store.Upsert(context.Background(), points))
	return store
}

func TestSearchReturnsRankedResults(t *testing.T) {
	s := New(seedStore(t), &fixedEmbedder{})

	resp, err := s.Search(context.Background(), Request{Query: "vector similarity search", Limit: 3})
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)

	// The query text exists verbatim in the store, so it must rank first
	// with a perfect score.
	assert.Equal(t, "vector similarity search", resp.Results[0].Text)
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-6)
	assert.False(t, resp.CacheHit)
}

func TestSearchEmptyQueryRejected(t *testing.T) {
	s := New(seedStore(t), &fixedEmbedder{})
	_, err := s.Search(context.Background(), Request{Query: "   "})
	assert.Error(t, err)
}

func TestSearchDefaultLimit(t *testing.T) {
	s := New(seedStore(t), &fixedEmbedder{})
	resp, err := s.Search(context.Background(), Request{Query: "storage"})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(resp.Results), DefaultLimit)
}

func TestSearchScoped(t *testing.T) {
	s := New(seedStore(t), &fixedEmbedder{})

	resp, err := s.Search(context.Background(), Request{Query: "anything", ScopeRoot: "/elsewhere", Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, resp.Results, "no chunks are indexed under /elsewhere")
}

func TestSearchCache(t *testing.T) {
	emb := &fixedEmbedder{}
	s := New(seedStore(t), emb)
	req := Request{Query: "sqlite storage layer", Limit: 2, UseCache: true, CacheTTL: time.Minute}

	first, err := s.Search(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := s.Search(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, 1, emb.calls, "a cache hit skips the embedding call")
}
