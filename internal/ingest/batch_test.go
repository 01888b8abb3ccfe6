package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecsync/vecsync/internal/embedder"
	"github.com/vecsync/vecsync/internal/hasher"
	"github.com/vecsync/vecsync/internal/vectorstore"
	"github.com/vecsync/vecsync/pkg/types"
)

func makeChunks(t *testing.T, n int) []types.Chunk {
	t.Helper()
	chunks := make([]types.Chunk, n)
	for i := range chunks {
		text := fmt.Sprintf("chunk body number %06d", i)
		chunks[i] = types.Chunk{
			ID:   hasher.ChunkID(text),
			Text: text,
			Metadata: types.Metadata{
				SourcePath:  "/scope/doc.txt",
				ScopeRoot:   "/scope",
				FileModTime: time.Unix(1700000000, 0),
				ChunkIndex:  i,
				ChunkTotal:  n,
				ContentHash: "filehash",
			},
		}
	}
	return chunks
}

func newBatchStore(t *testing.T) vectorstore.Store {
	t.Helper()
	store, err := vectorstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBatchSizingExact(t *testing.T) {
	mock := newMockEmbedder()
	store := newBatchStore(t)
	b := NewBatchIndexer(mock, store, 1000)

	stored, err := b.Index(context.Background(), makeChunks(t, 2500))
	require.NoError(t, err)

	assert.Equal(t, 2500, stored)
	assert.Equal(t, 3, b.EmbedCalls())
	assert.Equal(t, 3, b.UpsertCalls())
	assert.Equal(t, []int{1000, 1000, 500}, mock.batches())

	count, err := store.Count(context.Background(), "/scope")
	require.NoError(t, err)
	assert.Equal(t, 2500, count)
}

func TestBatchSizingMultipleOfBatch(t *testing.T) {
	mock := newMockEmbedder()
	b := NewBatchIndexer(mock, newBatchStore(t), 500)

	stored, err := b.Index(context.Background(), makeChunks(t, 1000))
	require.NoError(t, err)
	assert.Equal(t, 1000, stored)
	assert.Equal(t, []int{500, 500}, mock.batches(), "no trailing empty batch")
}

func TestBatchEmptyInput(t *testing.T) {
	mock := newMockEmbedder()
	b := NewBatchIndexer(mock, newBatchStore(t), 1000)

	stored, err := b.Index(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, stored)
	assert.Equal(t, 0, b.EmbedCalls())
	assert.Equal(t, 0, b.UpsertCalls())
}

func TestOversizedChunkRejectedBeforeAnyCall(t *testing.T) {
	mock := newMockEmbedder()
	mock.maxChars = 10
	store := newBatchStore(t)
	b := NewBatchIndexer(mock, store, 2)

	chunks := makeChunks(t, 5)
	// Make a chunk in what would be the last batch oversized: rejection
	// must still happen before the first call.
	chunks[4].Text = "this text is clearly longer than ten characters"
	chunks[4].ID = hasher.ChunkID(chunks[4].Text)

	_, err := b.Index(context.Background(), chunks)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrOversizedChunk))
	assert.NotErrorIs(t, err, types.ErrEmbeddingCall, "oversized input is distinguishable from a provider failure")
	assert.Equal(t, 0, mock.totalCalls())

	count, err := store.Count(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 0, count, "nothing is written when validation fails")
}

func TestMidRunFailureKeepsEarlierBatches(t *testing.T) {
	mock := newMockEmbedder()
	mock.failAtCall = 2
	store := newBatchStore(t)
	b := NewBatchIndexer(mock, store, 2)

	stored, err := b.Index(context.Background(), makeChunks(t, 6))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrEmbeddingCall))
	assert.Equal(t, 2, stored)

	count, err := store.Count(context.Background(), "/scope")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "the committed batch survives the failure")
}

func TestEmbeddingCountMismatchIsAnError(t *testing.T) {
	store := newBatchStore(t)
	b := NewBatchIndexer(&shortEmbedder{}, store, 10)

	_, err := b.Index(context.Background(), makeChunks(t, 3))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrEmbeddingCall))
}

// shortEmbedder returns fewer vectors than requested.
type shortEmbedder struct{ mockEmbedder }

func (s *shortEmbedder) EmbedBatch(_ context.Context, req embedder.BatchRequest) (*embedder.BatchResponse, error) {
	resp := &embedder.BatchResponse{Provider: "mock", Model: "mock"}
	for _, text := range req.Texts[:len(req.Texts)-1] {
		resp.Embeddings = append(resp.Embeddings, mockVector(text))
	}
	return resp, nil
}
