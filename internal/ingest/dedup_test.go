package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecsync/vecsync/internal/hasher"
	"github.com/vecsync/vecsync/internal/vectorstore"
	"github.com/vecsync/vecsync/pkg/types"
)

func dedupChunk(text, path string) types.Chunk {
	return types.Chunk{
		ID:   hasher.ChunkID(text),
		Text: text,
		Metadata: types.Metadata{
			SourcePath:  path,
			ScopeRoot:   "/scope",
			FileModTime: time.Unix(1700000000, 0),
			ChunkTotal:  1,
			ContentHash: hasher.SumString(text),
		},
	}
}

func TestDedupCollapsesInRunDuplicates(t *testing.T) {
	store := newBatchStore(t)
	d := NewDeduplicator(store)

	chunks := []types.Chunk{
		dedupChunk("shared paragraph", "/scope/a.txt"),
		dedupChunk("unique to a", "/scope/a.txt"),
		dedupChunk("shared paragraph", "/scope/b.txt"),
	}

	res, err := d.Filter(context.Background(), chunks)
	require.NoError(t, err)

	assert.Equal(t, 1, res.SkippedInRun)
	assert.Equal(t, 0, res.SkippedStored)
	require.Len(t, res.Missing, 2)
	// First occurrence wins and order is preserved.
	assert.Equal(t, "/scope/a.txt", res.Missing[0].Metadata.SourcePath)
	assert.Equal(t, "shared paragraph", res.Missing[0].Text)
	assert.Equal(t, "unique to a", res.Missing[1].Text)
}

func TestDedupSkipsStoredChunks(t *testing.T) {
	store := newBatchStore(t)
	d := NewDeduplicator(store)
	ctx := context.Background()

	known := dedupChunk("already embedded", "/scope/a.txt")
	require.NoError(t, store.Upsert(ctx, []vectorstore.Point{{
		ID:       known.ID,
		Text:     known.Text,
		Vector:   []float32{1, 2, 3},
		Metadata: known.Metadata,
	}}))

	res, err := d.Filter(ctx, []types.Chunk{known, dedupChunk("brand new", "/scope/a.txt")})
	require.NoError(t, err)

	assert.Equal(t, 1, res.SkippedStored)
	require.Len(t, res.Missing, 1)
	assert.Equal(t, "brand new", res.Missing[0].Text)
}

func TestDedupEmptyInput(t *testing.T) {
	d := NewDeduplicator(newBatchStore(t))
	res, err := d.Filter(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Missing)
}
