package ingest

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/vecsync/vecsync/internal/embedder"
	"github.com/vecsync/vecsync/internal/vectorstore"
	"github.com/vecsync/vecsync/pkg/types"
)

// DefaultBatchSize is the number of chunks sent per embedding call.
const DefaultBatchSize = 1000

// BatchIndexer pushes chunks through the embedder and into the store in
// strictly sequential batches. Each batch is exactly one embedding call
// followed by exactly one upsert; a batch is never upserted before its
// embedding call returned.
type BatchIndexer struct {
	embedder  embedder.Embedder
	store     vectorstore.Store
	batchSize int

	embedCalls  int
	upsertCalls int
}

// NewBatchIndexer creates a BatchIndexer. A non-positive batchSize falls
// back to DefaultBatchSize.
func NewBatchIndexer(emb embedder.Embedder, store vectorstore.Store, batchSize int) *BatchIndexer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &BatchIndexer{embedder: emb, store: store, batchSize: batchSize}
}

// EmbedCalls returns the number of embedding calls made so far.
func (b *BatchIndexer) EmbedCalls() int { return b.embedCalls }

// UpsertCalls returns the number of store upserts made so far.
func (b *BatchIndexer) UpsertCalls() int { return b.upsertCalls }

// Index embeds and stores the chunks. All chunks are validated against the
// provider's input limit before the first embedding call, so an oversized
// chunk never costs a provider round trip. On a mid-run failure the batches
// already upserted stay durable; the error reports how many chunks made it.
func (b *BatchIndexer) Index(ctx context.Context, chunks []types.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	maxChars := b.embedder.MaxInputChars()
	for _, c := range chunks {
		if n := utf8.RuneCountInString(c.Text); maxChars > 0 && n > maxChars {
			return 0, fmt.Errorf("%w: chunk %s from %s is %d chars, provider limit is %d",
				types.ErrOversizedChunk, c.ID, c.Metadata.SourcePath, n, maxChars)
		}
	}

	stored := 0
	for start := 0; start < len(chunks); start += b.batchSize {
		end := start + b.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		b.embedCalls++
		resp, err := b.embedder.EmbedBatch(ctx, embedder.BatchRequest{Texts: texts})
		if err != nil {
			return stored, fmt.Errorf("%w: batch starting at chunk %d: %v",
				types.ErrEmbeddingCall, start, err)
		}
		if len(resp.Embeddings) != len(batch) {
			return stored, fmt.Errorf("%w: batch starting at chunk %d: got %d embeddings for %d texts",
				types.ErrEmbeddingCall, start, len(resp.Embeddings), len(batch))
		}

		points := make([]vectorstore.Point, len(batch))
		for i, c := range batch {
			points[i] = vectorstore.Point{
				ID:       c.ID,
				Text:     c.Text,
				Vector:   resp.Embeddings[i].Vector,
				Metadata: c.Metadata,
			}
		}

		b.upsertCalls++
		if err := b.store.Upsert(ctx, points); err != nil {
			return stored, fmt.Errorf("batch starting at chunk %d: %w", start, err)
		}
		stored += len(batch)
	}

	return stored, nil
}
