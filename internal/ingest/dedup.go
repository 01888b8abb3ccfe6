package ingest

import (
	"context"
	"fmt"

	"github.com/vecsync/vecsync/internal/vectorstore"
	"github.com/vecsync/vecsync/pkg/types"
)

// Deduplicator drops chunks whose text is already embedded. Chunk ids are
// content hashes, so equality of id means equality of text, across files
// and across runs alike.
type Deduplicator struct {
	store vectorstore.Store
}

// NewDeduplicator creates a Deduplicator backed by the given store.
func NewDeduplicator(store vectorstore.Store) *Deduplicator {
	return &Deduplicator{store: store}
}

// DedupResult separates chunks that need embedding from those that can be
// skipped entirely.
type DedupResult struct {
	// Missing are chunks with no stored vector yet, in input order, with
	// in-run duplicates collapsed to their first occurrence.
	Missing []types.Chunk

	// SkippedInRun counts duplicates collapsed within this run.
	SkippedInRun int

	// SkippedStored counts chunks whose vector already exists in the store.
	SkippedStored int
}

// Filter partitions chunks into missing and already-known. It performs the
// in-run pass first so the store is asked about each distinct id once.
func (d *Deduplicator) Filter(ctx context.Context, chunks []types.Chunk) (*DedupResult, error) {
	res := &DedupResult{}
	if len(chunks) == 0 {
		return res, nil
	}

	seen := make(map[string]bool, len(chunks))
	distinct := make([]types.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if seen[c.ID] {
			res.SkippedInRun++
			continue
		}
		seen[c.ID] = true
		distinct = append(distinct, c)
	}

	ids := make([]string, len(distinct))
	for i, c := range distinct {
		ids[i] = c.ID
	}
	existing, err := d.store.Has(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("dedup lookup failed: %w", err)
	}

	for _, c := range distinct {
		if existing[c.ID] {
			res.SkippedStored++
			continue
		}
		res.Missing = append(res.Missing, c)
	}
	return res, nil
}
