package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vecsync/vecsync/pkg/types"
)

var (
	// ErrNotFound is returned when a requested record doesn't exist.
	ErrNotFound = errors.New("not found")
)

// Point is one record in the vector store: a content-addressed chunk, its
// embedding, and the metadata the next sync run reads back for change
// detection. The store's metadata fields are the engine's only persisted
// state.
type Point struct {
	ID       string
	Text     string
	Vector   []float32
	Metadata types.Metadata
}

// SearchResult is a ranked hit from a similarity query.
type SearchResult struct {
	ID       string
	Text     string
	Score    float64
	Metadata types.Metadata
}

// DeleteFilter selects records to delete by scope plus source path. The
// scope root is mandatory: cleanup for one scope must be physically unable
// to touch records indexed under another.
type DeleteFilter struct {
	ScopeRoot   string
	SourcePaths []string
}

// Validate enforces the scope invariant before any delete is executed.
func (f DeleteFilter) Validate() error {
	if f.ScopeRoot == "" {
		return fmt.Errorf("%w: refusing delete with empty scope", types.ErrScopeViolation)
	}
	return nil
}

// Store is the vector-store collaborator contract. Implementations must
// provide upsert (insert-or-overwrite keyed by id), a batched existence
// query, metadata-only mutation for moves, and scope-filtered deletion.
// One Store handle is constructed per run and passed to every component.
type Store interface {
	// Upsert inserts or overwrites points by id. Idempotent.
	Upsert(ctx context.Context, points []Point) error

	// Has reports which of the given ids already exist.
	Has(ctx context.Context, ids []string) (map[string]bool, error)

	// Get fetches a single point, ErrNotFound if absent.
	Get(ctx context.Context, id string) (*Point, error)

	// ListFileStates derives the per-path file state for a scope from chunk
	// metadata: the most recently recorded mtime and content hash per path.
	ListFileStates(ctx context.Context, scopeRoot string) ([]types.FileState, error)

	// UpdateFilePath rewrites source path and mtime on every chunk of a
	// moved file, leaving vectors untouched. Returns the number of records
	// updated.
	UpdateFilePath(ctx context.Context, scopeRoot, oldPath, newPath string, modTime time.Time) (int, error)

	// RefreshModTime updates only the stored mtime for a path whose content
	// is unchanged, so the next run takes the fast path again.
	RefreshModTime(ctx context.Context, scopeRoot, path string, modTime time.Time) (int, error)

	// UpdateFileMeta rewrites the file-level metadata (mtime, content hash,
	// chunk total) on every chunk of a path. Called once a re-indexed file's
	// chunks are all durable, so chunks that survived from the previous
	// generation stop carrying the old file's fingerprint.
	UpdateFileMeta(ctx context.Context, scopeRoot, path string, modTime time.Time, contentHash string, chunkTotal int) (int, error)

	// DeleteByPaths removes every chunk matching the filter. The filter is
	// validated first; a missing scope root is types.ErrScopeViolation and
	// nothing is deleted.
	DeleteByPaths(ctx context.Context, filter DeleteFilter) (int, error)

	// DeleteStale removes chunks of one path within a scope whose ids are
	// not in keep. Used to drop superseded content after a file is
	// re-indexed.
	DeleteStale(ctx context.Context, scopeRoot, path string, keep []string) (int, error)

	// Query returns the topK most similar chunks within a scope. Consumed
	// by retrieval, not by the sync engine itself.
	Query(ctx context.Context, scopeRoot string, vector []float32, topK int) ([]SearchResult, error)

	// Count returns the number of chunks indexed under a scope; an empty
	// scope counts everything.
	Count(ctx context.Context, scopeRoot string) (int, error)

	// Wipe removes all records.
	Wipe(ctx context.Context) error

	// Close releases the store handle.
	Close() error
}
