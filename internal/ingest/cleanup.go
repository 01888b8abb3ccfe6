package ingest

import (
	"context"
	"fmt"

	"github.com/vecsync/vecsync/internal/vectorstore"
	"github.com/vecsync/vecsync/pkg/types"
)

// Cleanup removes chunks that no longer correspond to anything on disk.
// Every delete it issues carries the scope root as a filter term; it will
// not build a delete that could reach outside the scope being synced.
type Cleanup struct {
	store vectorstore.Store
}

// NewCleanup creates a Cleanup for the given store.
func NewCleanup(store vectorstore.Store) *Cleanup {
	return &Cleanup{store: store}
}

// RemoveDeleted deletes all chunks of paths that vanished from disk.
func (c *Cleanup) RemoveDeleted(ctx context.Context, scopeRoot string, paths []string) (int, error) {
	if len(paths) == 0 {
		return 0, nil
	}
	if scopeRoot == "" {
		return 0, fmt.Errorf("%w: cleanup requires a scope root", types.ErrScopeViolation)
	}

	n, err := c.store.DeleteByPaths(ctx, vectorstore.DeleteFilter{
		ScopeRoot:   scopeRoot,
		SourcePaths: paths,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to remove deleted files: %w", err)
	}
	return n, nil
}

// Supersede deletes the chunks of one path that are not part of its
// current chunking. Called after a modified file's new chunks are durably
// stored, so an interruption leaves extra chunks rather than missing ones.
func (c *Cleanup) Supersede(ctx context.Context, scopeRoot, path string, currentIDs []string) (int, error) {
	if scopeRoot == "" {
		return 0, fmt.Errorf("%w: cleanup requires a scope root", types.ErrScopeViolation)
	}

	n, err := c.store.DeleteStale(ctx, scopeRoot, path, currentIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to supersede stale chunks of %s: %w", path, err)
	}
	return n, nil
}
