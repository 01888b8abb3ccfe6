package types

import (
	"errors"
	"time"
)

// Chunk is a content-addressed slice of a document's extracted text.
// Its ID is derived solely from the chunk text, so identical text anywhere
// in the corpus maps to the same chunk and is embedded exactly once.
type Chunk struct {
	// ID is the hex-encoded SHA-256 digest of the normalized chunk text.
	ID string

	// Text is the chunk content sent to the embedding provider.
	Text string

	// Metadata describes where this chunk currently lives on disk.
	Metadata Metadata
}

// Metadata is the per-chunk record kept in the vector store. It is the only
// persisted state the sync engine relies on: change detection on the next
// run reads these fields back, no separate index file exists.
type Metadata struct {
	// SourcePath is the most recent known location of the chunk's document,
	// relative to ScopeRoot. A move updates this in place without touching
	// the stored vector.
	SourcePath string

	// ScopeRoot is the folder boundary under which the document was indexed.
	// Cleanup is only ever allowed to delete records matching its own scope.
	ScopeRoot string

	// FileModTime is the source file's modification time. Compared for exact
	// equality on the next run, so it is persisted at nanosecond precision.
	FileModTime time.Time

	// ChunkIndex is the chunk's position within its document.
	ChunkIndex int

	// ChunkTotal is the number of distinct chunks the document splits into.
	// Change detection compares it against the stored chunk count to tell a
	// fully indexed file from one left incomplete by an interrupted run.
	ChunkTotal int

	// ContentHash is the whole-file fingerprint, used for move detection.
	ContentHash string
}

// Validate checks that the chunk is well-formed enough to index.
func (c *Chunk) Validate() error {
	if c.ID == "" {
		return errors.New("chunk id must be computed")
	}
	if c.Text == "" {
		return errors.New("chunk text cannot be empty")
	}
	if c.Metadata.SourcePath == "" {
		return errors.New("chunk source path is required")
	}
	if c.Metadata.ScopeRoot == "" {
		return errors.New("chunk scope root is required")
	}
	if c.Metadata.ChunkIndex < 0 {
		return errors.New("chunk index must be non-negative")
	}
	return nil
}

// FileChange classifies a file scanned during a sync run.
type FileChange string

const (
	// ChangeUnchanged means the stored mtime matches; the file is skipped
	// without being read.
	ChangeUnchanged FileChange = "unchanged"
	// ChangeNew means no metadata exists for the path.
	ChangeNew FileChange = "new"
	// ChangeModified means the content changed and the file is re-chunked.
	ChangeModified FileChange = "modified"
	// ChangeMoved means identical content was previously indexed under a
	// path that no longer exists; metadata is rewritten, vectors untouched.
	ChangeMoved FileChange = "moved"
	// ChangeRefreshed means the mtime changed but the content hash did not;
	// only the stored mtime is refreshed.
	ChangeRefreshed FileChange = "refreshed"
)

// FileState is the per-path view derived from stored chunk metadata,
// consulted by change detection at the start of a run.
type FileState struct {
	Path        string
	ContentHash string
	ModTime     time.Time

	// ChunkCount is how many chunks currently name this path as their
	// source; ChunkTotal is how many the file's last chunking produced.
	// The file is fully indexed only when the two agree.
	ChunkCount int
	ChunkTotal int
}

// Complete reports whether every chunk of the file's last known chunking
// is present in the store.
func (s FileState) Complete() bool {
	return s.ChunkTotal > 0 && s.ChunkCount >= s.ChunkTotal
}
