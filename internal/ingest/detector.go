package ingest

import (
	"context"
	"fmt"
	"os"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/vecsync/vecsync/internal/hasher"
	"github.com/vecsync/vecsync/pkg/types"
)

// ScannedFile is a file found on disk during the discovery walk. Only the
// stat result is carried; content is read lazily when the mtime fast path
// cannot rule the file out.
type ScannedFile struct {
	Path    string
	ModTime int64 // unix nanoseconds, compared for exact equality
	Size    int64
}

// Change is a classified difference between disk and the stored metadata.
type Change struct {
	Type        types.FileChange
	Path        string
	OldPath     string // set for moves
	ContentHash string
	ModTime     int64
	Content     []byte // raw bytes, set only for new and modified files
}

// ChangeSet is the full result of one detection pass, grouped by class.
// Per-file read failures do not abort detection; they are collected in
// Failed and the run continues without those files.
type ChangeSet struct {
	New       []Change
	Modified  []Change
	Moved     []Change
	Refreshed []Change
	Deleted   []string
	Unchanged int
	Failed    []FileError
}

// FileError records a per-file failure without aborting the run.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) String() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Detector classifies scanned files against the state recorded in the
// vector store. It holds no state of its own between runs.
type Detector struct {
	workers int
}

// NewDetector creates a Detector that hashes up to workers files
// concurrently.
func NewDetector(workers int) *Detector {
	if workers <= 0 {
		workers = 1
	}
	return &Detector{workers: workers}
}

// Detect compares the scanned files with the stored states. The mtime fast
// path skips reading files whose stored mtime matches exactly; everything
// else is read and hashed. A new path whose content hash matches a stored
// file that is no longer on disk is classified as a move.
func (d *Detector) Detect(ctx context.Context, stored []types.FileState, scanned []ScannedFile) (*ChangeSet, error) {
	byPath := make(map[string]types.FileState, len(stored))
	for _, st := range stored {
		byPath[st.Path] = st
	}

	onDisk := make(map[string]bool, len(scanned))
	for _, f := range scanned {
		onDisk[f.Path] = true
	}

	// Reverse index: content hash -> stored paths that are gone from disk.
	// Only those are move candidates; a hash match against a path that
	// still exists is a copy, not a move.
	movedAway := make(map[string][]string)
	for _, st := range stored {
		if !onDisk[st.Path] {
			movedAway[st.ContentHash] = append(movedAway[st.ContentHash], st.Path)
		}
	}
	for _, paths := range movedAway {
		sort.Strings(paths)
	}

	cs := &ChangeSet{}

	// Fast path first: an exact mtime match on a fully indexed file means
	// untouched, no read needed. A file whose stored chunk count falls
	// short of its chunk total was left behind by an interrupted run and
	// must be rehashed regardless of mtime.
	var needHash []ScannedFile
	for _, f := range scanned {
		if st, ok := byPath[f.Path]; ok && st.ModTime.UnixNano() == f.ModTime && st.Complete() {
			cs.Unchanged++
			continue
		}
		needHash = append(needHash, f)
	}

	hashed, failed, err := d.hashFiles(ctx, needHash)
	if err != nil {
		return nil, err
	}
	cs.Failed = failed

	for _, h := range hashed {
		st, known := byPath[h.file.Path]
		switch {
		case known && st.ContentHash == h.hash && st.Complete():
			// Touched but identical. Only the stored mtime is stale.
			cs.Refreshed = append(cs.Refreshed, Change{
				Type:    types.ChangeRefreshed,
				Path:    h.file.Path,
				ModTime: h.file.ModTime,
			})
		case known:
			// Either the content changed or a previous run stopped before
			// all chunks landed; re-chunking plus dedup fills the gap.
			cs.Modified = append(cs.Modified, Change{
				Type:        types.ChangeModified,
				Path:        h.file.Path,
				ContentHash: h.hash,
				ModTime:     h.file.ModTime,
				Content:     h.content,
			})
		default:
			if candidates := movedAway[h.hash]; len(candidates) > 0 {
				oldPath := candidates[0]
				movedAway[h.hash] = candidates[1:]
				cs.Moved = append(cs.Moved, Change{
					Type:        types.ChangeMoved,
					Path:        h.file.Path,
					OldPath:     oldPath,
					ContentHash: h.hash,
					ModTime:     h.file.ModTime,
				})
				continue
			}
			cs.New = append(cs.New, Change{
				Type:        types.ChangeNew,
				Path:        h.file.Path,
				ContentHash: h.hash,
				ModTime:     h.file.ModTime,
				Content:     h.content,
			})
		}
	}

	// Stored paths claimed by a move are accounted for; the rest of the
	// missing paths are deletions.
	claimed := make(map[string]bool, len(cs.Moved))
	for _, mv := range cs.Moved {
		claimed[mv.OldPath] = true
	}
	for _, st := range stored {
		if !onDisk[st.Path] && !claimed[st.Path] {
			cs.Deleted = append(cs.Deleted, st.Path)
		}
	}

	cs.sortDeterministic()
	return cs, nil
}

type hashedFile struct {
	file    ScannedFile
	hash    string
	content []byte
}

// hashFiles reads and hashes files concurrently, bounded by the worker
// count. Read failures are isolated per file.
func (d *Detector) hashFiles(ctx context.Context, files []ScannedFile) ([]hashedFile, []FileError, error) {
	results := make([]*hashedFile, len(files))
	failures := make([]*FileError, len(files))

	semaphore := make(chan struct{}, d.workers)
	g, gctx := errgroup.WithContext(ctx)

	for i, f := range files {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			data, err := os.ReadFile(f.Path)
			if err != nil {
				failures[i] = &FileError{Path: f.Path, Err: err}
				return nil
			}
			results[i] = &hashedFile{file: f, hash: hasher.Sum(data), content: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	hashed := make([]hashedFile, 0, len(files))
	var failed []FileError
	for i := range files {
		if results[i] != nil {
			hashed = append(hashed, *results[i])
		} else if failures[i] != nil {
			failed = append(failed, *failures[i])
		}
	}
	return hashed, failed, nil
}

// sortDeterministic orders every class by path so batch composition does
// not depend on walk or goroutine scheduling order.
func (cs *ChangeSet) sortDeterministic() {
	byPath := func(changes []Change) {
		sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	}
	byPath(cs.New)
	byPath(cs.Modified)
	byPath(cs.Moved)
	byPath(cs.Refreshed)
	sort.Strings(cs.Deleted)
	sort.Slice(cs.Failed, func(i, j int) bool { return cs.Failed[i].Path < cs.Failed[j].Path })
}
