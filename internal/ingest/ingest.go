package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vecsync/vecsync/internal/chunker"
	"github.com/vecsync/vecsync/internal/embedder"
	"github.com/vecsync/vecsync/internal/extract"
	"github.com/vecsync/vecsync/internal/vectorstore"
	"github.com/vecsync/vecsync/pkg/types"
)

// Config tunes one ingestion engine.
type Config struct {
	ChunkSize    int // runes per chunk (default chunker.DefaultChunkSize)
	ChunkOverlap int // rune overlap between chunks (default chunker.DefaultChunkOverlap)
	BatchSize    int // chunks per embedding call (default DefaultBatchSize)
	Workers      int // concurrent hash/extract workers (default runtime.NumCPU())
}

// Engine coordinates the sync pipeline: scan -> detect -> chunk -> dedup ->
// batch index -> cleanup. The vector store is the only persisted state; a
// run reconciles disk against whatever the store already holds.
type Engine struct {
	store    vectorstore.Store
	embedder embedder.Embedder
	registry *extract.Registry
	chunker  *chunker.Chunker
	detector *Detector
	dedup    *Deduplicator
	cleanup  *Cleanup
	logger   *slog.Logger

	batchSize int
	workers   int
	lock      RunLock
}

// Summary reports what one sync run did.
type Summary struct {
	ScopeRoot      string
	FilesScanned   int
	FilesUnchanged int
	FilesNew       int
	FilesModified  int
	FilesMoved     int
	FilesRefreshed int
	FilesDeleted   int
	FilesFailed    int

	ChunksEmbedded  int
	ChunksDeduped   int
	ChunksDeleted   int
	MetadataUpserts int
	EmbedCalls      int
	UpsertCalls     int

	Duration time.Duration
	Errors   []string
}

// New creates an Engine. The logger may be nil.
func New(store vectorstore.Store, emb embedder.Embedder, logger *slog.Logger, cfg Config) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = chunker.DefaultChunkSize
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = chunker.DefaultChunkOverlap
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	ch, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	return &Engine{
		store:     store,
		embedder:  emb,
		registry:  extract.NewRegistry(),
		chunker:   ch,
		detector:  NewDetector(cfg.Workers),
		dedup:     NewDeduplicator(store),
		cleanup:   NewCleanup(store),
		logger:    logger,
		batchSize: cfg.BatchSize,
		workers:   cfg.Workers,
	}, nil
}

// Registry exposes the extractor registry so callers can plug in more
// formats before syncing.
func (e *Engine) Registry() *extract.Registry {
	return e.registry
}

// Sync reconciles the files under scopeRoot with the vector store. At most
// one sync runs at a time per Engine; concurrent calls fail fast with
// ErrSyncInProgress.
func (e *Engine) Sync(ctx context.Context, scopeRoot string) (*Summary, error) {
	if !e.lock.TryAcquire() {
		return nil, ErrSyncInProgress
	}
	defer e.lock.Release()

	scope, err := filepath.Abs(scopeRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scope root: %w", err)
	}

	start := time.Now()
	summary := &Summary{ScopeRoot: scope}

	scanned, err := e.discoverFiles(scope)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", scope, err)
	}
	summary.FilesScanned = len(scanned)

	stored, err := e.store.ListFileStates(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored state: %w", err)
	}

	cs, err := e.detector.Detect(ctx, stored, scanned)
	if err != nil {
		return nil, fmt.Errorf("change detection failed: %w", err)
	}

	summary.FilesUnchanged = cs.Unchanged
	summary.FilesNew = len(cs.New)
	summary.FilesModified = len(cs.Modified)
	summary.FilesMoved = len(cs.Moved)
	summary.FilesRefreshed = len(cs.Refreshed)
	summary.FilesDeleted = len(cs.Deleted)
	summary.FilesFailed = len(cs.Failed)
	for _, fe := range cs.Failed {
		summary.Errors = append(summary.Errors, fe.String())
	}

	e.logger.Info("change detection complete",
		slog.String("scope", scope),
		slog.Int("scanned", summary.FilesScanned),
		slog.Int("unchanged", cs.Unchanged),
		slog.Int("new", len(cs.New)),
		slog.Int("modified", len(cs.Modified)),
		slog.Int("moved", len(cs.Moved)),
		slog.Int("refreshed", len(cs.Refreshed)),
		slog.Int("deleted", len(cs.Deleted)))

	// Moves are metadata-only: one path rewrite per file, no embedding.
	for _, mv := range cs.Moved {
		n, err := e.store.UpdateFilePath(ctx, scope, mv.OldPath, mv.Path, time.Unix(0, mv.ModTime))
		if err != nil {
			return summary, fmt.Errorf("failed to record move %s -> %s: %w", mv.OldPath, mv.Path, err)
		}
		summary.MetadataUpserts += n
		e.logger.Debug("recorded move",
			slog.String("from", mv.OldPath),
			slog.String("to", mv.Path),
			slog.Int("chunks", n))
	}

	// Touched-but-identical files only need their stored mtime refreshed,
	// otherwise every later run would re-read them.
	for _, rf := range cs.Refreshed {
		n, err := e.store.RefreshModTime(ctx, scope, rf.Path, time.Unix(0, rf.ModTime))
		if err != nil {
			return summary, fmt.Errorf("failed to refresh mtime of %s: %w", rf.Path, err)
		}
		summary.MetadataUpserts += n
	}

	if n, err := e.cleanup.RemoveDeleted(ctx, scope, cs.Deleted); err != nil {
		return summary, err
	} else if n > 0 {
		summary.ChunksDeleted += n
		e.logger.Info("removed deleted files", slog.Int("files", len(cs.Deleted)), slog.Int("chunks", n))
	}

	// Chunk new and modified files concurrently, then index in a single
	// deterministic sequence ordered by path.
	files, chunkErrs, err := e.chunkChanges(ctx, scope, append(cs.New, cs.Modified...))
	if err != nil {
		return summary, err
	}
	for _, fe := range chunkErrs {
		summary.FilesFailed++
		summary.Errors = append(summary.Errors, fe.String())
		e.logger.Warn("skipping file", slog.String("path", fe.Path), slog.String("error", fe.Err.Error()))
	}

	var all []types.Chunk
	for _, fc := range files {
		all = append(all, fc.chunks...)
	}

	dres, err := e.dedup.Filter(ctx, all)
	if err != nil {
		return summary, err
	}
	summary.ChunksDeduped = dres.SkippedInRun + dres.SkippedStored

	batcher := NewBatchIndexer(e.embedder, e.store, e.batchSize)
	embedded, indexErr := batcher.Index(ctx, dres.Missing)
	summary.ChunksEmbedded = embedded
	summary.EmbedCalls = batcher.EmbedCalls()
	summary.UpsertCalls = batcher.UpsertCalls()
	if indexErr != nil {
		// Batches upserted before the failure stay durable; stale chunks
		// of modified files are intentionally left in place so nothing
		// disappears before its replacement landed. The next run finishes
		// the job.
		summary.Duration = time.Since(start)
		return summary, indexErr
	}

	// Supersede pass: only now that every new chunk is durable may the
	// previous generation of modified files be dropped. Chunks that carried
	// over from the old generation then get the new file fingerprint, so
	// the next run sees a complete, current file.
	for _, fc := range files {
		if !fc.modified {
			continue
		}
		n, err := e.cleanup.Supersede(ctx, scope, fc.path, fc.chunkIDs())
		if err != nil {
			return summary, err
		}
		summary.ChunksDeleted += n

		if total := fc.chunkTotal(); total > 0 {
			if _, err := e.store.UpdateFileMeta(ctx, scope, fc.path,
				time.Unix(0, fc.modTime), fc.contentHash, total); err != nil {
				return summary, err
			}
		}
	}

	summary.Duration = time.Since(start)
	e.logger.Info("sync complete",
		slog.String("scope", scope),
		slog.Int("embedded", summary.ChunksEmbedded),
		slog.Int("deduped", summary.ChunksDeduped),
		slog.Int("deleted", summary.ChunksDeleted),
		slog.Int("embed_calls", summary.EmbedCalls),
		slog.Duration("duration", summary.Duration))
	return summary, nil
}

// fileChunks is one changed file's chunking result.
type fileChunks struct {
	path        string
	modified    bool
	modTime     int64
	contentHash string
	chunks      []types.Chunk
}

func (fc fileChunks) chunkIDs() []string {
	ids := make([]string, len(fc.chunks))
	for i, c := range fc.chunks {
		ids[i] = c.ID
	}
	return ids
}

func (fc fileChunks) chunkTotal() int {
	if len(fc.chunks) == 0 {
		return 0
	}
	return fc.chunks[0].Metadata.ChunkTotal
}

// chunkChanges extracts and chunks changed files with a bounded worker
// pool. Extraction failures are isolated per file. Results come back
// sorted by path regardless of completion order.
func (e *Engine) chunkChanges(ctx context.Context, scope string, changes []Change) ([]fileChunks, []FileError, error) {
	results := make([]*fileChunks, len(changes))
	failures := make([]*FileError, len(changes))

	semaphore := make(chan struct{}, e.workers)
	g, gctx := errgroup.WithContext(ctx)

	for i, change := range changes {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			text, err := e.registry.Extract(change.Path, change.Content)
			if err != nil {
				failures[i] = &FileError{Path: change.Path, Err: err}
				return nil
			}

			meta := types.Metadata{
				SourcePath:  change.Path,
				ScopeRoot:   scope,
				FileModTime: time.Unix(0, change.ModTime),
				ContentHash: change.ContentHash,
			}
			results[i] = &fileChunks{
				path:        change.Path,
				modified:    change.Type == types.ChangeModified,
				modTime:     change.ModTime,
				contentHash: change.ContentHash,
				chunks:      e.chunker.Chunk(text, meta),
			}
			return nil
		})
	}
	// Group errors only arise from context cancellation; per-file errors
	// never abort the group.
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	files := make([]fileChunks, 0, len(changes))
	var failed []FileError
	for i := range changes {
		if results[i] != nil {
			files = append(files, *results[i])
		} else if failures[i] != nil {
			failed = append(failed, *failures[i])
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	return files, failed, nil
}

// discoverFiles walks the scope root collecting supported files. Hidden
// directories are skipped.
func (e *Engine) discoverFiles(scope string) ([]ScannedFile, error) {
	var files []ScannedFile
	err := filepath.WalkDir(scope, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != scope && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !e.registry.Supported(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, ScannedFile{
			Path:    path,
			ModTime: info.ModTime().UnixNano(),
			Size:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}
