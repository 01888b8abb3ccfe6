package ingest

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last filesystem
// event before triggering a sync. Editors fire bursts of events per save;
// one sync per burst is enough because a run reconciles everything.
const DefaultDebounce = 500 * time.Millisecond

// Watch runs an fsnotify watcher over scopeRoot and triggers a full sync
// whenever files change, debounced. Events do not carry enough information
// to sync incrementally (renames surface as separate remove and create
// events), so each burst simply schedules a reconciliation run; the change
// detector works out what actually happened.
//
// New directories created at runtime are added to the watch list. Watch
// returns when ctx is cancelled.
func (e *Engine) Watch(ctx context.Context, scopeRoot string, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	scope, err := filepath.Abs(scopeRoot)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	if err := addDirsRecursive(w, scope); err != nil {
		return err
	}

	e.logger.Info("watcher started", slog.String("scope", scope))

	var syncTimer *time.Timer
	var syncCh <-chan time.Time

	scheduleSync := func() {
		if syncTimer == nil {
			syncTimer = time.NewTimer(debounce)
			syncCh = syncTimer.C
		} else {
			syncTimer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if syncTimer != nil {
				syncTimer.Stop()
			}
			e.logger.Info("watcher stopped", slog.String("scope", scope))
			return nil

		case <-syncCh:
			summary, err := e.Sync(ctx, scope)
			if err == ErrSyncInProgress {
				// A manual sync is running; it will pick the changes up.
				scheduleSync()
				continue
			}
			if err != nil {
				e.logger.Error("watcher sync failed", slog.String("error", err.Error()))
				continue
			}
			e.logger.Info("watcher sync complete",
				slog.Int("embedded", summary.ChunksEmbedded),
				slog.Int("deleted", summary.ChunksDeleted))

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						e.logger.Warn("failed to watch new dir",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					scheduleSync()
					continue
				}
			}

			if !e.registry.Supported(ev.Name) {
				continue
			}
			scheduleSync()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			e.logger.Error("watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the
// watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && len(d.Name()) > 0 && d.Name()[0] == '.' {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
