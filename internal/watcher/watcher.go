// Package watcher turns raw file-system notifications into normalized
// vault events: created, modified, deleted, moved. Consumers decide
// debouncing and indexing; the watcher only classifies.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/openclaw/vaultbridge/internal/models"
)

// renamePairWindow is how long a rename waits for its matching create
// before it is flushed as a plain delete.
const renamePairWindow = 500 * time.Millisecond

// Watcher observes a vault root recursively and emits WatcherEvents.
type Watcher struct {
	root    string
	exts    map[string]struct{}
	log     *slog.Logger
	events  chan models.WatcherEvent
	running atomic.Bool
}

// New creates a Watcher over root for files with the given extensions
// (e.g. ".md").
func New(root string, extensions []string, log *slog.Logger) *Watcher {
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		exts[e] = struct{}{}
	}
	return &Watcher{
		root:   root,
		exts:   exts,
		log:    log,
		events: make(chan models.WatcherEvent, 256),
	}
}

// Events is the stream of normalized events. It is closed when Run
// returns.
func (w *Watcher) Events() <-chan models.WatcherEvent {
	return w.events
}

// Running reports whether the watcher loop is active.
func (w *Watcher) Running() bool {
	return w.running.Load()
}

// Run watches the vault until ctx is cancelled. New directories created
// at runtime are added to the watch list.
//
// fsnotify reports a rename as a Rename on the old path followed by a
// Create on the new one. The old path is held for a short window and
// paired with the next create into a single moved event; an unpaired
// rename is flushed as a delete.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()
	defer close(w.events)

	if err := addDirsRecursive(fsw, w.root); err != nil {
		return err
	}

	w.running.Store(true)
	defer w.running.Store(false)
	w.log.Info("watcher: started", slog.String("root", w.root))

	var pending []string // rel paths of renames awaiting their create
	var flushTimer *time.Timer
	var flushCh <-chan time.Time

	scheduleFlush := func() {
		if flushTimer == nil {
			flushTimer = time.NewTimer(renamePairWindow)
			flushCh = flushTimer.C
		} else {
			flushTimer.Reset(renamePairWindow)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if flushTimer != nil {
				flushTimer.Stop()
			}
			w.log.Info("watcher: stopped")
			return nil

		case <-flushCh:
			for _, p := range pending {
				w.emit(ctx, models.WatcherEvent{Kind: models.EventDeleted, Path: p, Timestamp: time.Now()})
			}
			pending = nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(fsw, absPath); addErr != nil {
						w.log.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						w.log.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					w.emitNewDirFiles(ctx, absPath)
					continue
				}
			}

			rel, relOK := w.watched(absPath)
			if !relOK {
				continue
			}

			switch {
			case ev.Op&fsnotify.Create != 0:
				if len(pending) > 0 {
					old := pending[0]
					pending = pending[1:]
					w.emit(ctx, models.WatcherEvent{Kind: models.EventMoved, Path: old, DestPath: rel, Timestamp: time.Now()})
					continue
				}
				w.emit(ctx, models.WatcherEvent{Kind: models.EventCreated, Path: rel, Timestamp: time.Now()})

			case ev.Op&fsnotify.Write != 0:
				w.emit(ctx, models.WatcherEvent{Kind: models.EventModified, Path: rel, Timestamp: time.Now()})

			case ev.Op&fsnotify.Remove != 0:
				w.emit(ctx, models.WatcherEvent{Kind: models.EventDeleted, Path: rel, Timestamp: time.Now()})

			case ev.Op&fsnotify.Rename != 0:
				pending = append(pending, rel)
				scheduleFlush()
			}

		case watchErr, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// emitNewDirFiles reports files already present in a directory that
// appeared at runtime, e.g. after a folder move into the vault.
func (w *Watcher) emitNewDirFiles(ctx context.Context, dirPath string) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if rel, ok := w.watched(path); ok {
			w.emit(ctx, models.WatcherEvent{Kind: models.EventCreated, Path: rel, Timestamp: time.Now()})
		}
		return nil
	})
}

// watched maps an absolute path to its vault-relative slash form, or
// reports false for paths outside the root or with a foreign extension.
func (w *Watcher) watched(absPath string) (string, bool) {
	if _, ok := w.exts[filepath.Ext(absPath)]; !ok {
		return "", false
	}
	rel, err := filepath.Rel(w.root, absPath)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *Watcher) emit(ctx context.Context, ev models.WatcherEvent) {
	select {
	case w.events <- ev:
	case <-ctx.Done():
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}
