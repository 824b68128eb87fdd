// Package indexer orchestrates the pipeline: parse, chunk, embed,
// store. It owns the rebuild lifecycle and consumes watcher events.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/openclaw/vaultbridge/internal/apperr"
	"github.com/openclaw/vaultbridge/internal/chunk"
	"github.com/openclaw/vaultbridge/internal/embed"
	"github.com/openclaw/vaultbridge/internal/models"
	"github.com/openclaw/vaultbridge/internal/parser"
	"github.com/openclaw/vaultbridge/internal/storage"
	"github.com/openclaw/vaultbridge/internal/store"
	"github.com/openclaw/vaultbridge/internal/vaultmap"
	"github.com/openclaw/vaultbridge/internal/watcher"
)

// Service drives all index mutations. A full rebuild takes the write
// half of rebuildMu, single-note mutations take the read half, so
// watcher-driven changes queue behind a rebuild instead of interleaving
// with it.
type Service struct {
	files    storage.Provider
	vmap     *vaultmap.Map
	chunker  *chunk.Chunker
	embedder embed.Embedder
	sparse   *embed.SparseEncoder
	db       store.Store
	w        *watcher.Watcher
	log      *slog.Logger

	debounce time.Duration
	events   *watcher.EventLog

	rebuildMu sync.RWMutex
	paths     keyedMutex

	statusMu    sync.Mutex
	lastRebuild *time.Time

	sumsMu    sync.Mutex
	checksums map[string]string // path -> checksum of the last indexed content
}

// New wires the indexing pipeline. w may be nil when running without a
// file watcher (e.g. one-shot rebuilds).
func New(files storage.Provider, vmap *vaultmap.Map, chunker *chunk.Chunker, embedder embed.Embedder, sparse *embed.SparseEncoder, db store.Store, w *watcher.Watcher, debounce time.Duration, eventLogCap int, log *slog.Logger) *Service {
	return &Service{
		files:     files,
		vmap:      vmap,
		chunker:   chunker,
		embedder:  embedder,
		sparse:    sparse,
		db:        db,
		w:         w,
		log:       log,
		debounce:  debounce,
		events:    watcher.NewEventLog(eventLogCap),
		checksums: make(map[string]string),
	}
}

// Initialize scans the vault file map and ensures the store
// collections exist.
func (s *Service) Initialize(ctx context.Context) error {
	if err := s.vmap.Scan(); err != nil {
		return fmt.Errorf("indexer: scan vault: %w", err)
	}
	return s.db.EnsureReady(ctx)
}

// RebuildAll re-indexes every vault note from scratch. Only one
// rebuild runs at a time; a second call while one is in flight returns
// apperr.ErrConflict. Per-note failures are collected, not fatal.
func (s *Service) RebuildAll(ctx context.Context) (models.RebuildSummary, error) {
	if !s.rebuildMu.TryLock() {
		return models.RebuildSummary{}, apperr.ErrConflict
	}
	defer s.rebuildMu.Unlock()

	start := time.Now()

	if err := s.Initialize(ctx); err != nil {
		return models.RebuildSummary{}, err
	}

	infos, err := s.files.List("")
	if err != nil {
		return models.RebuildSummary{}, fmt.Errorf("indexer: list vault: %w", err)
	}

	var summary models.RebuildSummary
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		n, err := s.indexNote(ctx, info.Path, false)
		if err != nil {
			s.log.Warn("rebuild: note failed",
				slog.String("path", info.Path),
				slog.String("error", err.Error()))
			summary.Failed = append(summary.Failed, info.Path)
			continue
		}
		summary.NotesIndexed++
		summary.ChunksCreated += n
	}

	now := time.Now()
	s.statusMu.Lock()
	s.lastRebuild = &now
	s.statusMu.Unlock()

	summary.TimeTakenSec = math.Round(time.Since(start).Seconds()*10) / 10
	s.log.Info("rebuild complete",
		slog.Int("notes", summary.NotesIndexed),
		slog.Int("chunks", summary.ChunksCreated),
		slog.Int("failed", len(summary.Failed)),
		slog.Float64("seconds", summary.TimeTakenSec))
	return summary, nil
}

// IndexOne (re)indexes a single note.
func (s *Service) IndexOne(ctx context.Context, notePath string) (int, error) {
	s.rebuildMu.RLock()
	defer s.rebuildMu.RUnlock()
	unlock := s.paths.lock(notePath)
	defer unlock()

	return s.indexNote(ctx, notePath, false)
}

// DeleteOne removes a note's chunks and outgoing links.
func (s *Service) DeleteOne(ctx context.Context, notePath string) error {
	s.rebuildMu.RLock()
	defer s.rebuildMu.RUnlock()
	unlock := s.paths.lock(notePath)
	defer unlock()

	return s.deleteNote(ctx, notePath)
}

// RenameOne moves a note from oldPath to newPath: the old entry is
// removed first so a search never sees both, then the file map is
// repointed and the new path indexed.
func (s *Service) RenameOne(ctx context.Context, oldPath, newPath string) error {
	s.rebuildMu.RLock()
	defer s.rebuildMu.RUnlock()
	unlock := s.paths.lock2(oldPath, newPath)
	defer unlock()

	if err := s.db.DeleteByNotePath(ctx, oldPath); err != nil {
		return err
	}
	if err := s.db.DeleteBySource(ctx, oldPath); err != nil {
		return err
	}
	s.forgetChecksum(oldPath)
	s.vmap.Update(oldPath, newPath)

	if _, err := s.indexNote(ctx, newPath, false); err != nil {
		return err
	}
	s.log.Info("renamed note in index",
		slog.String("from", oldPath),
		slog.String("to", newPath))
	return nil
}

// Status reports current index statistics and component health.
func (s *Service) Status(ctx context.Context) models.IndexStatus {
	st := models.IndexStatus{
		StoreHealthy: s.db.Healthy(ctx),
	}
	if s.w != nil {
		st.WatcherRunning = s.w.Running()
	}
	if n, err := s.db.CountChunks(ctx); err == nil {
		st.IndexedChunks = n
	}
	if paths, err := s.db.NotePaths(ctx); err == nil {
		st.IndexedNotes = len(paths)
	}
	s.statusMu.Lock()
	st.LastRebuild = s.lastRebuild
	s.statusMu.Unlock()
	return st
}

// RecentEvents returns the newest watcher events, most recent first.
func (s *Service) RecentEvents(limit int) []models.WatcherEvent {
	return s.events.Recent(limit)
}

// Run consumes watcher events until the watcher stops.
func (s *Service) Run(ctx context.Context) error {
	if s.w == nil {
		return errors.New("indexer: no watcher configured")
	}
	return s.consume(ctx, s.w.Events())
}

// consume drains the event channel until it closes. Creates and
// modifications are debounced per path; deletes and moves cancel any
// pending timer for the path and apply immediately, since nothing
// newer can supersede them.
func (s *Service) consume(ctx context.Context, events <-chan models.WatcherEvent) error {
	deb := watcher.NewDebouncer(s.debounce, func(ev models.WatcherEvent) {
		s.applyEvent(ctx, ev)
	})
	defer deb.CancelAll()

	for ev := range events {
		s.events.Add(ev)
		switch ev.Kind {
		case models.EventCreated, models.EventModified:
			deb.Trigger(ev)
		case models.EventDeleted, models.EventMoved:
			deb.Cancel(ev.Path)
			s.applyEvent(ctx, ev)
		}
	}
	return nil
}

func (s *Service) applyEvent(ctx context.Context, ev models.WatcherEvent) {
	s.rebuildMu.RLock()
	defer s.rebuildMu.RUnlock()

	var unlock func()
	if ev.Kind == models.EventMoved {
		unlock = s.paths.lock2(ev.Path, ev.DestPath)
	} else {
		unlock = s.paths.lock(ev.Path)
	}
	defer unlock()

	var err error
	switch ev.Kind {
	case models.EventCreated:
		s.vmap.Update("", ev.Path)
		_, err = s.indexNote(ctx, ev.Path, false)
	case models.EventModified:
		_, err = s.indexNote(ctx, ev.Path, true)
	case models.EventDeleted:
		err = s.deleteNote(ctx, ev.Path)
	case models.EventMoved:
		if err = s.db.DeleteByNotePath(ctx, ev.Path); err == nil {
			err = s.db.DeleteBySource(ctx, ev.Path)
		}
		if err == nil {
			s.forgetChecksum(ev.Path)
			s.vmap.Update(ev.Path, ev.DestPath)
			_, err = s.indexNote(ctx, ev.DestPath, false)
		}
	}
	if err != nil {
		s.log.Warn("watcher event failed",
			slog.String("kind", string(ev.Kind)),
			slog.String("path", ev.Path),
			slog.String("error", err.Error()))
	}
}

// indexNote runs the pipeline for one note. Callers hold the locks.
// With skipUnchanged set, a note whose content checksum matches the
// last indexed state is left alone.
func (s *Service) indexNote(ctx context.Context, notePath string, skipUnchanged bool) (int, error) {
	info, err := s.files.Stat(notePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("file not found, skipping", slog.String("path", notePath))
			return 0, nil
		}
		return 0, err
	}

	if skipUnchanged && s.lastChecksum(notePath) == info.Checksum {
		s.log.Debug("content unchanged, skipping", slog.String("path", notePath))
		return 0, nil
	}

	data, err := s.files.Read(notePath)
	if err != nil {
		return 0, err
	}

	res, err := parser.Parse(notePath, data)
	if err != nil {
		return 0, err
	}

	// Stale state goes first so a parse producing fewer chunks leaves
	// no orphans behind.
	if err := s.db.DeleteByNotePath(ctx, notePath); err != nil {
		return 0, err
	}
	if err := s.db.DeleteBySource(ctx, notePath); err != nil {
		return 0, err
	}

	chunks := s.chunker.Chunk(notePath, res.Body)
	for i := range chunks {
		chunks[i].NoteTitle = res.Title
		chunks[i].Tags = res.Tags
		chunks[i].LastModified = info.UpdatedAt
	}

	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = parser.StripFormatting(c.Content)
		}
		dense, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("indexer: embed %s: %w", notePath, err)
		}
		for i := range chunks {
			chunks[i].Embedding = dense[i]
		}
		if err := s.db.UpsertChunks(ctx, chunks, s.sparse.EncodeBatch(texts)); err != nil {
			return 0, err
		}
	}

	if len(res.Links) > 0 {
		links := make([]models.WikiLink, 0, len(res.Links))
		for _, text := range res.Links {
			links = append(links, models.WikiLink{
				SourcePath:         notePath,
				LinkText:           text,
				ResolvedTargetPath: s.vmap.Resolve(text),
				Kind:               models.LinkKindWikilink,
			})
		}
		if err := s.db.UpsertLinks(ctx, links); err != nil {
			return 0, err
		}
	}

	s.rememberChecksum(notePath, info.Checksum)
	s.log.Debug("indexed note",
		slog.String("path", notePath),
		slog.Int("chunks", len(chunks)),
		slog.Int("links", len(res.Links)))
	return len(chunks), nil
}

func (s *Service) deleteNote(ctx context.Context, notePath string) error {
	if err := s.db.DeleteByNotePath(ctx, notePath); err != nil {
		return err
	}
	if err := s.db.DeleteBySource(ctx, notePath); err != nil {
		return err
	}
	s.vmap.Remove(notePath)
	s.forgetChecksum(notePath)
	s.log.Info("deleted note from index", slog.String("path", notePath))
	return nil
}

func (s *Service) lastChecksum(path string) string {
	s.sumsMu.Lock()
	defer s.sumsMu.Unlock()
	return s.checksums[path]
}

func (s *Service) rememberChecksum(path, sum string) {
	s.sumsMu.Lock()
	defer s.sumsMu.Unlock()
	s.checksums[path] = sum
}

func (s *Service) forgetChecksum(path string) {
	s.sumsMu.Lock()
	defer s.sumsMu.Unlock()
	delete(s.checksums, path)
}
