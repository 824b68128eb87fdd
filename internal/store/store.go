// Package store persists chunks and wikilinks in Qdrant. Chunks live
// in a hybrid collection (dense + sparse named vectors), links in a
// payload-only collection.
package store

import (
	"context"

	"github.com/openclaw/vaultbridge/internal/embed"
	"github.com/openclaw/vaultbridge/internal/models"
)

// ChunkStore holds the embedded chunk index.
type ChunkStore interface {
	// UpsertChunks writes chunks with their dense embeddings and the
	// positionally matching sparse vectors. Chunks without an embedding
	// are skipped.
	UpsertChunks(ctx context.Context, chunks []models.Chunk, sparse []embed.SparseVector) error
	// DeleteByNotePath removes every chunk belonging to the note.
	DeleteByNotePath(ctx context.Context, notePath string) error
	// HybridSearch fuses dense and sparse retrieval with reciprocal
	// rank fusion and returns up to limit hits, best first. threshold
	// bounds dense similarity before fusion.
	HybridSearch(ctx context.Context, dense []float32, sparse embed.SparseVector, limit int, threshold float32) ([]models.SearchResultItem, error)
	// CountChunks returns the exact number of indexed chunks.
	CountChunks(ctx context.Context) (int, error)
	// NotePaths returns the distinct note paths present in the index.
	NotePaths(ctx context.Context) ([]string, error)
	// HasNote reports whether the note has at least one indexed chunk.
	HasNote(ctx context.Context, notePath string) (bool, error)
}

// LinkStore holds the wikilink graph.
type LinkStore interface {
	// UpsertLinks writes link edges, keyed by (source path, link text).
	UpsertLinks(ctx context.Context, links []models.WikiLink) error
	// DeleteBySource removes every outgoing link of the note.
	DeleteBySource(ctx context.Context, sourcePath string) error
	// LinksTouching returns all links whose source or resolved target
	// is one of paths. One edge matching on both ends appears once.
	LinksTouching(ctx context.Context, paths []string) ([]models.WikiLink, error)
}

// Store is the full persistence boundary.
type Store interface {
	ChunkStore
	LinkStore

	// EnsureReady creates missing collections and recreates the chunk
	// collection if its vector schema is outdated.
	EnsureReady(ctx context.Context) error
	// Healthy reports whether the backing database answers.
	Healthy(ctx context.Context) bool
}
