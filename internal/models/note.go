// Package models defines the domain types for VaultBridge.
package models

import "time"

// NoteMetadata is the structured metadata extracted from one note.
// Recomputed on every (re)index of the note and superseded in place.
type NoteMetadata struct {
	Path         string         `json:"path"`
	Title        string         `json:"title"`
	LastModified time.Time      `json:"last_modified"`
	Frontmatter  map[string]any `json:"frontmatter,omitempty"`
	Tags         []string       `json:"tags"`
	WordCount    int            `json:"word_count"`
}

// Chunk is a segment of a note's text, the unit of embedding and
// retrieval. ID is "<note path>#chunk<index>" and is stable for a
// given content layout, which makes upserts idempotent.
type Chunk struct {
	ID           string    `json:"chunk_id"`
	NotePath     string    `json:"note_path"`
	Content      string    `json:"content"`
	Index        int       `json:"chunk_index"`
	HeadingPath  string    `json:"heading_path,omitempty"`
	NoteTitle    string    `json:"note_title"`
	Tags         []string  `json:"tags,omitempty"`
	LastModified time.Time `json:"last_modified"`
	Embedding    []float32 `json:"-"`
}

// WikiLink is a directed edge in the note graph, keyed by
// (SourcePath, LinkText). ResolvedTargetPath is empty when no note
// matches the link text.
type WikiLink struct {
	SourcePath         string `json:"source_path"`
	LinkText           string `json:"link_text"`
	ResolvedTargetPath string `json:"resolved_target_path,omitempty"`
	Kind               string `json:"kind"`
}

// LinkKindWikilink is the only link kind currently produced.
const LinkKindWikilink = "wikilink"

// EventKind classifies a watcher event.
type EventKind string

// Watcher event kinds.
const (
	EventCreated  EventKind = "created"
	EventModified EventKind = "modified"
	EventDeleted  EventKind = "deleted"
	EventMoved    EventKind = "moved"
)

// WatcherEvent is one normalized file-system event. DestPath is set
// only for moved events.
type WatcherEvent struct {
	Kind      EventKind `json:"kind"`
	Path      string    `json:"path"`
	DestPath  string    `json:"dest_path,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SearchResultItem is a single ranked hit.
type SearchResultItem struct {
	ChunkID     string  `json:"chunk_id"`
	NotePath    string  `json:"note_path"`
	NoteTitle   string  `json:"note_title"`
	Content     string  `json:"content"`
	Score       float32 `json:"score"`
	HeadingPath string  `json:"heading_path,omitempty"`
}

// RelatedNote is a note connected to the result set through the link
// graph. LinkCount is the number of result notes participating in the
// relationship.
type RelatedNote struct {
	NotePath     string `json:"note_path"`
	NoteTitle    string `json:"note_title"`
	Relationship string `json:"relationship"` // "outgoing", "backlink", or "both"
	LinkCount    int    `json:"link_count"`
}

// SearchResponse is the full answer to one query.
type SearchResponse struct {
	Query        string             `json:"query"`
	Results      []SearchResultItem `json:"results"`
	RelatedNotes []RelatedNote      `json:"related_notes"`
	TotalHits    int                `json:"total_hits"`
	SearchTimeMS float64            `json:"search_time_ms"`
}

// NoteLinkItem identifies one end of a link relationship.
type NoteLinkItem struct {
	NotePath  string `json:"note_path"`
	NoteTitle string `json:"note_title"`
}

// NoteLinks is the link neighborhood of a single note.
type NoteLinks struct {
	NotePath  string         `json:"note_path"`
	Outlinks  []NoteLinkItem `json:"outlinks"`
	Backlinks []NoteLinkItem `json:"backlinks"`
}

// RebuildSummary reports the outcome of a full re-index.
type RebuildSummary struct {
	NotesIndexed  int      `json:"notes_indexed"`
	ChunksCreated int      `json:"chunks_created"`
	Failed        []string `json:"failed"`
	TimeTakenSec  float64  `json:"time_taken_seconds"`
}

// IndexStatus reports index health and statistics.
type IndexStatus struct {
	IndexedNotes   int        `json:"indexed_notes"`
	IndexedChunks  int        `json:"indexed_chunks"`
	LastRebuild    *time.Time `json:"last_rebuild,omitempty"`
	WatcherRunning bool       `json:"watcher_running"`
	StoreHealthy   bool       `json:"store_healthy"`
}

// FileInfo is a lightweight listing entry for one vault file.
type FileInfo struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
