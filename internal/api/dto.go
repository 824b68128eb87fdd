package api

import "github.com/openclaw/vaultbridge/internal/models"

// SearchRequest is the request body for a search query.
type SearchRequest struct {
	Query string `json:"query" example:"database migration" validate:"required"`
	// TopK caps the number of returned results; 0 uses the server default.
	TopK      int      `json:"top_k,omitempty" example:"5"`
	Threshold *float32 `json:"threshold,omitempty" example:"0.3"`
	// IncludeRelated toggles link-graph enrichment; omitted means true.
	IncludeRelated *bool `json:"include_related,omitempty"`
}

// SearchResponse is the full search answer (aliased from the domain layer).
type SearchResponse = models.SearchResponse

// RebuildResponse reports a completed full re-index.
type RebuildResponse = models.RebuildSummary

// StatusResponse reports index statistics and health.
type StatusResponse = models.IndexStatus

// NoteLinksResponse is the link neighborhood of one note.
type NoteLinksResponse = models.NoteLinks

// EventsResponse wraps recent watcher events, newest first.
type EventsResponse struct {
	Events []models.WatcherEvent `json:"events" validate:"required"`
}
