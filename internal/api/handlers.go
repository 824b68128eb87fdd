package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/openclaw/vaultbridge/internal/apperr"
	"github.com/openclaw/vaultbridge/internal/indexer"
	"github.com/openclaw/vaultbridge/internal/models"
	"github.com/openclaw/vaultbridge/internal/search"
)

// Handler holds API route handlers.
type Handler struct {
	search *search.Service
	index  *indexer.Service
}

// NewHandler creates a new Handler.
func NewHandler(searchSvc *search.Service, indexSvc *indexer.Service) *Handler {
	return &Handler{search: searchSvc, index: indexSvc}
}

// notePath extracts the note path from a /notes/*/links URL.
// Supports encoded slashes from OpenAPI clients (e.g. topics%2Fnote.md).
func notePath(r *http.Request) (string, bool) {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	raw, ok := strings.CutSuffix(raw, "/links")
	if !ok || raw == "" {
		return "", false
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw, true
	}
	return decoded, true
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error, logMsg string, attrs ...slog.Attr) {
	switch {
	case errors.Is(err, apperr.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("rebuild already in progress"))
	case errors.Is(err, apperr.ErrStoreUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("vector store unavailable"))
	default:
		slog.LogAttrs(context.Background(), slog.LevelError, logMsg,
			append(attrs, slog.String("error", err.Error()))...)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// Search handles POST /api/search.
//
//	@Summary		Hybrid search over indexed notes
//	@Tags			search
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SearchRequest	true	"Search query"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [post]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	includeRelated := true
	if req.IncludeRelated != nil {
		includeRelated = *req.IncludeRelated
	}

	resp, err := h.search.Search(r.Context(), search.Request{
		Query:          req.Query,
		TopK:           req.TopK,
		Threshold:      req.Threshold,
		IncludeRelated: includeRelated,
	})
	if err != nil {
		writeError(w, err, "search failed", slog.String("query", req.Query))
		return
	}
	if resp.Results == nil {
		resp.Results = []models.SearchResultItem{}
	}
	if resp.RelatedNotes == nil {
		resp.RelatedNotes = []models.RelatedNote{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Rebuild handles POST /api/index/rebuild.
//
//	@Summary		Rebuild the whole index from the vault
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	RebuildResponse
//	@Failure		409	{object}	errResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/index/rebuild [post]
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	summary, err := h.index.RebuildAll(r.Context())
	if err != nil {
		writeError(w, err, "rebuild failed")
		return
	}
	if summary.Failed == nil {
		summary.Failed = []string{}
	}
	writeJSON(w, http.StatusOK, summary)
}

// Status handles GET /api/index/status.
//
//	@Summary		Index statistics and component health
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Security		BearerAuth
//	@Router			/index/status [get]
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.index.Status(r.Context()))
}

// Events handles GET /api/index/events.
//
//	@Summary		Recent watcher events, newest first
//	@Tags			index
//	@Produce		json
//	@Param			limit	query		int	false	"Max events to return"
//	@Success		200		{object}	EventsResponse
//	@Security		BearerAuth
//	@Router			/index/events [get]
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events := h.index.RecentEvents(limit)
	if events == nil {
		events = []models.WatcherEvent{}
	}
	writeJSON(w, http.StatusOK, EventsResponse{Events: events})
}

// NoteLinks handles GET /api/notes/*/links.
//
//	@Summary		Backlinks and outgoing links for a note
//	@Tags			notes
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	NoteLinksResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path}/links [get]
func (h *Handler) NoteLinks(w http.ResponseWriter, r *http.Request) {
	path, ok := notePath(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	links, err := h.search.Links(r.Context(), path)
	if err != nil {
		writeError(w, err, "note links failed", slog.String("path", path))
		return
	}
	if links.Outlinks == nil {
		links.Outlinks = []models.NoteLinkItem{}
	}
	if links.Backlinks == nil {
		links.Backlinks = []models.NoteLinkItem{}
	}
	writeJSON(w, http.StatusOK, links)
}
