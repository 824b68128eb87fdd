package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/openclaw/vaultbridge/internal/indexer"
	"github.com/openclaw/vaultbridge/internal/search"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(searchSvc *search.Service, indexSvc *indexer.Service, authEnabled bool, token string) chi.Router {
	h := NewHandler(searchSvc, indexSvc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Search.
	r.Post("/search", h.Search)

	// Index lifecycle.
	r.Post("/index/rebuild", h.Rebuild)
	r.Get("/index/status", h.Status)
	r.Get("/index/events", h.Events)

	// Link graph.
	r.Get("/notes/*", h.NoteLinks)

	return r
}
