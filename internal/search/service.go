// Package search answers queries over the hybrid index and enriches
// results through the wikilink graph.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/openclaw/vaultbridge/internal/apperr"
	"github.com/openclaw/vaultbridge/internal/embed"
	"github.com/openclaw/vaultbridge/internal/models"
	"github.com/openclaw/vaultbridge/internal/parser"
	"github.com/openclaw/vaultbridge/internal/store"
)

// Request is one search invocation. A zero TopK takes the configured
// default; a nil Threshold takes the configured similarity threshold.
type Request struct {
	Query          string
	TopK           int
	Threshold      *float32
	IncludeRelated bool
}

// Options carries the tunables for query handling.
type Options struct {
	SimilarityThreshold float32
	TopKDefault         int
	TopKMax             int
}

// Service executes searches: embed the query, retrieve hybrid hits,
// then walk the link graph around the result notes.
type Service struct {
	embedder embed.Embedder
	sparse   *embed.SparseEncoder
	db       store.Store
	opts     Options
	log      *slog.Logger
}

// New creates a search Service.
func New(embedder embed.Embedder, sparse *embed.SparseEncoder, db store.Store, opts Options, log *slog.Logger) *Service {
	return &Service{
		embedder: embedder,
		sparse:   sparse,
		db:       db,
		opts:     opts,
		log:      log,
	}
}

// Search runs a hybrid query. TotalHits counts every fused candidate
// before truncation to TopK, so clients can tell "exactly k matches"
// from "k of many". The similarity threshold gates the dense retrieval
// branch before fusion; fused scores are rank-based (RRF) and are not
// compared against it.
func (s *Service) Search(ctx context.Context, req Request) (models.SearchResponse, error) {
	start := time.Now()

	if strings.TrimSpace(req.Query) == "" {
		return models.SearchResponse{}, fmt.Errorf("%w: query must not be empty", apperr.ErrInvalidInput)
	}
	topK := req.TopK
	if topK == 0 {
		topK = s.opts.TopKDefault
	}
	if topK < 1 || topK > s.opts.TopKMax {
		return models.SearchResponse{}, fmt.Errorf("%w: top_k must be between 1 and %d", apperr.ErrInvalidInput, s.opts.TopKMax)
	}
	threshold := s.opts.SimilarityThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	dense, err := s.embedder.EmbedBatch(ctx, []string{req.Query})
	if err != nil {
		return models.SearchResponse{}, fmt.Errorf("search: embed query: %w", err)
	}

	// Over-fetch so TotalHits reflects the match count beyond TopK.
	hits, err := s.db.HybridSearch(ctx, dense[0], s.sparse.Encode(req.Query), topK*2, threshold)
	if err != nil {
		return models.SearchResponse{}, err
	}

	totalHits := len(hits)
	results := hits
	if len(results) > topK {
		results = results[:topK]
	}

	var related []models.RelatedNote
	if req.IncludeRelated && len(results) > 0 {
		related, err = s.relatedNotes(ctx, results)
		if err != nil {
			return models.SearchResponse{}, err
		}
	}

	elapsed := math.Round(float64(time.Since(start).Microseconds())/100) / 10
	s.log.Info("search",
		slog.String("query", req.Query),
		slog.Int("results", len(results)),
		slog.Int("total_hits", totalHits),
		slog.Float64("ms", elapsed))

	return models.SearchResponse{
		Query:        req.Query,
		Results:      results,
		RelatedNotes: related,
		TotalHits:    totalHits,
		SearchTimeMS: elapsed,
	}, nil
}

// relatedNotes walks one hop of the link graph around the result
// notes in a single batched lookup. Notes already present in the
// results are excluded; the rest are ranked by how many distinct
// result notes they connect to.
func (s *Service) relatedNotes(ctx context.Context, results []models.SearchResultItem) ([]models.RelatedNote, error) {
	inResults := make(map[string]struct{}, len(results))
	paths := make([]string, 0, len(results))
	for _, r := range results {
		if _, dup := inResults[r.NotePath]; dup {
			continue
		}
		inResults[r.NotePath] = struct{}{}
		paths = append(paths, r.NotePath)
	}

	links, err := s.db.LinksTouching(ctx, paths)
	if err != nil {
		return nil, err
	}

	type relation struct {
		partners map[string]struct{} // result notes this path connects to
		outgoing bool
		backlink bool
	}
	relations := map[string]*relation{}
	connect := func(relatedPath, resultPath string, isOutgoing bool) {
		if relatedPath == "" {
			return
		}
		if _, dup := inResults[relatedPath]; dup {
			return
		}
		rel, ok := relations[relatedPath]
		if !ok {
			rel = &relation{partners: map[string]struct{}{}}
			relations[relatedPath] = rel
		}
		rel.partners[resultPath] = struct{}{}
		if isOutgoing {
			rel.outgoing = true
		} else {
			rel.backlink = true
		}
	}

	for _, l := range links {
		if _, ok := inResults[l.SourcePath]; ok {
			// A result note links out to the related note.
			connect(l.ResolvedTargetPath, l.SourcePath, true)
		}
		if _, ok := inResults[l.ResolvedTargetPath]; ok {
			// The related note links back into a result note.
			connect(l.SourcePath, l.ResolvedTargetPath, false)
		}
	}

	related := make([]models.RelatedNote, 0, len(relations))
	for path, rel := range relations {
		relationship := "outgoing"
		switch {
		case rel.outgoing && rel.backlink:
			relationship = "both"
		case rel.backlink:
			relationship = "backlink"
		}
		related = append(related, models.RelatedNote{
			NotePath:     path,
			NoteTitle:    parser.TitleFromPath(path),
			Relationship: relationship,
			LinkCount:    len(rel.partners),
		})
	}
	sort.Slice(related, func(i, j int) bool {
		if related[i].LinkCount != related[j].LinkCount {
			return related[i].LinkCount > related[j].LinkCount
		}
		return related[i].NotePath < related[j].NotePath
	})
	return related, nil
}

// Links returns the link neighborhood of one note: resolved outgoing
// targets and the notes linking back to it. A note with no indexed
// chunks yields apperr.ErrNotFound.
func (s *Service) Links(ctx context.Context, notePath string) (models.NoteLinks, error) {
	indexed, err := s.db.HasNote(ctx, notePath)
	if err != nil {
		return models.NoteLinks{}, err
	}
	if !indexed {
		return models.NoteLinks{}, fmt.Errorf("%w: note %s is not indexed", apperr.ErrNotFound, notePath)
	}

	links, err := s.db.LinksTouching(ctx, []string{notePath})
	if err != nil {
		return models.NoteLinks{}, err
	}

	out := models.NoteLinks{NotePath: notePath}
	seenOut := map[string]struct{}{}
	seenBack := map[string]struct{}{}
	for _, l := range links {
		if l.SourcePath == notePath && l.ResolvedTargetPath != "" {
			if _, dup := seenOut[l.ResolvedTargetPath]; !dup {
				seenOut[l.ResolvedTargetPath] = struct{}{}
				out.Outlinks = append(out.Outlinks, models.NoteLinkItem{
					NotePath:  l.ResolvedTargetPath,
					NoteTitle: parser.TitleFromPath(l.ResolvedTargetPath),
				})
			}
		}
		if l.ResolvedTargetPath == notePath && l.SourcePath != notePath {
			if _, dup := seenBack[l.SourcePath]; !dup {
				seenBack[l.SourcePath] = struct{}{}
				out.Backlinks = append(out.Backlinks, models.NoteLinkItem{
					NotePath:  l.SourcePath,
					NoteTitle: parser.TitleFromPath(l.SourcePath),
				})
			}
		}
	}
	sort.Slice(out.Outlinks, func(i, j int) bool { return out.Outlinks[i].NotePath < out.Outlinks[j].NotePath })
	sort.Slice(out.Backlinks, func(i, j int) bool { return out.Backlinks[i].NotePath < out.Backlinks[j].NotePath })
	return out, nil
}
