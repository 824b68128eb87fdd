package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/openclaw/vaultbridge/internal/apperr"
	"github.com/openclaw/vaultbridge/internal/embed"
	"github.com/openclaw/vaultbridge/internal/models"
)

const (
	denseVectorName  = "dense"
	sparseVectorName = "sparse"
	scrollPageSize   = 100
)

// QdrantStore implements Store on a Qdrant instance over gRPC.
type QdrantStore struct {
	client *qdrant.Client
	log    *slog.Logger
	chunks string
	links  string
	dims   uint64
}

var _ Store = (*QdrantStore)(nil)

// NewQdrant connects to Qdrant at host:port. dims is the dense vector
// size enforced on the chunk collection.
func NewQdrant(host string, port int, chunkCollection, linkCollection string, dims int, log *slog.Logger) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("qdrant client: %w", err)
	}
	return &QdrantStore{
		client: client,
		log:    log,
		chunks: chunkCollection,
		links:  linkCollection,
		dims:   uint64(dims),
	}, nil
}

// Close releases the underlying gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// EnsureReady creates the chunk and link collections if missing. A
// chunk collection without sparse vector config predates hybrid search
// and is dropped and recreated; the caller must rebuild afterwards.
func (s *QdrantStore) EnsureReady(ctx context.Context) error {
	if err := s.ensureChunks(ctx); err != nil {
		return err
	}
	return s.ensureLinks(ctx)
}

func (s *QdrantStore) ensureChunks(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.chunks)
	if err != nil {
		return s.wrap("check chunk collection", err)
	}
	if exists {
		if s.hasSparseVectors(ctx) {
			return nil
		}
		s.log.Warn("chunk collection lacks sparse vectors, recreating; a full rebuild is required",
			slog.String("collection", s.chunks))
		if err := s.client.DeleteCollection(ctx, s.chunks); err != nil {
			return s.wrap("drop chunk collection", err)
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.chunks,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			denseVectorName: {
				Size:     s.dims,
				Distance: qdrant.Distance_Cosine,
			},
		}),
		SparseVectorsConfig: qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
			sparseVectorName: {
				Modifier: qdrant.Modifier_Idf.Enum(),
			},
		}),
	})
	if err != nil {
		return s.wrap("create chunk collection", err)
	}
	s.log.Info("created collection", slog.String("collection", s.chunks))
	return nil
}

func (s *QdrantStore) ensureLinks(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.links)
	if err != nil {
		return s.wrap("check link collection", err)
	}
	if exists {
		return nil
	}
	// Payload-only collection, no vectors.
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.links,
	})
	if err != nil {
		return s.wrap("create link collection", err)
	}
	s.log.Info("created collection", slog.String("collection", s.links))
	return nil
}

func (s *QdrantStore) hasSparseVectors(ctx context.Context) bool {
	info, err := s.client.GetCollectionInfo(ctx, s.chunks)
	if err != nil {
		return false
	}
	sparse := info.GetConfig().GetParams().GetSparseVectorsConfig().GetMap()
	return len(sparse) > 0
}

// UpsertChunks writes chunks in one request. sparse is matched to
// chunks by position; a chunk without a dense embedding is skipped.
func (s *QdrantStore) UpsertChunks(ctx context.Context, chunks []models.Chunk, sparse []embed.SparseVector) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, c := range chunks {
		if len(c.Embedding) == 0 {
			s.log.Warn("skipping chunk without embedding", slog.String("chunk_id", c.ID))
			continue
		}
		vectors := map[string]*qdrant.Vector{
			denseVectorName: qdrant.NewVectorDense(c.Embedding),
		}
		if i < len(sparse) && len(sparse[i].Indices) > 0 {
			vectors[sparseVectorName] = qdrant.NewVectorSparse(sparse[i].Indices, sparse[i].Values)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(c.ID)),
			Vectors: qdrant.NewVectorsMap(vectors),
			Payload: chunkPayload(c),
		})
	}
	if len(points) == 0 {
		return nil
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.chunks,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return s.wrap("upsert chunks", err)
	}
	s.log.Debug("upserted chunks", slog.Int("count", len(points)))
	return nil
}

// DeleteByNotePath removes every chunk of the note.
func (s *QdrantStore) DeleteByNotePath(ctx context.Context, notePath string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.chunks,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(fieldNotePath, notePath)},
		}),
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return s.wrap("delete chunks", err)
	}
	return nil
}

// UpsertLinks writes link edges keyed by "source::text", so reindexing
// a note overwrites its edges in place.
func (s *QdrantStore) UpsertLinks(ctx context.Context, links []models.WikiLink) error {
	if len(links) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(links))
	for _, l := range links {
		key := l.SourcePath + "::" + l.LinkText
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(key)),
			Payload: linkPayload(l),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.links,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return s.wrap("upsert links", err)
	}
	return nil
}

// DeleteBySource removes the note's outgoing link edges.
func (s *QdrantStore) DeleteBySource(ctx context.Context, sourcePath string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.links,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(fieldSourcePath, sourcePath)},
		}),
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return s.wrap("delete links", err)
	}
	return nil
}

// HybridSearch runs dense and sparse retrieval as prefetches of one
// query and fuses them with reciprocal rank fusion. The similarity
// threshold applies to the dense branch before fusion.
func (s *QdrantStore) HybridSearch(ctx context.Context, dense []float32, sparse embed.SparseVector, limit int, threshold float32) ([]models.SearchResultItem, error) {
	prefetchLimit := qdrant.PtrOf(uint64(limit))
	prefetch := []*qdrant.PrefetchQuery{
		{
			Query:          qdrant.NewQueryDense(dense),
			Using:          qdrant.PtrOf(denseVectorName),
			Limit:          prefetchLimit,
			ScoreThreshold: qdrant.PtrOf(threshold),
		},
	}
	if len(sparse.Indices) > 0 {
		prefetch = append(prefetch, &qdrant.PrefetchQuery{
			Query: qdrant.NewQuerySparse(sparse.Indices, sparse.Values),
			Using: qdrant.PtrOf(sparseVectorName),
			Limit: prefetchLimit,
		})
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.chunks,
		Prefetch:       prefetch,
		Query:          qdrant.NewQueryFusion(qdrant.Fusion_RRF),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, s.wrap("hybrid search", err)
	}

	items := make([]models.SearchResultItem, 0, len(points))
	for _, p := range points {
		items = append(items, resultFromPayload(p.GetPayload(), p.GetScore()))
	}
	return items, nil
}

// CountChunks returns the exact chunk count.
func (s *QdrantStore) CountChunks(ctx context.Context) (int, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.chunks,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, s.wrap("count chunks", err)
	}
	return int(n), nil
}

// NotePaths scrolls the chunk collection and returns the distinct
// note paths, unordered.
func (s *QdrantStore) NotePaths(ctx context.Context) ([]string, error) {
	seen := map[string]struct{}{}
	err := s.scroll(ctx, s.chunks, nil, []string{fieldNotePath}, func(payload map[string]*qdrant.Value) {
		if p := payload[fieldNotePath].GetStringValue(); p != "" {
			seen[p] = struct{}{}
		}
	})
	if err != nil {
		return nil, s.wrap("list note paths", err)
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	return paths, nil
}

// HasNote reports whether the note has any chunk in the index.
func (s *QdrantStore) HasNote(ctx context.Context, notePath string) (bool, error) {
	resp, err := s.client.GetPointsClient().Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.chunks,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(fieldNotePath, notePath)},
		},
		Limit:       qdrant.PtrOf(uint32(1)),
		WithPayload: qdrant.NewWithPayload(false),
	})
	if err != nil {
		return false, s.wrap("check note", err)
	}
	return len(resp.GetResult()) > 0, nil
}

// LinksTouching returns every link whose source or resolved target is
// in paths. An edge matching on both ends is returned once.
func (s *QdrantStore) LinksTouching(ctx context.Context, paths []string) ([]models.WikiLink, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	var links []models.WikiLink
	seen := map[string]struct{}{}
	collect := func(payload map[string]*qdrant.Value) {
		l := linkFromPayload(payload)
		key := l.SourcePath + "::" + l.LinkText
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		links = append(links, l)
	}

	for _, field := range []string{fieldSourcePath, fieldTargetPath} {
		filter := &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatchKeywords(field, paths...)},
		}
		if err := s.scroll(ctx, s.links, filter, nil, collect); err != nil {
			return nil, s.wrap("scroll links", err)
		}
	}
	return links, nil
}

// scroll pages through a collection, invoking fn with each payload.
// fields narrows the payload when non-nil.
func (s *QdrantStore) scroll(ctx context.Context, collection string, filter *qdrant.Filter, fields []string, fn func(map[string]*qdrant.Value)) error {
	withPayload := qdrant.NewWithPayload(true)
	if len(fields) > 0 {
		withPayload = qdrant.NewWithPayloadInclude(fields...)
	}

	req := &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint32(scrollPageSize)),
		WithPayload:    withPayload,
	}
	for {
		resp, err := s.client.GetPointsClient().Scroll(ctx, req)
		if err != nil {
			return err
		}
		for _, p := range resp.GetResult() {
			fn(p.GetPayload())
		}
		next := resp.GetNextPageOffset()
		if next == nil {
			return nil
		}
		req.Offset = next
	}
}

// Healthy reports whether Qdrant answers a health check.
func (s *QdrantStore) Healthy(ctx context.Context) bool {
	_, err := s.client.HealthCheck(ctx)
	return err == nil
}

// pointID derives the stable point UUID for a logical key, so upserts
// of the same chunk or link land on the same point.
func pointID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

func (s *QdrantStore) wrap(op string, err error) error {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%s: %w: %w", op, apperr.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
