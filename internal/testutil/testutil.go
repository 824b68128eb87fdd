// Package testutil provides shared test helpers: temp vaults, an
// in-memory store, and a deterministic embedder.
package testutil

import (
	"context"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/openclaw/vaultbridge/internal/embed"
	"github.com/openclaw/vaultbridge/internal/models"
	"github.com/openclaw/vaultbridge/internal/storage"
	"github.com/openclaw/vaultbridge/internal/store"
)

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir, []string{".md"})
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// WriteNote writes a note file into the vault, creating parent
// directories as needed.
func WriteNote(t *testing.T, vaultDir, relPath, content string) {
	t.Helper()
	abs := filepath.Join(vaultDir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// FakeEmbedder produces deterministic pseudo-embeddings derived from
// the input text, so identical text always embeds identically.
type FakeEmbedder struct {
	Dim int
	// Err, when set, is returned by every EmbedBatch call.
	Err error

	mu    sync.Mutex
	Calls int
}

var _ embed.Embedder = (*FakeEmbedder)(nil)

// CallCount returns the number of EmbedBatch invocations so far.
func (f *FakeEmbedder) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls
}

func (f *FakeEmbedder) Dims() int {
	if f.Dim == 0 {
		return 4
	}
	return f.Dim
}

func (f *FakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.Calls++
	f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, f.Dims())
		h := fnv.New32a()
		_, _ = h.Write([]byte(text))
		seed := h.Sum32()
		for j := range v {
			seed = seed*1664525 + 1013904223
			v[j] = float32(seed%1000) / 1000
		}
		out[i] = v
	}
	return out, nil
}

// MemStore is an in-memory store.Store. Hybrid search ranks by naive
// term overlap between the stored content and query terms registered
// with SetQueryTerms, which is enough to exercise ranking plumbing.
type MemStore struct {
	mu     sync.Mutex
	chunks map[string]models.Chunk    // chunk ID -> chunk
	links  map[string]models.WikiLink // source::text -> link

	queryTerms []string

	Unhealthy bool
	// FailOps maps an operation name ("upsert", "delete", "search",
	// "links") to an error returned by that operation.
	FailOps map[string]error
}

var _ store.Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		chunks: make(map[string]models.Chunk),
		links:  make(map[string]models.WikiLink),
	}
}

// SetQueryTerms sets the terms the fake ranker scores against.
func (m *MemStore) SetQueryTerms(terms ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryTerms = terms
}

func (m *MemStore) fail(op string) error {
	if m.FailOps == nil {
		return nil
	}
	return m.FailOps[op]
}

func (m *MemStore) EnsureReady(context.Context) error { return nil }

func (m *MemStore) Healthy(context.Context) bool { return !m.Unhealthy }

func (m *MemStore) UpsertChunks(_ context.Context, chunks []models.Chunk, _ []embed.SparseVector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("upsert"); err != nil {
		return err
	}
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			continue
		}
		m.chunks[c.ID] = c
	}
	return nil
}

func (m *MemStore) DeleteByNotePath(_ context.Context, notePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("delete"); err != nil {
		return err
	}
	for id, c := range m.chunks {
		if c.NotePath == notePath {
			delete(m.chunks, id)
		}
	}
	return nil
}

func (m *MemStore) UpsertLinks(_ context.Context, links []models.WikiLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("upsert"); err != nil {
		return err
	}
	for _, l := range links {
		m.links[l.SourcePath+"::"+l.LinkText] = l
	}
	return nil
}

func (m *MemStore) DeleteBySource(_ context.Context, sourcePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("delete"); err != nil {
		return err
	}
	for key, l := range m.links {
		if l.SourcePath == sourcePath {
			delete(m.links, key)
		}
	}
	return nil
}

func (m *MemStore) HybridSearch(_ context.Context, _ []float32, _ embed.SparseVector, limit int, _ float32) ([]models.SearchResultItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("search"); err != nil {
		return nil, err
	}

	var items []models.SearchResultItem
	for _, c := range m.chunks {
		score := m.score(c.Content)
		if score == 0 {
			continue
		}
		items = append(items, models.SearchResultItem{
			ChunkID:     c.ID,
			NotePath:    c.NotePath,
			NoteTitle:   c.NoteTitle,
			Content:     c.Content,
			Score:       score,
			HeadingPath: c.HeadingPath,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ChunkID < items[j].ChunkID
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *MemStore) score(content string) float32 {
	lower := strings.ToLower(content)
	var score float32
	for _, term := range m.queryTerms {
		if strings.Contains(lower, strings.ToLower(term)) {
			score++
		}
	}
	return score
}

func (m *MemStore) CountChunks(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chunks), nil
}

func (m *MemStore) NotePaths(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]struct{}{}
	for _, c := range m.chunks {
		seen[c.NotePath] = struct{}{}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func (m *MemStore) HasNote(_ context.Context, notePath string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.chunks {
		if c.NotePath == notePath {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemStore) LinksTouching(_ context.Context, paths []string) ([]models.WikiLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("links"); err != nil {
		return nil, err
	}

	in := map[string]struct{}{}
	for _, p := range paths {
		in[p] = struct{}{}
	}
	keys := make([]string, 0, len(m.links))
	for k := range m.links {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []models.WikiLink
	for _, k := range keys {
		l := m.links[k]
		_, srcIn := in[l.SourcePath]
		_, dstIn := in[l.ResolvedTargetPath]
		if srcIn || (l.ResolvedTargetPath != "" && dstIn) {
			out = append(out, l)
		}
	}
	return out, nil
}

// Chunks returns a snapshot of stored chunks keyed by chunk ID.
func (m *MemStore) Chunks() map[string]models.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]models.Chunk, len(m.chunks))
	for k, v := range m.chunks {
		out[k] = v
	}
	return out
}

// Links returns a snapshot of stored links keyed by "source::text".
func (m *MemStore) Links() map[string]models.WikiLink {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]models.WikiLink, len(m.links))
	for k, v := range m.links {
		out[k] = v
	}
	return out
}
