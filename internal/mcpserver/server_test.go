package mcpserver

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/openclaw/vaultbridge/internal/chunk"
	"github.com/openclaw/vaultbridge/internal/embed"
	"github.com/openclaw/vaultbridge/internal/indexer"
	"github.com/openclaw/vaultbridge/internal/search"
	"github.com/openclaw/vaultbridge/internal/testutil"
	"github.com/openclaw/vaultbridge/internal/vaultmap"
)

func testServer(t *testing.T) (*Server, string, *testutil.MemStore) {
	t.Helper()

	vaultDir, files := testutil.TestVault(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	mem := testutil.NewMemStore()
	emb := &testutil.FakeEmbedder{Dim: 4}
	sparse := embed.NewSparseEncoder()

	indexSvc := indexer.New(files, vaultmap.New(files), chunk.New(512, 128), emb, sparse, mem, nil, 10*time.Millisecond, 100, logger)
	searchSvc := search.New(emb, sparse, mem, search.Options{SimilarityThreshold: 0.3, TopKDefault: 5, TopKMax: 20}, logger)

	return New(searchSvc, indexSvc), vaultDir, mem
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handler
	// functions are exercised directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_vault":
		result, err = srv.searchVault(ctx, req)
	case "get_note_links":
		result, err = srv.getNoteLinks(ctx, req)
	case "rebuild_index":
		result, err = srv.rebuildIndex(ctx, req)
	case "index_status":
		result, err = srv.indexStatus(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestRebuildAndStatus(t *testing.T) {
	srv, vaultDir, _ := testServer(t)
	testutil.WriteNote(t, vaultDir, "note.md", "# Note\n\nSome body text.")

	r := callTool(t, srv, "rebuild_index", map[string]interface{}{})
	if r.IsError {
		t.Fatalf("rebuild failed: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), `"notes_indexed": 1`) {
		t.Errorf("rebuild result = %s", resultText(r))
	}

	r = callTool(t, srv, "index_status", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, `"indexed_notes": 1`) {
		t.Errorf("status result = %s", text)
	}
}

func TestSearchVault(t *testing.T) {
	srv, vaultDir, mem := testServer(t)
	mem.SetQueryTerms("kubernetes")
	testutil.WriteNote(t, vaultDir, "infra.md", "# Infra\n\nNotes on kubernetes upgrades.")

	callTool(t, srv, "rebuild_index", map[string]interface{}{})

	r := callTool(t, srv, "search_vault", map[string]interface{}{"query": "kubernetes"})
	if r.IsError {
		t.Fatalf("search failed: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "infra.md") {
		t.Errorf("search result = %s", resultText(r))
	}
}

func TestSearchVaultMissingQuery(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "search_vault", map[string]interface{}{})
	if !r.IsError {
		t.Error("missing query should be a tool error")
	}
}

func TestGetNoteLinks(t *testing.T) {
	srv, vaultDir, _ := testServer(t)
	testutil.WriteNote(t, vaultDir, "hub.md", "# Hub\n\nSee [[spoke]].")
	testutil.WriteNote(t, vaultDir, "spoke.md", "# Spoke\n\nPlain.")

	callTool(t, srv, "rebuild_index", map[string]interface{}{})

	r := callTool(t, srv, "get_note_links", map[string]interface{}{"path": "hub.md"})
	if r.IsError {
		t.Fatalf("links failed: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "spoke.md") {
		t.Errorf("links result = %s", resultText(r))
	}
}

func TestGetNoteLinksUnindexed(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "get_note_links", map[string]interface{}{"path": "ghost.md"})
	if !r.IsError {
		t.Error("unindexed note should be a tool error")
	}
	if !strings.Contains(resultText(r), "not indexed") {
		t.Errorf("error text = %q", resultText(r))
	}
}
