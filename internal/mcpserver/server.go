// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes VaultBridge tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/openclaw/vaultbridge/internal/apperr"
	"github.com/openclaw/vaultbridge/internal/indexer"
	"github.com/openclaw/vaultbridge/internal/search"
)

// Server wraps the MCP server with VaultBridge tools.
type Server struct {
	mcp    *server.MCPServer
	search *search.Service
	index  *indexer.Service
}

// New creates a new MCP server with all VaultBridge tools registered.
func New(searchSvc *search.Service, indexSvc *indexer.Service) *Server {
	s := &Server{search: searchSvc, index: indexSvc}

	s.mcp = server.NewMCPServer(
		"VaultBridge",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_vault",
		mcp.WithDescription("Hybrid semantic + keyword search over the vault. "+
			"Returns ranked chunks plus notes related to the results through wikilinks."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural-language search query")),
		mcp.WithNumber("top_k", mcp.Description("Maximum number of results (default 5)")),
	), s.searchVault)

	s.mcp.AddTool(mcp.NewTool("get_note_links",
		mcp.WithDescription("Return the outgoing links and backlinks of a note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative note path (e.g. folder/note.md)")),
	), s.getNoteLinks)

	s.mcp.AddTool(mcp.NewTool("rebuild_index",
		mcp.WithDescription("Re-index every note in the vault from scratch. "+
			"Fails if a rebuild is already running."),
	), s.rebuildIndex)

	s.mcp.AddTool(mcp.NewTool("index_status",
		mcp.WithDescription("Report index statistics: note and chunk counts, "+
			"watcher state, and vector store health."),
	), s.indexStatus)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchVault(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	topK := req.GetInt("top_k", 0)

	resp, err := s.search.Search(ctx, search.Request{
		Query:          query,
		TopK:           topK,
		IncludeRelated: true,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(resp, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getNoteLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	links, err := s.search.Links(ctx, path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not indexed: %s", path)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(links, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) rebuildIndex(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary, err := s.index.RebuildAll(ctx)
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return mcp.NewToolResultError("a rebuild is already in progress"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(summary, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) indexStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(s.index.Status(ctx), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
