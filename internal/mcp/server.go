package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"

	"github.com/vecsync/vecsync/internal/embedder"
	"github.com/vecsync/vecsync/internal/ingest"
	"github.com/vecsync/vecsync/internal/searcher"
	"github.com/vecsync/vecsync/internal/vectorstore"
)

const (
	// ServerName is the MCP server name
	ServerName = "vecsync"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies.
type Server struct {
	mcp      *server.MCPServer
	store    vectorstore.Store
	engine   *ingest.Engine
	searcher *searcher.Searcher
}

// NewServer creates an MCP server exposing the sync engine and retrieval
// over stdio.
func NewServer(store vectorstore.Store, emb embedder.Embedder, engine *ingest.Engine) (*Server, error) {
	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		store:    store,
		engine:   engine,
		searcher: searcher.New(store, emb),
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown. The
// injected store and embedder stay open; the caller owns their lifecycle.
func (s *Server) Serve(ctx context.Context) error {
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	s.mcp.AddTool(syncFolderTool(), s.handleSyncFolder)
	s.mcp.AddTool(searchIndexTool(), s.handleSearchIndex)
	s.mcp.AddTool(indexStatusTool(), s.handleIndexStatus)
	return nil
}
