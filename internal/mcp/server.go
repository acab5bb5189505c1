package mcp

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/mark3labs/mcp-go/server"

	"github.com/anthropic-exercise/codeintel/internal/project"
)

// ServerName and ServerVersion identify this MCP server to its client.
const (
	ServerName    = "codeintel-mcp"
	ServerVersion = "1.0.0"
)

// Server is a thin MCP adapter over the ProjectIndex surface in
// internal/project: every tool handler does nothing but marshal
// JSON-RPC params into a ProjectIndex operation call. No indexing or
// search logic lives in this package.
//
// A client names the project it wants by absolute path on every call
// (MCP has no notion of "current directory"), so Server keeps a small
// cache of already-opened *project.Index values keyed by that path.
type Server struct {
	mcp *server.MCPServer

	mu       sync.Mutex
	projects map[string]*project.Index
}

// NewServer builds an MCP server with every tool registered.
func NewServer() (*Server, error) {
	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		projects: make(map[string]*project.Index),
	}
	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown.
func (s *Server) Serve(ctx context.Context) error {
	defer s.closeAll()
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(initializeTool(), s.handleInitialize)
	s.mcp.AddTool(indexProjectTool(), s.handleIndexProject)
	s.mcp.AddTool(indexPathTool(), s.handleIndexPath)
	s.mcp.AddTool(removePathTool(), s.handleRemovePath)
	s.mcp.AddTool(searchTool(), s.handleSearch)
	s.mcp.AddTool(searchSimilarTool(), s.handleSearchSimilar)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	s.mcp.AddTool(resetTool(), s.handleReset)
}

// openProject returns the cached *project.Index for root, opening it
// from disk on first use. root must already be initialized; callers
// reach this through every tool except initialize.
func (s *Server) openProject(root string) (*project.Index, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve path %s: %w", root, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.projects[root]; ok {
		return p, nil
	}
	p, err := project.Open(root)
	if err != nil {
		return nil, err
	}
	s.projects[root] = p
	return p, nil
}

// rememberProject caches an already-open *project.Index, e.g. right
// after handleInitialize creates one.
func (s *Server) rememberProject(root string, p *project.Index) {
	root, _ = filepath.Abs(root)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[root] = p
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.projects {
		_ = p.Close()
	}
}
