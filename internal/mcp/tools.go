package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/mark3labs/mcp-go/mcp"

	"github.com/anthropic-exercise/codeintel/internal/config"
	"github.com/anthropic-exercise/codeintel/internal/indexer"
	"github.com/anthropic-exercise/codeintel/internal/project"
	"github.com/anthropic-exercise/codeintel/internal/searcher"
	"github.com/anthropic-exercise/codeintel/internal/vectorstore"
	"github.com/anthropic-exercise/codeintel/pkg/types"
)

// MCP error codes, following the JSON-RPC reserved-range convention
// (-32602/-32603 are JSON-RPC standard; -3200x is this server's own
// range).
const (
	ErrorCodeInvalidParams   = -32602
	ErrorCodeInternalError   = -32603
	ErrorCodeProjectNotFound = -32001
	ErrorCodeNotInitialized  = -32003
)

// MCPError is an MCP protocol error carrying a JSON-RPC code.
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string { return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message) }

func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{Code: code, Message: message, Data: data}
}

func requireArgs(request mcpsdk.CallToolRequest) (map[string]interface{}, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	return args, nil
}

func requireStringArg(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param": key, "reason": "missing or empty",
		})
	}
	return v, nil
}

func (s *Server) handleInitialize(ctx context.Context, request mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	args, err := requireArgs(request)
	if err != nil {
		return nil, err
	}
	root, err := requireStringArg(args, "path")
	if err != nil {
		return nil, err
	}

	cfg := config.DefaultConfig()
	if exts, ok := args["file_extensions"].([]interface{}); ok {
		cfg.FileExtensions = make([]string, 0, len(exts))
		for _, e := range exts {
			if str, ok := e.(string); ok {
				cfg.FileExtensions = append(cfg.FileExtensions, str)
			}
		}
	}
	if th, ok := args["similarity_threshold"].(float64); ok {
		cfg.SimilarityThreshold = th
	}

	p, err := project.Initialize(root, cfg)
	if err != nil {
		return nil, mapProjectError(err, "initialize failed")
	}
	s.rememberProject(root, p)

	return mcpsdk.NewToolResultText(formatJSON(map[string]interface{}{
		"initialized": true,
		"path":        p.Root(),
	})), nil
}

func (s *Server) handleIndexProject(ctx context.Context, request mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	args, err := requireArgs(request)
	if err != nil {
		return nil, err
	}
	root, err := requireStringArg(args, "path")
	if err != nil {
		return nil, err
	}
	force := getBoolDefault(args, "force", false)

	p, err := s.openProject(root)
	if err != nil {
		return nil, mapProjectError(err, "open project failed")
	}

	stats, err := p.IndexProject(ctx, force, indexer.ProgressCallbacks{})
	if err != nil {
		return nil, mapProjectError(err, "index_project failed")
	}

	return mcpsdk.NewToolResultText(formatJSON(map[string]interface{}{
		"files_indexed":  stats.FilesIndexed,
		"files_skipped":  stats.FilesSkipped,
		"files_failed":   stats.FilesFailed,
		"chunks_added":   stats.ChunksAdded,
		"chunks_updated": stats.ChunksUpdated,
		"chunks_deleted": stats.ChunksDeleted,
		"duration_ms":    stats.Duration.Milliseconds(),
		"errors":         stats.Errors,
	})), nil
}

func (s *Server) handleIndexPath(ctx context.Context, request mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	args, err := requireArgs(request)
	if err != nil {
		return nil, err
	}
	root, err := requireStringArg(args, "path")
	if err != nil {
		return nil, err
	}
	file, err := requireStringArg(args, "file")
	if err != nil {
		return nil, err
	}

	p, err := s.openProject(root)
	if err != nil {
		return nil, mapProjectError(err, "open project failed")
	}

	stats, err := p.IndexPath(ctx, file, indexer.ProgressCallbacks{})
	if err != nil {
		return nil, mapProjectError(err, "index_path failed")
	}

	return mcpsdk.NewToolResultText(formatJSON(map[string]interface{}{
		"added":   stats.Added,
		"updated": stats.Updated,
		"deleted": stats.Deleted,
	})), nil
}

func (s *Server) handleRemovePath(ctx context.Context, request mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	args, err := requireArgs(request)
	if err != nil {
		return nil, err
	}
	root, err := requireStringArg(args, "path")
	if err != nil {
		return nil, err
	}
	file, err := requireStringArg(args, "file")
	if err != nil {
		return nil, err
	}

	p, err := s.openProject(root)
	if err != nil {
		return nil, mapProjectError(err, "open project failed")
	}
	if err := p.RemovePath(ctx, file); err != nil {
		return nil, mapProjectError(err, "remove_path failed")
	}

	return mcpsdk.NewToolResultText(formatJSON(map[string]interface{}{"removed": file})), nil
}

func (s *Server) handleSearch(ctx context.Context, request mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	args, err := requireArgs(request)
	if err != nil {
		return nil, err
	}
	root, err := requireStringArg(args, "path")
	if err != nil {
		return nil, err
	}
	query, err := requireStringArg(args, "query")
	if err != nil {
		return nil, err
	}
	k := getIntDefault(args, "k", 10)

	var filter vectorstore.Filter
	if langs, ok := args["languages"].([]interface{}); ok {
		for _, l := range langs {
			if str, ok := l.(string); ok {
				filter.Languages = append(filter.Languages, str)
			}
		}
	}
	filter.PathPrefix = getStringDefault(args, "path_prefix", "")

	var opts searcher.Options
	opts.EnrichContext = getBoolDefault(args, "enrich_context", false)
	if th, ok := args["threshold"].(float64); ok {
		opts.Threshold = &th
	}

	p, err := s.openProject(root)
	if err != nil {
		return nil, mapProjectError(err, "open project failed")
	}

	results, err := p.Search(ctx, query, k, filter, opts)
	if err != nil {
		return nil, mapProjectError(err, "search failed")
	}

	return mcpsdk.NewToolResultText(formatJSON(map[string]interface{}{
		"results": resultsToJSON(results),
	})), nil
}

func (s *Server) handleSearchSimilar(ctx context.Context, request mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	args, err := requireArgs(request)
	if err != nil {
		return nil, err
	}
	root, err := requireStringArg(args, "path")
	if err != nil {
		return nil, err
	}
	ref, err := requireStringArg(args, "chunk_id_or_path")
	if err != nil {
		return nil, err
	}
	k := getIntDefault(args, "k", 10)

	p, err := s.openProject(root)
	if err != nil {
		return nil, mapProjectError(err, "open project failed")
	}

	results, err := p.SearchSimilar(ctx, ref, k, searcher.Options{})
	if err != nil {
		return nil, mapProjectError(err, "search_similar failed")
	}

	return mcpsdk.NewToolResultText(formatJSON(map[string]interface{}{
		"results": resultsToJSON(results),
	})), nil
}

func (s *Server) handleGetStatus(ctx context.Context, request mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	args, err := requireArgs(request)
	if err != nil {
		return nil, err
	}
	root, err := requireStringArg(args, "path")
	if err != nil {
		return nil, err
	}

	if !project.IsInitialized(root) {
		return mcpsdk.NewToolResultText(formatJSON(map[string]interface{}{
			"initialized": false,
			"path":        root,
			"message":     "project not initialized; call the initialize tool first",
		})), nil
	}

	p, err := s.openProject(root)
	if err != nil {
		return nil, mapProjectError(err, "open project failed")
	}
	status, err := p.Status(ctx)
	if err != nil {
		return nil, mapProjectError(err, "get_status failed")
	}

	return mcpsdk.NewToolResultText(formatJSON(map[string]interface{}{
		"initialized":        status.Initialized,
		"path":               status.Root,
		"embedding_model":    status.EmbeddingModel,
		"embedding_provider": status.EmbeddingProvider,
		"chunk_count":        status.ChunkCount,
		"embedding_count":    status.EmbeddingCount,
		"file_count":         status.FileCount,
		"size_bytes":         status.SizeBytes,
		"schema_version":     status.SchemaVersion,
	})), nil
}

func (s *Server) handleReset(ctx context.Context, request mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	args, err := requireArgs(request)
	if err != nil {
		return nil, err
	}
	root, err := requireStringArg(args, "path")
	if err != nil {
		return nil, err
	}

	p, err := s.openProject(root)
	if err != nil {
		return nil, mapProjectError(err, "open project failed")
	}
	if err := p.Reset(); err != nil {
		return nil, mapProjectError(err, "reset failed")
	}

	return mcpsdk.NewToolResultText(formatJSON(map[string]interface{}{"reset": true})), nil
}

// resultsToJSON renders SearchResult values the same shape across
// search and search_similar, so a client never has to branch on which
// tool produced them.
func resultsToJSON(results []types.SearchResult) []map[string]interface{} {
	out := make([]map[string]interface{}, len(results))
	for i, r := range results {
		entry := map[string]interface{}{
			"rank":                r.Rank,
			"chunk_id":            r.ChunkID,
			"final_score":         r.FinalScore,
			"vector_score":        r.VectorScore,
			"quality_score":       r.QualityScore,
			"structural_bonus":    r.StructuralBonus,
			"boilerplate_penalty": r.BoilerplatePenalty,
			"content":             r.Content,
		}
		if r.Chunk != nil {
			entry["name"] = r.Chunk.Name
			entry["kind"] = r.Chunk.Kind
		}
		if r.File != nil {
			entry["path"] = r.File.Path
			entry["language"] = r.File.Language
			entry["start_line"] = r.File.StartLine
			entry["end_line"] = r.File.EndLine
		}
		if r.Context != "" {
			entry["context"] = r.Context
		}
		out[i] = entry
	}
	return out
}

// mapProjectError translates a core sentinel error into an MCP error
// code, preserving the underlying message as Data so a client can
// still see what failed.
func mapProjectError(err error, message string) error {
	code := ErrorCodeInternalError
	switch {
	case errors.Is(err, types.ErrConfig):
		code = ErrorCodeInvalidParams
	case errors.Is(err, types.ErrStoreUnavailable), errors.Is(err, types.ErrIntegrity):
		code = ErrorCodeProjectNotFound
	}
	return newMCPError(code, message, map[string]interface{}{"error": err.Error()})
}

// formatJSON formats a map as indented JSON.
func formatJSON(data map[string]interface{}) string {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(raw)
}

func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return defaultValue
}

func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	if v, ok := args[key].(int); ok {
		return v
	}
	return defaultValue
}

func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return defaultValue
}
