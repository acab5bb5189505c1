package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func pathProperty(desc string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": desc,
	}
}

// initializeTool returns the tool definition for initialize.
func initializeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "initialize",
		Description: "Create (or reinitialize) a ProjectIndex at path, writing its config.json and on-disk layout",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty("Absolute path to the project root"),
				"file_extensions": map[string]interface{}{
					"type":        "array",
					"description": "File extensions the Path Filter admits, e.g. ['.go', '.py']. Defaults to the built-in set.",
					"items":       map[string]interface{}{"type": "string"},
				},
				"similarity_threshold": map[string]interface{}{
					"type":        "number",
					"description": "Default similarity floor for search (0.0-1.0)",
				},
			},
			Required: []string{"path"},
		},
	}
}

// indexProjectTool returns the tool definition for index_project.
func indexProjectTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_project",
		Description: "Run a full incremental index over a project's files",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty("Absolute path to an initialized project root"),
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "Bypass the file-hash skip and reprocess every candidate",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// indexPathTool returns the tool definition for index_path.
func indexPathTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_path",
		Description: "Re-index a single project-relative file",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty("Absolute path to an initialized project root"),
				"file": map[string]interface{}{
					"type":        "string",
					"description": "Project-relative path of the file to index",
				},
			},
			Required: []string{"path", "file"},
		},
	}
}

// removePathTool returns the tool definition for remove_path.
func removePathTool() mcp.Tool {
	return mcp.Tool{
		Name:        "remove_path",
		Description: "Remove a project-relative file's chunks and metadata record (its relationship edges are kept)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty("Absolute path to an initialized project root"),
				"file": map[string]interface{}{
					"type":        "string",
					"description": "Project-relative path of the file to remove",
				},
			},
			Required: []string{"path", "file"},
		},
	}
}

// searchTool returns the tool definition for search.
func searchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search",
		Description: "Search the project's indexed chunks by natural-language or symbol-like query text",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path":  pathProperty("Absolute path to an initialized project root"),
				"query": map[string]interface{}{"type": "string", "description": "Query text"},
				"k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results",
					"default":     10,
				},
				"languages": map[string]interface{}{
					"type":        "array",
					"description": "Restrict to these languages",
					"items":       map[string]interface{}{"type": "string"},
				},
				"path_prefix": map[string]interface{}{
					"type":        "string",
					"description": "Restrict to chunks whose file path has this prefix",
				},
				"threshold": map[string]interface{}{
					"type":        "number",
					"description": "Override the adaptive similarity threshold",
				},
				"enrich_context": map[string]interface{}{
					"type":        "boolean",
					"description": "Include sibling-chunk context in each result",
					"default":     false,
				},
			},
			Required: []string{"path", "query"},
		},
	}
}

// searchSimilarTool returns the tool definition for search_similar.
func searchSimilarTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_similar",
		Description: "Find chunks similar to a known chunk id or a project-relative file path",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty("Absolute path to an initialized project root"),
				"chunk_id_or_path": map[string]interface{}{
					"type":        "string",
					"description": "A known chunk id, or a project-relative file path to average that file's chunks",
				},
				"k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results",
					"default":     10,
				},
			},
			Required: []string{"path", "chunk_id_or_path"},
		},
	}
}

// getStatusTool returns the tool definition for get_status.
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report a project's indexed state: chunk/embedding/file counts and store size",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty("Absolute path to an initialized project root"),
			},
			Required: []string{"path"},
		},
	}
}

// resetTool returns the tool definition for reset.
func resetTool() mcp.Tool {
	return mcp.Tool{
		Name:        "reset",
		Description: "Discard a project's indexed state (chunks, embeddings, relationships, metadata) without touching its config",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty("Absolute path to an initialized project root"),
			},
			Required: []string{"path"},
		},
	}
}
