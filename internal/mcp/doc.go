// Package mcp implements a reference Model Context Protocol (MCP)
// server over the ProjectIndex core in internal/project.
//
// It registers eight tools, one per public operation an external
// collaborator (an AI coding assistant) needs: initialize,
// index_project, index_path, remove_path, search, search_similar,
// get_status, reset. Every handler does nothing but validate its
// JSON-RPC arguments and call straight into internal/project — no
// indexing or search logic lives in this package.
//
// # Protocol overview
//
// MCP is JSON-RPC 2.0 over stdio:
//
//	Client → Server: {"method": "tools/call", "params": {"name": "search", "arguments": {...}}}
//	Server → Client: {"result": {...}}
//
// # Multi-project sessions
//
// Every tool call names the project it targets by absolute path in
// its "path" argument, since MCP has no notion of a current working
// directory. Server keeps a small cache of already-opened
// *project.Index values keyed by that path rather than assuming one
// project per process.
//
// # Tool: initialize
//
//	{"path": "/repo", "file_extensions": [".go", ".py"], "similarity_threshold": 0.4}
//
// # Tool: search
//
//	{"path": "/repo", "query": "user authentication logic", "k": 10, "languages": ["go"]}
//
//	{"results": [{"rank": 1, "final_score": 0.87, "name": "AuthenticateUser",
//	  "path": "internal/auth/service.go", "start_line": 45, "end_line": 72, "content": "..."}]}
//
// # Error handling
//
// Errors surface as MCPError values carrying a JSON-RPC-style code:
// -32602 invalid params (including a ConfigError, such as a project
// that was never initialized), -32603 internal error, -32001 project
// not found/unavailable (a Vector Store or Relationship Store open
// failure). ErrorCodeNotInitialized (-32003) is declared but no
// handler returns it.
//
// # Logging
//
// stdout is reserved for the MCP protocol; diagnostics go to stderr
// the same way the CLI adapter's do.
package mcp
