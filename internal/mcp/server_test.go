package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	mcpsdk "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callRequest(name string, args map[string]interface{}) mcpsdk.CallToolRequest {
	var req mcpsdk.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func decodeResult(t *testing.T, res *mcpsdk.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := mcpsdk.AsTextContent(res.Content[0])
	require.True(t, ok, "result content must be text")

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func writeProjectFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestHandleInitializeCreatesProjectAndCachesIt(t *testing.T) {
	s, err := NewServer()
	require.NoError(t, err)
	t.Cleanup(s.closeAll)

	root := t.TempDir()
	res, err := s.handleInitialize(context.Background(), callRequest("initialize", map[string]interface{}{
		"path": root,
	}))
	require.NoError(t, err)
	out := decodeResult(t, res)
	assert.Equal(t, true, out["initialized"])

	s.mu.Lock()
	_, cached := s.projects[mustAbs(t, root)]
	s.mu.Unlock()
	assert.True(t, cached, "initialize should cache the opened project")
}

func TestHandleIndexProjectAndSearchRoundTrip(t *testing.T) {
	s, err := NewServer()
	require.NoError(t, err)
	t.Cleanup(s.closeAll)

	root := t.TempDir()
	writeProjectFile(t, root, "greet.go", `package sample

func Greet(name string) string {
	return "hello " + name
}
`)

	_, err = s.handleInitialize(context.Background(), callRequest("initialize", map[string]interface{}{"path": root}))
	require.NoError(t, err)

	res, err := s.handleIndexProject(context.Background(), callRequest("index_project", map[string]interface{}{"path": root}))
	require.NoError(t, err)
	out := decodeResult(t, res)
	assert.Equal(t, float64(1), out["files_indexed"])

	res, err = s.handleSearch(context.Background(), callRequest("search", map[string]interface{}{
		"path": root, "query": "Greet",
	}))
	require.NoError(t, err)
	out = decodeResult(t, res)
	results, ok := out["results"].([]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, results)
}

func TestHandleGetStatusReportsUninitializedBeforeInitialize(t *testing.T) {
	s, err := NewServer()
	require.NoError(t, err)
	t.Cleanup(s.closeAll)

	root := t.TempDir()
	res, err := s.handleGetStatus(context.Background(), callRequest("get_status", map[string]interface{}{"path": root}))
	require.NoError(t, err)
	out := decodeResult(t, res)
	assert.Equal(t, false, out["initialized"])
}

func TestHandleSearchRequiresQuery(t *testing.T) {
	s, err := NewServer()
	require.NoError(t, err)
	t.Cleanup(s.closeAll)

	root := t.TempDir()
	_, err = s.handleInitialize(context.Background(), callRequest("initialize", map[string]interface{}{"path": root}))
	require.NoError(t, err)

	_, err = s.handleSearch(context.Background(), callRequest("search", map[string]interface{}{"path": root}))
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestHandleResetClearsIndexedState(t *testing.T) {
	s, err := NewServer()
	require.NoError(t, err)
	t.Cleanup(s.closeAll)

	root := t.TempDir()
	writeProjectFile(t, root, "greet.go", `package sample

func Greet(name string) string { return name }
`)
	_, err = s.handleInitialize(context.Background(), callRequest("initialize", map[string]interface{}{"path": root}))
	require.NoError(t, err)
	_, err = s.handleIndexProject(context.Background(), callRequest("index_project", map[string]interface{}{"path": root}))
	require.NoError(t, err)

	res, err := s.handleReset(context.Background(), callRequest("reset", map[string]interface{}{"path": root}))
	require.NoError(t, err)
	out := decodeResult(t, res)
	assert.Equal(t, true, out["reset"])

	res, err = s.handleGetStatus(context.Background(), callRequest("get_status", map[string]interface{}{"path": root}))
	require.NoError(t, err)
	out = decodeResult(t, res)
	assert.Equal(t, float64(0), out["chunk_count"])
}

func mustAbs(t *testing.T, path string) string {
	t.Helper()
	abs, err := filepath.Abs(path)
	require.NoError(t, err)
	return abs
}
