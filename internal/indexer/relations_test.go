package indexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthropic-exercise/codeintel/pkg/types"
)

func TestDeriveContainsAnchorsTopLevelUnderFileNode(t *testing.T) {
	class := &types.Chunk{ID: "class1", Kind: types.KindClass}
	method := &types.Chunk{ID: "method1", Kind: types.KindMethod, ParentID: "class1"}
	fn := &types.Chunk{ID: "fn1", Kind: types.KindFunction}

	edges := deriveContains("pkg/foo.go", []*types.Chunk{class, method, fn})
	require.Len(t, edges, 3)

	fileID := fileNodeID("pkg/foo.go")
	var sawFileToClass, sawClassToMethod, sawFileToFn bool
	for _, e := range edges {
		switch {
		case e.SourceChunkID == fileID && e.TargetChunkID == "class1":
			sawFileToClass = true
		case e.SourceChunkID == "class1" && e.TargetChunkID == "method1":
			sawClassToMethod = true
		case e.SourceChunkID == fileID && e.TargetChunkID == "fn1":
			sawFileToFn = true
		}
	}
	assert.True(t, sawFileToClass, "a parentless chunk is anchored under the file node")
	assert.True(t, sawClassToMethod, "a chunk with a parser-assigned parent links directly to it")
	assert.True(t, sawFileToFn)
}

func TestDeriveCallsResolvesKnownSymbolAndSkipsSelfReference(t *testing.T) {
	table := newSymbolTable()
	callee := &types.Chunk{ID: "callee", Kind: types.KindFunction, Name: "Greet", Content: "func Greet() {}"}
	caller := &types.Chunk{ID: "caller", Kind: types.KindFunction, Name: "RunMain", Content: "func RunMain() { Greet() }"}
	table.register([]*types.Chunk{callee, caller})

	edges := deriveCalls([]*types.Chunk{callee, caller}, table)
	require.Len(t, edges, 1)
	assert.Equal(t, "caller", edges[0].SourceChunkID)
	assert.Equal(t, "callee", edges[0].TargetChunkID)
	assert.Equal(t, types.RelCalls, edges[0].Kind)
}

func TestDeriveCallsDropsUnresolvedNames(t *testing.T) {
	table := newSymbolTable()
	caller := &types.Chunk{ID: "caller", Kind: types.KindFunction, Name: "RunMain", Content: "func RunMain() { fmt.Println(\"hi\") }"}
	table.register([]*types.Chunk{caller})

	edges := deriveCalls([]*types.Chunk{caller}, table)
	assert.Empty(t, edges, "a call to a name with no known definition is dropped, not guessed at")
}

func TestResolveImportTargetGoWithinModule(t *testing.T) {
	known := map[string]bool{"internal/foo/foo.go": true}
	target, ok := resolveImportTarget("cmd/app/main.go", "example.com/proj/internal/foo", "go", "example.com/proj", known)
	require.True(t, ok)
	assert.Equal(t, "internal/foo/foo.go", target)
}

func TestResolveImportTargetGoOutsideModuleIsUnresolved(t *testing.T) {
	known := map[string]bool{"internal/foo/foo.go": true}
	_, ok := resolveImportTarget("cmd/app/main.go", "github.com/other/pkg", "go", "example.com/proj", known)
	assert.False(t, ok)
}

func TestResolveImportTargetPythonRelative(t *testing.T) {
	known := map[string]bool{"pkg/util.py": true}
	target, ok := resolveImportTarget("pkg/main.py", "util", "python", "", known)
	require.True(t, ok)
	assert.Equal(t, "pkg/util.py", target)
}

func TestResolveImportTargetJSRelative(t *testing.T) {
	known := map[string]bool{"src/helpers.ts": true}
	target, ok := resolveImportTarget("src/app.ts", "./helpers", "typescript", "", known)
	require.True(t, ok)
	assert.Equal(t, "src/helpers.ts", target)
}

func TestResolveImportTargetJSBarePackageIsUnresolved(t *testing.T) {
	known := map[string]bool{"src/helpers.ts": true}
	_, ok := resolveImportTarget("src/app.ts", "lodash", "javascript", "", known)
	assert.False(t, ok)
}

func TestExtractImportPathsGo(t *testing.T) {
	content := []byte(`package main

import (
	"fmt"
	"example.com/proj/internal/foo"
)

func main() {}
`)
	paths := extractImportPaths("go", content)
	assert.ElementsMatch(t, []string{"fmt", "example.com/proj/internal/foo"}, paths)
}

func TestExtractImportPathsPython(t *testing.T) {
	content := []byte("from pkg import util\nimport os\n")
	paths := extractImportPaths("python", content)
	assert.ElementsMatch(t, []string{"pkg", "os"}, paths)
}
