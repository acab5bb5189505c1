package indexer

import (
	"go/parser"
	"go/token"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/anthropic-exercise/codeintel/pkg/types"
)

// fileNodeID returns the synthetic anchor chunk id standing in for
// "this file" in the Relationship Store: imports/imported_by edges
// connect files, not individual chunks, and a file whose parser never
// emits a KindFileChunk root (any Go file with at least one
// declaration, for instance) would otherwise have no id to hang an
// import edge on.
func fileNodeID(relPath string) string {
	return types.DeriveID(relPath, 0, 0, types.KindFileChunk)
}

// symbolTable maps a callable name to the chunk ids that define it,
// accumulated across every file this Indexer processes during its
// process lifetime. calls/called_by resolution is therefore
// best-effort and session-scoped in two ways: a reference to a symbol
// whose defining file hasn't been (re-)indexed yet this run is missed,
// and two same-named functions in different files are indistinguishable
// by name alone. Both are accepted looseness: unresolved calls are
// simply dropped rather than blocking the index.
type symbolTable struct {
	mu  sync.RWMutex
	ids map[string][]string
}

func newSymbolTable() *symbolTable {
	return &symbolTable{ids: make(map[string][]string)}
}

func (t *symbolTable) register(chunks []*types.Chunk) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range chunks {
		if c.Kind != types.KindFunction && c.Kind != types.KindMethod || c.Name == "" {
			continue
		}
		ids := t.ids[c.Name]
		dup := false
		for _, existing := range ids {
			if existing == c.ID {
				dup = true
				break
			}
		}
		if !dup {
			t.ids[c.Name] = append(ids, c.ID)
		}
	}
}

func (t *symbolTable) lookup(name string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ids[name]
}

// callRefPattern matches a bare identifier immediately followed by an
// opening paren: a crude but language-agnostic stand-in for "this looks
// like a call", in the spirit of the original semantic analyzer's own
// best-effort extract_function_calls (regex over source text rather
// than a resolved AST).
var callRefPattern = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

// deriveCalls scans each chunk's content for call-like identifiers and
// resolves them against table, producing a RelCalls edge per resolved
// target. Ambiguous names (more than one defining chunk) fan out to
// every candidate; the Relationship Store's idempotent upsert means a
// repeated call site within the same chunk collapses to one edge.
func deriveCalls(chunks []*types.Chunk, table *symbolTable) []types.Relationship {
	var out []types.Relationship
	for _, c := range chunks {
		if c.Content == "" {
			continue
		}
		seen := make(map[string]bool)
		for _, m := range callRefPattern.FindAllStringSubmatch(c.Content, -1) {
			name := m[1]
			if name == c.Name {
				continue // a function's own signature/doc mentioning its name isn't a call
			}
			for _, targetID := range table.lookup(name) {
				if targetID == c.ID || seen[targetID] {
					continue
				}
				seen[targetID] = true
				out = append(out, types.Relationship{
					SourceChunkID: c.ID,
					TargetChunkID: targetID,
					Kind:          types.RelCalls,
					Weight:        1.0,
				})
			}
		}
	}
	return out
}

// deriveContains builds the containment edges from each chunk's
// ParentID: a chunk with a parent links parent->chunk directly; a
// top-level chunk (no parser-assigned parent) links the file's
// synthetic anchor node to it, so siblings() has a containment root to
// traverse even for files with no class/module wrapper.
func deriveContains(relPath string, chunks []*types.Chunk) []types.Relationship {
	fileID := fileNodeID(relPath)
	out := make([]types.Relationship, 0, len(chunks))
	for _, c := range chunks {
		parent := c.ParentID
		if parent == "" {
			parent = fileID
		}
		out = append(out, types.Relationship{
			SourceChunkID: parent,
			TargetChunkID: c.ID,
			Kind:          types.RelContains,
			Weight:        1.0,
		})
	}
	return out
}

var (
	pythonImportPattern = regexp.MustCompile(`(?m)^\s*(?:from\s+([.\w]+)\s+import|import\s+([.\w]+))`)
	jsImportPattern     = regexp.MustCompile(`(?m)(?:import[^'"]*from\s*|\brequire\s*\()\s*['"]([^'"]+)['"]`)
)

// extractImportPaths pulls raw, unresolved import targets out of
// content using per-language extraction: go/parser's own import list
// for Go, and single-pass regexes for the dynamic languages, favoring
// a text-scan approach over a full parser per language.
func extractImportPaths(language string, content []byte) []string {
	switch language {
	case "go":
		fset := token.NewFileSet()
		file, err := parser.ParseFile(fset, "", content, parser.ImportsOnly)
		if err != nil {
			return nil
		}
		paths := make([]string, 0, len(file.Imports))
		for _, imp := range file.Imports {
			paths = append(paths, strings.Trim(imp.Path.Value, `"`))
		}
		return paths
	case "python":
		var paths []string
		for _, m := range pythonImportPattern.FindAllStringSubmatch(string(content), -1) {
			if m[1] != "" {
				paths = append(paths, m[1])
			} else if m[2] != "" {
				paths = append(paths, m[2])
			}
		}
		return paths
	case "javascript", "typescript":
		var paths []string
		for _, m := range jsImportPattern.FindAllStringSubmatch(string(content), -1) {
			paths = append(paths, m[1])
		}
		return paths
	default:
		return nil
	}
}

// resolveImportTarget maps a raw import string to the project-relative
// path of another indexed file, when that's possible without a full
// module/package resolver: Go imports under moduleName resolve to the
// first known file in the corresponding directory; dynamic-language
// relative imports ("./x", "../y") resolve by trying the language's
// usual extensions and index-file convention. Bare package imports
// (stdlib, third-party, non-relative) are left unresolved rather than
// guessed at.
func resolveImportTarget(fromRelPath, importPath, language, moduleName string, knownPaths map[string]bool) (string, bool) {
	dir := filepath.ToSlash(filepath.Dir(fromRelPath))

	switch language {
	case "go":
		if moduleName == "" || !strings.HasPrefix(importPath, moduleName) {
			return "", false
		}
		pkgRel := strings.TrimPrefix(strings.TrimPrefix(importPath, moduleName), "/")
		return firstFileInDir(pkgRel, knownPaths)
	case "python":
		rel := strings.ReplaceAll(strings.TrimLeft(importPath, "."), ".", "/")
		if candidate := filepath.ToSlash(filepath.Join(dir, rel)) + ".py"; knownPaths[candidate] {
			return candidate, true
		}
		if candidate := filepath.ToSlash(filepath.Join(dir, rel, "__init__.py")); knownPaths[candidate] {
			return candidate, true
		}
		return "", false
	case "javascript", "typescript":
		if !strings.HasPrefix(importPath, ".") {
			return "", false
		}
		base := filepath.ToSlash(filepath.Join(dir, importPath))
		for _, suffix := range []string{".ts", ".tsx", ".js", ".jsx", "/index.ts", "/index.tsx", "/index.js"} {
			if candidate := base + suffix; knownPaths[candidate] {
				return candidate, true
			}
		}
		return "", false
	default:
		return "", false
	}
}

// firstFileInDir returns the lexicographically first known path whose
// directory matches dirRel, a deterministic stand-in for "the package
// at this path" since Go imports name a directory, not a file.
func firstFileInDir(dirRel string, knownPaths map[string]bool) (string, bool) {
	var best string
	for p := range knownPaths {
		if filepath.ToSlash(filepath.Dir(p)) == dirRel {
			if best == "" || p < best {
				best = p
			}
		}
	}
	return best, best != ""
}

// deriveImports resolves relPath's import statements against the
// project's other known paths and returns one RelImports edge per
// resolved target, anchored on each file's synthetic node id.
func deriveImports(relPath, language string, content []byte, moduleName string, knownPaths map[string]bool) []types.Relationship {
	raw := extractImportPaths(language, content)
	if len(raw) == 0 {
		return nil
	}
	fromID := fileNodeID(relPath)
	seen := make(map[string]bool)
	var out []types.Relationship
	for _, imp := range raw {
		target, ok := resolveImportTarget(relPath, imp, language, moduleName, knownPaths)
		if !ok || target == relPath || seen[target] {
			continue
		}
		seen[target] = true
		out = append(out, types.Relationship{
			SourceChunkID: fromID,
			TargetChunkID: fileNodeID(target),
			Kind:          types.RelImports,
			Weight:        1.0,
		})
	}
	return out
}
