// Package parser implements the Language Parser Registry: a tagged
// variant dispatch (per the governing design note, not duck typing)
// from file extension to a Parser strategy, plus the strategies
// themselves (go/ast, tree-sitter, regex fallback, heading-section
// text chunking) and the quality metrics shared across all of them.
package parser

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/anthropic-exercise/codeintel/pkg/types"
)

// Parser is the capability set every language variant satisfies. A
// Parser must be re-entrant and must not retain state across calls —
// concrete variants hold only immutable configuration (grammars,
// queries), never per-file state, so one instance is shared across the
// Indexer's worker pool.
type Parser interface {
	// EmitChunks parses content (the exact bytes of path) and returns
	// chunks at function/method/class granularity when the language
	// supports it, or section/paragraph/file chunks for text-mode
	// parsers. Chunk.ID, ContentHash and ParseQuality are always
	// populated on return; Quality is computed for function, method,
	// class and block chunks, while section, paragraph and root file
	// chunks carry a zero Quality.
	EmitChunks(path string, content []byte) ([]*types.Chunk, error)

	// ExtractDocstring returns the leading documentation comment (or
	// docstring literal) immediately preceding the span [startLine,
	// endLine] of content, or "" if none is present. Exposed
	// independently of EmitChunks so the Search Engine's enrichment
	// path can re-derive a docstring without re-chunking a file.
	ExtractDocstring(content []byte, startLine, endLine int) string

	// EstimateQuality computes the deterministic quality metrics for
	// one chunk's body, independent of how the chunk was produced.
	EstimateQuality(body string, kind types.ChunkKind) types.Quality
}

// Registry maps a file extension to the Parser variant that handles
// it. Lookups are safe for concurrent use; Register is expected to
// happen once at startup before any indexing begins.
type Registry struct {
	mu        sync.RWMutex
	byExt     map[string]Parser
	langByExt map[string]string
	fallback  Parser
}

// NewRegistry returns an empty registry. Callers should follow with
// RegisterDefaults or their own Register calls before indexing.
func NewRegistry() *Registry {
	return &Registry{
		byExt:     make(map[string]Parser),
		langByExt: make(map[string]string),
	}
}

// Register associates every extension in exts (including the leading
// dot, e.g. ".go") with language and p.
func (r *Registry) Register(language string, exts []string, p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range exts {
		r.byExt[strings.ToLower(ext)] = p
		r.langByExt[strings.ToLower(ext)] = language
	}
}

// SetFallback installs the regex-based chunker used when no extension
// matches, or when the matched parser itself fails structurally.
func (r *Registry) SetFallback(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = p
}

// SetTextParser installs p (the Markdown or plain-text heading-section
// chunker) for every extension in exts.
func (r *Registry) SetTextParser(p Parser, exts []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range exts {
		r.byExt[strings.ToLower(ext)] = p
		r.langByExt[strings.ToLower(ext)] = "text"
	}
}

// Lookup returns the Parser variant registered for path's extension,
// the language name, and whether a structural (non-fallback) variant
// was found.
func (r *Registry) Lookup(path string) (p Parser, language string, ok bool) {
	ext := strings.ToLower(filepath.Ext(path))
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, found := r.byExt[ext]; found {
		return p, r.langByExt[ext], true
	}
	return r.fallback, "unknown", false
}

// Fallback returns the registry's regex-based fallback parser, used by
// the Indexer when a structural parser's EmitChunks returns an error.
func (r *Registry) Fallback() Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallback
}

// ErrNoFallback is returned by Parse when no extension matched and no
// fallback parser was registered — a Registry configuration bug, not
// a per-file condition.
var ErrNoFallback = fmt.Errorf("parser: no fallback registered")

// Parse is the Registry's top-level entry point: look up path's
// variant, run it, and fall back to the regex chunker on structural
// failure. It never returns an error for a syntactically invalid file —
// EmitChunks variants degrade to a single invalid-quality root chunk
// instead.
func (r *Registry) Parse(path string, content []byte) ([]*types.Chunk, error) {
	p, _, ok := r.Lookup(path)
	if p == nil {
		if r.fallback == nil {
			return nil, ErrNoFallback
		}
		p = r.fallback
	}

	chunks, err := p.EmitChunks(path, content)
	if err != nil {
		if !ok || r.fallback == nil || p == r.fallback {
			return nil, fmt.Errorf("%w: %s: %v", types.ErrParse, path, err)
		}
		chunks, err = r.fallback.EmitChunks(path, content)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", types.ErrParse, path, err)
		}
	}
	return chunks, nil
}
