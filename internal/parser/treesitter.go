package parser

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/anthropic-exercise/codeintel/pkg/types"
)

// LanguageSpec configures one tree-sitter-backed Parser variant. The
// query must capture @chunk for the outer definition node and @name
// for its identifier (optional), following SloanGwaltney-synapse's
// chunker/registry.go convention.
type LanguageSpec struct {
	Language string
	Grammar  *sitter.Language
	Query    string

	// ClassNodeTypes are tree-sitter node type names that represent a
	// class/type definition — emitted as types.KindClass.
	ClassNodeTypes map[string]bool
	// MethodNodeTypes are node types unambiguously a method (languages
	// with a distinct grammar rule for it, e.g. Go/JS/TS). Emitted as
	// types.KindMethod without needing an ancestor walk.
	MethodNodeTypes map[string]bool

	// DefaultKind is the chunk kind given to a capture that is neither a
	// ClassNodeTypes nor a MethodNodeTypes match. Defaults to
	// types.KindFunction when left unset, which fits every language
	// variant except markup (HTML uses types.KindBlock).
	DefaultKind types.ChunkKind

	// LineCommentPrefixes are the leading-comment markers ExtractDocstring
	// scans for immediately above a chunk's start line.
	LineCommentPrefixes []string
	// DocstringAfterHeader, when true, also checks whether the first
	// statement inside the definition body is a bare string literal
	// (Python/Ruby-style docstring) and prefers it over a leading comment.
	DocstringAfterHeader bool
}

// maxChunkBytes is the size above which a definition counts as
// oversized, per SloanGwaltney-synapse's chunker.go. Nothing in this
// package splits an oversized chunk (see buildChunk).
const maxChunkBytes = 8192

// TreeSitterParser implements Parser for one LanguageSpec. The compiled
// query is built lazily on first use and cached, mirroring
// phobologic-repoguide's internal/lang `sync.Once` pattern; it holds no
// other per-file state.
type TreeSitterParser struct {
	spec LanguageSpec

	once     sync.Once
	query    *sitter.Query
	queryErr error
}

// NewTreeSitterParser returns the variant for spec.
func NewTreeSitterParser(spec LanguageSpec) *TreeSitterParser {
	return &TreeSitterParser{spec: spec}
}

func (p *TreeSitterParser) compiledQuery() (*sitter.Query, error) {
	p.once.Do(func() {
		p.query, p.queryErr = sitter.NewQuery([]byte(p.spec.Query), p.spec.Grammar)
	})
	return p.query, p.queryErr
}

type tsCapture struct {
	node      *sitter.Node
	nodeType  string
	name      string
	startByte uint32
	endByte   uint32
	startLine int
	endLine   int
}

// effectiveNodeType returns the node type used for Class/Method
// classification. Wrapper nodes — Python's decorated_definition and
// JS/TS's export_statement — carry no information of their own about
// whether they wrap a function or a class, so classification looks
// through to the wrapped declaration instead.
func effectiveNodeType(node *sitter.Node) string {
	switch node.Type() {
	case "decorated_definition":
		if def := node.ChildByFieldName("definition"); def != nil {
			return def.Type()
		}
	case "export_statement":
		if decl := node.ChildByFieldName("declaration"); decl != nil {
			return decl.Type()
		}
	}
	return node.Type()
}

func (p *TreeSitterParser) EmitChunks(path string, content []byte) ([]*types.Chunk, error) {
	q, err := p.compiledQuery()
	if err != nil {
		return nil, err
	}

	sp := sitter.NewParser()
	sp.SetLanguage(p.spec.Grammar)
	tree, err := sp.ParseCtx(context.Background(), nil, content)
	if err != nil || tree == nil {
		return []*types.Chunk{invalidRootChunk(path, string(content))}, nil
	}
	defer tree.Close()
	if tree.RootNode().HasError() {
		return []*types.Chunk{invalidRootChunk(path, string(content))}, nil
	}

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, tree.RootNode())

	var caps []tsCapture
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		var node *sitter.Node
		var name string
		for _, c := range m.Captures {
			switch q.CaptureNameForId(c.Index) {
			case "chunk":
				node = c.Node
			case "name":
				name = c.Node.Content(content)
			}
		}
		if node == nil {
			continue
		}
		caps = append(caps, tsCapture{
			node:      node,
			nodeType:  effectiveNodeType(node),
			name:      name,
			startByte: node.StartByte(),
			endByte:   node.EndByte(),
			startLine: int(node.StartPoint().Row) + 1,
			endLine:   int(node.EndPoint().Row) + 1,
		})
	}
	caps = dedupCaptures(caps, p.spec.ClassNodeTypes)

	if len(caps) == 0 {
		return []*types.Chunk{rootFileChunk(path, string(content), types.ParseOK)}, nil
	}

	lines := strings.Split(string(content), "\n")
	now := time.Now()

	// Emit classes first so methods can resolve ParentID by byte-range
	// containment.
	var classes []classEntry
	var chunks []*types.Chunk

	for _, capture := range caps {
		if !p.spec.ClassNodeTypes[capture.nodeType] {
			continue
		}
		chunk := p.buildChunk(path, lines, content, capture, types.KindClass, now)
		chunks = append(chunks, chunk)
		classes = append(classes, classEntry{capture.startByte, capture.endByte, chunk.ID})
	}

	for _, capture := range caps {
		if p.spec.ClassNodeTypes[capture.nodeType] {
			continue
		}
		kind := p.spec.DefaultKind
		if kind == "" {
			kind = types.KindFunction
		}
		if p.spec.MethodNodeTypes[capture.nodeType] {
			kind = types.KindMethod
		}
		chunk := p.buildChunk(path, lines, content, capture, kind, now)

		if parentID := enclosingClass(capture.startByte, capture.endByte, classes); parentID != "" {
			chunk.Kind = types.KindMethod
			chunk.ParentID = parentID
		}
		chunks = append(chunks, chunk)
	}

	return chunks, nil
}

// classEntry records an already-emitted class chunk's byte span so later
// method captures can resolve their ParentID by containment.
type classEntry struct {
	startByte, endByte uint32
	chunkID            string
}

// enclosingClass returns the chunk ID of the tightest class whose byte
// range contains [startByte, endByte), per phobologic-repoguide's
// parent-chain method detection — expressed here as byte-range
// containment rather than a node-pointer ancestor walk, since a
// decorated definition's captured span does not coincide with any of
// its ancestor nodes' spans.
func enclosingClass(startByte, endByte uint32, classes []classEntry) string {
	var best classEntry
	found := false
	for _, c := range classes {
		if c.startByte <= startByte && endByte <= c.endByte {
			if !found || c.startByte > best.startByte {
				best = c
				found = true
			}
		}
	}
	if !found {
		return ""
	}
	return best.chunkID
}

func (p *TreeSitterParser) buildChunk(path string, lines []string, content []byte, capture tsCapture, kind types.ChunkKind, now time.Time) *types.Chunk {
	start, end := capture.startLine, capture.endLine
	body := sliceLines(lines, start, end)
	// Oversized definitions (> maxChunkBytes) still get one chunk per the
	// outer node's span, so chunk ids stay stable; nothing in the pipeline
	// splits them into line windows as SloanGwaltney-synapse's
	// splitOversized does.

	id := types.DeriveID(path, start, end, kind)
	sigLine := ""
	if parts := strings.SplitN(body, "\n", 2); len(parts) > 0 {
		sigLine = parts[0]
	}

	c := &types.Chunk{
		ID:           id,
		FilePath:     path,
		StartLine:    start,
		EndLine:      end,
		Kind:         kind,
		Name:         capture.name,
		Language:     p.spec.Language,
		Content:      body,
		Docstring:    p.ExtractDocstring(content, start, end),
		ParseQuality: types.ParseOK,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	c.ComputeContentHash()
	c.Quality = EstimateQuality(body, sigLine, kind, 0)
	return c
}

// dedupCaptures removes captures fully contained within a larger
// non-class capture, per SloanGwaltney-synapse's chunker.go dedup.
// Captures inside a class capture are kept (they are its methods),
// except one with the class capture's own node type and name: that is
// the declaration a wrapper such as export_statement or
// decorated_definition holds.
func dedupCaptures(caps []tsCapture, classTypes map[string]bool) []tsCapture {
	if len(caps) <= 1 {
		return caps
	}
	sort.Slice(caps, func(i, j int) bool {
		if caps[i].startByte != caps[j].startByte {
			return caps[i].startByte < caps[j].startByte
		}
		return (caps[i].endByte - caps[i].startByte) > (caps[j].endByte - caps[j].startByte)
	})
	var out, classes []tsCapture
	var lastEnd uint32
	for _, c := range caps {
		if c.startByte < lastEnd {
			continue
		}
		wrapped := false
		for _, k := range classes {
			if k.nodeType == c.nodeType && k.name == c.name && k.startByte <= c.startByte && c.endByte <= k.endByte {
				wrapped = true
			}
		}
		if wrapped {
			continue
		}
		out = append(out, c)
		if classTypes[c.nodeType] {
			classes = append(classes, c)
		} else if c.endByte > lastEnd {
			lastEnd = c.endByte
		}
	}
	return out
}

func (p *TreeSitterParser) ExtractDocstring(content []byte, startLine, endLine int) string {
	lines := strings.Split(string(content), "\n")

	if p.spec.DocstringAfterHeader && startLine < len(lines) {
		// The line immediately after the definition's header, if it is
		// a bare triple-quoted string, is treated as the docstring
		// (Python convention).
		for i := startLine; i < len(lines) && i < startLine+2; i++ {
			trimmed := strings.TrimSpace(lines[i])
			if strings.HasPrefix(trimmed, `"""`) || strings.HasPrefix(trimmed, "'''") {
				return strings.Trim(trimmed, `"'`)
			}
		}
	}

	var doc []string
	for i := startLine - 2; i >= 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			break
		}
		matched := false
		for _, prefix := range p.spec.LineCommentPrefixes {
			if strings.HasPrefix(trimmed, prefix) {
				doc = append([]string{strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))}, doc...)
				matched = true
				break
			}
		}
		if !matched {
			break
		}
	}
	return strings.Join(doc, "\n")
}

func (p *TreeSitterParser) EstimateQuality(body string, kind types.ChunkKind) types.Quality {
	sig := body
	if parts := strings.SplitN(body, "\n", 2); len(parts) > 0 {
		sig = parts[0]
	}
	return EstimateQuality(body, sig, kind, 0)
}
