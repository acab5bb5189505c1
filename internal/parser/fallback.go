package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/anthropic-exercise/codeintel/pkg/types"
)

// declStart matches a line that plausibly opens a top-level declaration
// in any of the regex-fallback languages (PHP, Dart, Ruby) or an
// unregistered extension. It anchors at column zero: splitting on
// *top-level* declarations specifically means an unindented line is
// the one signal that holds across all three
// languages without needing per-language indentation rules.
var declStart = regexp.MustCompile(`^(public |private |protected |static |abstract |final |export )*(function|def|class|module|interface|trait|enum|mixin)\b`)

// fallbackCommentPrefixes covers every ambient line-comment style in
// the pack (C-style, Python/Ruby hash, PHP's both).
var fallbackCommentPrefixes = []string{"//", "#", "/**", "*/", "*"}

// FallbackParser is the regex-based chunker used when a structural
// parser fails or no extension matches at all. It never
// errors: a file with no detectable declarations becomes one chunk.
type FallbackParser struct{}

// NewFallbackParser returns the regex-based fallback variant.
func NewFallbackParser() *FallbackParser { return &FallbackParser{} }

func (f *FallbackParser) EmitChunks(path string, content []byte) ([]*types.Chunk, error) {
	lines := strings.Split(string(content), "\n")

	type span struct{ start, end int } // 1-indexed, inclusive
	var spans []span
	start := 0
	for i, line := range lines {
		if i == 0 || !declStart.MatchString(line) {
			continue
		}
		spans = append(spans, span{start + 1, i})
		start = i
	}
	if start < len(lines) {
		spans = append(spans, span{start + 1, len(lines)})
	}

	if len(spans) <= 1 {
		return []*types.Chunk{rootFileChunk(path, string(content), types.ParseFallback)}, nil
	}

	now := time.Now()
	chunks := make([]*types.Chunk, 0, len(spans))
	for _, sp := range spans {
		body := sliceLines(lines, sp.start, sp.end)
		name := declName(body)
		id := types.DeriveID(path, sp.start, sp.end, types.KindBlock)
		sigLine := body
		if parts := strings.SplitN(body, "\n", 2); len(parts) > 0 {
			sigLine = parts[0]
		}

		c := &types.Chunk{
			ID:           id,
			FilePath:     path,
			StartLine:    sp.start,
			EndLine:      sp.end,
			Kind:         types.KindBlock,
			Name:         name,
			Content:      body,
			Docstring:    f.ExtractDocstring(content, sp.start, sp.end),
			ParseQuality: types.ParseFallback,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		c.ComputeContentHash()
		c.Quality = EstimateQuality(body, sigLine, types.KindBlock, 0)
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// declName pulls the identifier following the matched keyword on a
// block's first line, best-effort.
func declName(body string) string {
	firstLine, _, _ := strings.Cut(body, "\n")
	fields := strings.Fields(firstLine)
	for i, f := range fields {
		switch f {
		case "function", "def", "class", "module", "interface", "trait", "enum", "mixin":
			if i+1 < len(fields) {
				name := fields[i+1]
				if idx := strings.IndexByte(name, '('); idx >= 0 {
					name = name[:idx]
				}
				return strings.TrimRight(name, "{:")
			}
		}
	}
	return ""
}

func (f *FallbackParser) ExtractDocstring(content []byte, startLine, endLine int) string {
	lines := strings.Split(string(content), "\n")
	var doc []string
	for i := startLine - 2; i >= 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			break
		}
		matched := false
		for _, prefix := range fallbackCommentPrefixes {
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

func (f *FallbackParser) EstimateQuality(body string, kind types.ChunkKind) types.Quality {
	sig := body
	if parts := strings.SplitN(body, "\n", 2); len(parts) > 0 {
		sig = parts[0]
	}
	return EstimateQuality(body, sig, kind, 0)
}
