package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/anthropic-exercise/codeintel/pkg/types"
)

// headingLine matches an ATX-style Markdown heading.
var headingLine = regexp.MustCompile(`^#{1,6}\s+\S`)

// DefaultMinSectionChars is the minimum character count a heading
// section must reach before it stands on its own; shorter sections
// merge into their neighbour.
const DefaultMinSectionChars = 120

// TextParser implements Parser for Markdown and plain-text files: one
// chunk per heading section (Markdown) or per blank-line-delimited
// paragraph (plain text), with small sections folded into a neighbour.
// Unlike every structural variant, it always also emits the implicit
// root file chunk alongside its section chunks.
type TextParser struct {
	Markdown      bool
	MinSectionChars int
}

// NewMarkdownParser returns the heading-section variant for .md/.markdown.
func NewMarkdownParser() *TextParser {
	return &TextParser{Markdown: true, MinSectionChars: DefaultMinSectionChars}
}

// NewPlainTextParser returns the paragraph variant for .txt and similar.
func NewPlainTextParser() *TextParser {
	return &TextParser{Markdown: false, MinSectionChars: DefaultMinSectionChars}
}

type textSection struct {
	heading    string
	start, end int // 1-indexed, inclusive
}

func (p *TextParser) EmitChunks(path string, content []byte) ([]*types.Chunk, error) {
	lines := strings.Split(string(content), "\n")
	var sections []textSection
	if p.Markdown {
		sections = splitByHeading(lines)
	} else {
		sections = splitByParagraph(lines)
	}
	sections = mergeSmallSections(sections, lines, p.threshold())

	now := time.Now()
	kind := types.KindParagraph
	if p.Markdown {
		kind = types.KindSection
	}

	chunks := make([]*types.Chunk, 0, len(sections)+1)
	for _, s := range sections {
		body := sliceLines(lines, s.start, s.end)
		id := types.DeriveID(path, s.start, s.end, kind)
		c := &types.Chunk{
			ID:           id,
			FilePath:     path,
			StartLine:    s.start,
			EndLine:      s.end,
			Kind:         kind,
			Name:         s.heading,
			Content:      body,
			ParseQuality: types.ParseOK,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		c.ComputeContentHash()
		chunks = append(chunks, c)
	}

	// text/markdown always also gets the implicit root chunk.
	chunks = append(chunks, rootFileChunk(path, string(content), types.ParseOK))
	return chunks, nil
}

func (p *TextParser) threshold() int {
	if p.MinSectionChars > 0 {
		return p.MinSectionChars
	}
	return DefaultMinSectionChars
}

// splitByHeading breaks lines into sections starting at each heading
// line; any content before the first heading becomes an unnamed
// preamble section.
func splitByHeading(lines []string) []textSection {
	var sections []textSection
	start := 0
	heading := ""
	for i, line := range lines {
		if !headingLine.MatchString(line) {
			continue
		}
		if i > start {
			sections = append(sections, textSection{heading, start + 1, i})
		}
		start = i
		heading = strings.TrimSpace(strings.TrimLeft(line, "# "))
	}
	if start < len(lines) {
		sections = append(sections, textSection{heading, start + 1, len(lines)})
	}
	return trimEmptySections(sections)
}

// splitByParagraph breaks lines into maximal runs of non-blank lines.
func splitByParagraph(lines []string) []textSection {
	var sections []textSection
	start := -1
	for i, line := range lines {
		blank := strings.TrimSpace(line) == ""
		if !blank && start < 0 {
			start = i
		}
		if blank && start >= 0 {
			sections = append(sections, textSection{"", start + 1, i})
			start = -1
		}
	}
	if start >= 0 {
		sections = append(sections, textSection{"", start + 1, len(lines)})
	}
	return sections
}

func trimEmptySections(sections []textSection) []textSection {
	var out []textSection
	for _, s := range sections {
		if s.end >= s.start {
			out = append(out, s)
		}
	}
	return out
}

// mergeSmallSections folds any section whose content falls below
// minChars into the preceding section, which keeps its heading; a
// first section below minChars absorbs the section after it instead.
func mergeSmallSections(sections []textSection, lines []string, minChars int) []textSection {
	if len(sections) <= 1 {
		return sections
	}
	merged := make([]textSection, 0, len(sections))
	for _, s := range sections {
		merged = append(merged, s)
		for len(merged) >= 2 {
			last := merged[len(merged)-1]
			if sectionChars(lines, last) >= minChars {
				break
			}
			prev := merged[len(merged)-2]
			merged[len(merged)-2] = textSection{prev.heading, prev.start, last.end}
			merged = merged[:len(merged)-1]
		}
	}
	// A final section still under threshold merges backward too.
	for len(merged) >= 2 && sectionChars(lines, merged[len(merged)-1]) < minChars {
		last := merged[len(merged)-1]
		prev := merged[len(merged)-2]
		merged[len(merged)-2] = textSection{prev.heading, prev.start, last.end}
		merged = merged[:len(merged)-1]
	}
	// A first section still under threshold absorbs its successor.
	if len(merged) >= 2 && sectionChars(lines, merged[0]) < minChars {
		merged[1] = textSection{merged[0].heading, merged[0].start, merged[1].end}
		merged = merged[1:]
	}
	return merged
}

func sectionChars(lines []string, s textSection) int {
	return len(sliceLines(lines, s.start, s.end))
}

func (p *TextParser) ExtractDocstring(content []byte, startLine, endLine int) string {
	return ""
}

func (p *TextParser) EstimateQuality(body string, kind types.ChunkKind) types.Quality {
	return types.Quality{LinesOfCode: strings.Count(body, "\n") + 1}
}
