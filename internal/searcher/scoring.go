package searcher

import (
	"regexp"
	"strings"

	"github.com/anthropic-exercise/codeintel/pkg/types"
)

// gradeScore maps a letter grade to the [0,1] quality_score input the
// re-rank formula takes: higher grade, higher score. Smell count
// shaves a further, independently bounded amount
// off so two chunks sharing a grade still separate on smell density.
var gradeScore = map[types.Grade]float64{
	types.GradeA: 1.0,
	types.GradeB: 0.8,
	types.GradeC: 0.6,
	types.GradeD: 0.4,
	types.GradeF: 0.1,
}

// qualityScore derives the re-rank formula's quality_score term from a
// chunk's Quality metrics.
func qualityScore(q types.Quality) float64 {
	base, ok := gradeScore[q.Grade]
	if !ok {
		base = gradeScore[types.GradeC]
	}
	penalty := 0.05 * float64(q.SmellCount())
	if penalty > base {
		penalty = base
	}
	return base - penalty
}

// structuralBaseline weights a chunk kind's inherent "this is a named,
// callable unit" signal, highest for function/method and tapering off
// toward raw blocks, matching the chunk kind hierarchy.
var structuralBaseline = map[types.ChunkKind]float64{
	types.KindFunction:  1.0,
	types.KindMethod:    1.0,
	types.KindClass:     0.8,
	types.KindSection:   0.5,
	types.KindBlock:     0.3,
	types.KindParagraph: 0.2,
	types.KindFileChunk: 0.1,
}

// symbolLikeQuery reports whether normalizedQuery reads like a symbol
// reference (an identifier or dotted/qualified name) rather than a
// natural-language question.
var symbolLikePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.:]*$`)

func symbolLikeQuery(normalizedQuery string) bool {
	if normalizedQuery == "" || strings.ContainsAny(normalizedQuery, " \t\n") {
		return false
	}
	return symbolLikePattern.MatchString(normalizedQuery)
}

// structuralBonus derives the re-rank formula's structural_bonus term:
// full weight to the kind hierarchy for a symbol-like query, damped for
// a natural-language one where chunk granularity matters less than
// semantic relevance.
func structuralBonus(kind types.ChunkKind, symbolLike bool) float64 {
	base, ok := structuralBaseline[kind]
	if !ok {
		base = structuralBaseline[types.KindBlock]
	}
	if symbolLike {
		return base
	}
	return base * 0.5
}

// boilerplatePatterns are deterministic, language-agnostic signatures
// of low-value chunk bodies: getter/setter, empty-body, and trivial-init
// patterns. Each operates on the chunk's trimmed content so it is
// independent of the parser that produced the chunk.
var boilerplatePatterns = []*regexp.Regexp{
	// A function/method whose entire body is a single return of a bare
	// field or simple accessor expression: `{ return x.y }`.
	regexp.MustCompile(`(?s)\{\s*return\s+[A-Za-z_][A-Za-z0-9_.]*\s*\}\s*$`),
	// A function/method whose entire body is a single field assignment:
	// `{ x.y = z }`.
	regexp.MustCompile(`(?s)\{\s*[A-Za-z_][A-Za-z0-9_.]*\s*=\s*[A-Za-z0-9_."']+\s*\}\s*$`),
	// An empty or near-empty body.
	regexp.MustCompile(`(?s)\{\s*\}\s*$`),
	regexp.MustCompile(`(?m)^\s*pass\s*$`),
}

var boilerplateNamePattern = regexp.MustCompile(`(?i)^(get|set|is|has)_?[A-Za-z0-9]*$`)

// isBoilerplate applies the deterministic rules above to a chunk's
// name and content. It is a plain boolean, not a graded score — a
// small deterministic filter, not a weighted estimator.
func isBoilerplate(c *types.Chunk) bool {
	if c.Kind != types.KindFunction && c.Kind != types.KindMethod {
		return false
	}
	trimmed := strings.TrimSpace(c.Content)
	if countLines(trimmed) <= 2 && boilerplateNamePattern.MatchString(c.Name) {
		return true
	}
	for _, p := range boilerplatePatterns {
		if p.MatchString(trimmed) {
			return true
		}
	}
	return false
}

// boilerplatePenalty derives the re-rank formula's boilerplate_penalty
// term: the full unit penalty when the deterministic filter trips,
// none otherwise.
func boilerplatePenalty(c *types.Chunk) float64 {
	if isBoilerplate(c) {
		return 1.0
	}
	return 0.0
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}
