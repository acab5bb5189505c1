package parser

import (
	"regexp"
	"strings"

	"github.com/anthropic-exercise/codeintel/pkg/types"
)

// branchKeywords are the constructs counted as decision points for
// cyclomatic complexity (count of branching constructs + 1), applied
// across every language variant via a shared keyword scan. This is
// deliberately language-agnostic: rather than writing one AST-walk
// per language, the same deterministic rule is applied uniformly over
// token text, which is exactly as precise as the rule itself (a
// keyword count), just not tied to a specific parse tree.
var branchKeywords = regexp.MustCompile(`\b(if|for|while|case|catch|except|elif|else if)\b|&&|\|\|`)

// nestingDepth approximates block nesting depth by brace counting, which
// covers Go/JS/TS/PHP; a body with no braces at all (Python, Ruby) is
// measured by indentNestingDepth instead.
func nestingDepth(body string) int {
	depth, maxDepth := 0, 0
	for _, r := range body {
		switch r {
		case '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case '}':
			if depth > 0 {
				depth--
			}
		}
	}
	if maxDepth > 0 {
		return maxDepth
	}
	return indentNestingDepth(body)
}

// indentNestingDepth is the fallback used for brace-free languages
// (Python) — each 4-space (or one-tab) indent step beyond the chunk's
// own baseline counts as one nesting level.
func indentNestingDepth(body string) int {
	lines := strings.Split(body, "\n")
	if len(lines) == 0 {
		return 0
	}
	base := leadingWidth(lines[0])
	maxDepth := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		w := leadingWidth(line)
		depth := (w - base) / 4
		if depth > maxDepth {
			maxDepth = depth
		}
	}
	return maxDepth
}

func leadingWidth(line string) int {
	w := 0
	for _, r := range line {
		switch r {
		case ' ':
			w++
		case '\t':
			w += 4
		default:
			return w
		}
	}
	return w
}

// cognitiveComplexity applies the standard "+1 per branch, +1 extra per
// level of nesting the branch sits at" definition approximated over the
// same keyword scan, weighting each match by how deep it appears.
func cognitiveComplexity(body string) int {
	lines := strings.Split(body, "\n")
	total := 0
	depth := 0
	for _, line := range lines {
		opens := strings.Count(line, "{")
		closes := strings.Count(line, "}")
		matches := branchKeywords.FindAllString(line, -1)
		if len(matches) > 0 {
			total += len(matches) * (1 + depth)
		}
		depth += opens - closes
		if depth < 0 {
			depth = 0
		}
	}
	return total
}

// parameterCount counts comma-separated parameters inside the first
// balanced parenthesis pair on the chunk's signature line(s), which is
// where every supported language places its parameter list.
func parameterCount(signatureLine string) int {
	start := strings.Index(signatureLine, "(")
	if start < 0 {
		return 0
	}
	depth := 0
	end := -1
	for i := start; i < len(signatureLine); i++ {
		switch signatureLine[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				end = i
			}
		}
		if end >= 0 {
			break
		}
	}
	if end < 0 {
		return 0
	}
	inner := strings.TrimSpace(signatureLine[start+1 : end])
	if inner == "" {
		return 0
	}
	depth = 0
	count := 1
	for _, r := range inner {
		switch r {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				count++
			}
		}
	}
	return count
}

// EstimateQuality computes quality metrics for one chunk body
// given its kind and (for classes) the number of methods already
// counted elsewhere. It is shared by every Parser variant so the
// smell/grade rules are applied identically regardless of language.
func EstimateQuality(body, signatureLine string, kind types.ChunkKind, methodCount int) types.Quality {
	lines := strings.Count(body, "\n") + 1
	q := types.Quality{
		CyclomaticComplexity: len(branchKeywords.FindAllString(body, -1)) + 1,
		CognitiveComplexity:  cognitiveComplexity(body),
		NestingDepth:         nestingDepth(body),
		ParameterCount:       parameterCount(signatureLine),
		MethodCount:          methodCount,
		LinesOfCode:          lines,
	}
	q.Smells = detectSmells(q, kind)
	q.Grade = types.ComputeGrade(q)
	return q
}

func detectSmells(q types.Quality, kind types.ChunkKind) []types.Smell {
	var smells []types.Smell

	if kind == types.KindFunction || kind == types.KindMethod {
		if q.LinesOfCode > 50 {
			smells = append(smells, types.Smell{
				Kind: types.SmellLongMethod, Severity: types.SeverityWarning,
				Detail: "body exceeds 50 lines",
			})
		}
		if q.ParameterCount > 5 {
			smells = append(smells, types.Smell{
				Kind: types.SmellLongParamList, Severity: types.SeverityWarning,
				Detail: "more than 5 parameters",
			})
		}
	}

	if kind == types.KindClass {
		if q.LinesOfCode > 250 || q.MethodCount > 20 {
			smells = append(smells, types.Smell{
				Kind: types.SmellGodClass, Severity: types.SeverityError,
				Detail: "exceeds 250 lines or 20 methods",
			})
		}
	}

	if q.NestingDepth > 4 {
		smells = append(smells, types.Smell{
			Kind: types.SmellDeepNesting, Severity: types.SeverityWarning,
			Detail: "nesting exceeds 4 levels",
		})
	}
	if q.CyclomaticComplexity > 15 {
		smells = append(smells, types.Smell{
			Kind: types.SmellHighComplexity, Severity: types.SeverityWarning,
			Detail: "cyclomatic complexity exceeds 15",
		})
	}

	return smells
}
