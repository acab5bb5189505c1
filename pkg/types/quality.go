package types

// Grade is a letter grade assigned to a chunk from its quality metrics.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// SmellSeverity classifies how serious a detected code smell is.
type SmellSeverity string

const (
	SeverityInfo    SmellSeverity = "info"
	SeverityWarning SmellSeverity = "warning"
	SeverityError   SmellSeverity = "error"
)

// SmellKind names one of the deterministic smell rules a chunk can trip.
type SmellKind string

const (
	SmellLongMethod       SmellKind = "long_method"
	SmellGodClass         SmellKind = "god_class"
	SmellDeepNesting      SmellKind = "deep_nesting"
	SmellHighComplexity   SmellKind = "high_complexity"
	SmellLongParamList    SmellKind = "long_parameter_list"
)

// Smell is one deterministic-rule finding against a chunk.
type Smell struct {
	Kind     SmellKind
	Severity SmellSeverity
	Detail   string
}

// Quality carries the structural metrics computed while walking a
// chunk's parse tree: complexity, nesting, parameter count, smells and a
// derived letter grade.
type Quality struct {
	CyclomaticComplexity int
	CognitiveComplexity  int
	NestingDepth         int
	ParameterCount       int
	MethodCount          int // populated for class-kind chunks
	LinesOfCode          int

	Smells []Smell
	Grade  Grade
}

// SmellCount returns the number of smells recorded, used by the Vector
// Store's smell_count filter predicate.
func (q Quality) SmellCount() int {
	return len(q.Smells)
}

// gradeRank allows grade comparisons (A is best) for the Vector Store's
// `quality.grade ≤ G` filter predicate, where ≤ means "at least as good
// as" in letter-grade terms (A ≤ B ≤ C ...).
var gradeRank = map[Grade]int{
	GradeA: 0,
	GradeB: 1,
	GradeC: 2,
	GradeD: 3,
	GradeF: 4,
}

// GradeAtLeastAsGoodAs reports whether g is at least as good as the
// threshold grade (lower or equal rank).
func GradeAtLeastAsGoodAs(g, threshold Grade) bool {
	gr, ok := gradeRank[g]
	if !ok {
		return false
	}
	tr, ok := gradeRank[threshold]
	if !ok {
		return false
	}
	return gr <= tr
}

// ComputeGrade derives a letter grade from smell severities and
// cyclomatic complexity using fixed, deterministic thresholds: any
// error-severity smell or cyclomatic complexity beyond 30 is an F;
// each warning-severity smell or complexity band above 15 knocks the
// grade down one letter from the A baseline.
func ComputeGrade(q Quality) Grade {
	errorCount := 0
	warningCount := 0
	for _, s := range q.Smells {
		switch s.Severity {
		case SeverityError:
			errorCount++
		case SeverityWarning:
			warningCount++
		}
	}

	if errorCount > 0 || q.CyclomaticComplexity > 30 {
		return GradeF
	}

	demotions := warningCount
	if q.CyclomaticComplexity > 15 {
		demotions++
	}

	switch {
	case demotions == 0:
		return GradeA
	case demotions == 1:
		return GradeB
	case demotions == 2:
		return GradeC
	default:
		return GradeD
	}
}
