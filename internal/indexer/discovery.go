package indexer

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/anthropic-exercise/codeintel/internal/pathfilter"
)

// priorityBucket orders candidates by prioritisation: an optimisation
// so a worker pool surfaces the most useful files first, never a
// correctness requirement (every candidate is still indexed).
type priorityBucket int

const (
	priorityChanged priorityBucket = iota
	priorityEntryPoint
	priorityDocs
	priorityEverythingElse
)

var entryPointPattern = regexp.MustCompile(`(?i)(^|/)(main\.go|index\.(js|ts)|__main__\.py|cmd/[^/]+/main\.go)$`)
var docsPattern = regexp.MustCompile(`(?i)(^|/)(readme(\.\w+)?|docs/.*)$`)

// prioritize reorders candidates using the VCS-changed/entry-point/
// docs/everything-else buckets, stable within each bucket by relative
// path so results are deterministic across runs. Git discovery
// generalizes "is this file tracked" to "did this file change" via
// git diff against HEAD plus the untracked-file listing.
func prioritize(root string, candidates []pathfilter.Candidate) []pathfilter.Candidate {
	changed := changedPaths(root)

	bucketOf := func(c pathfilter.Candidate) priorityBucket {
		rel := filepath.ToSlash(c.RelPath)
		switch {
		case changed[rel]:
			return priorityChanged
		case entryPointPattern.MatchString(rel):
			return priorityEntryPoint
		case docsPattern.MatchString(rel):
			return priorityDocs
		default:
			return priorityEverythingElse
		}
	}

	out := make([]pathfilter.Candidate, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		bi, bj := bucketOf(out[i]), bucketOf(out[j])
		if bi != bj {
			return bi < bj
		}
		return out[i].RelPath < out[j].RelPath
	})
	return out
}

// changedPaths returns the set of project-relative paths with
// uncommitted changes (staged or not) or that are untracked and not
// ignored in the current VCS working tree, or
// nil if root isn't a git checkout (or git isn't available) — in which
// case prioritize falls back to entry-point/docs/everything-else
// ordering alone.
func changedPaths(root string) map[string]bool {
	if info, err := os.Stat(filepath.Join(root, ".git")); err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out := make(map[string]bool)
	collect := func(args ...string) {
		cmd := exec.CommandContext(ctx, "git", args...)
		cmd.Dir = root
		raw, err := cmd.Output()
		if err != nil {
			return
		}
		for _, line := range strings.Split(strings.TrimRight(string(raw), "\n"), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			out[line] = true
		}
	}

	collect("diff", "--name-only", "HEAD")
	collect("ls-files", "--others", "--exclude-standard")

	if len(out) == 0 {
		return nil
	}
	return out
}
