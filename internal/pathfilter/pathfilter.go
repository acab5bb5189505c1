// Package pathfilter decides which files in a source tree enter the
// indexing pipeline: extension allow-list, gitignore/dotfile/exclude
// policy, size ceiling, and UTF-8 decodability.
package pathfilter

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/text/encoding/charmap"
)

// DefaultMaxFileSize is the recommended file-size ceiling (2 MiB).
const DefaultMaxFileSize = 2 << 20

// defaultWhitelistedDotDirs are always admitted even when SkipDotfiles
// is set, per the Path Filter's contract.
var defaultWhitelistedDotDirs = []string{".github", ".gitlab-ci", ".circleci"}

// Config configures one Path Filter traversal.
type Config struct {
	Extensions         map[string]bool
	ExcludeGlobPatterns []string
	RespectGitignore   bool
	SkipDotfiles       bool
	WhitelistedDotDirs []string
	MaxFileSize        int64
}

// Candidate is one admitted file with the metadata the Hasher and
// Parser Registry need without re-reading the file.
type Candidate struct {
	AbsPath     string
	RelPath     string
	Size        int64
	ModTime     time.Time
	Content     []byte
	LossyDecode bool
}

// SkipReason explains why a path was not admitted.
type SkipReason string

const (
	SkipGitignore  SkipReason = "gitignore"
	SkipExclude    SkipReason = "exclude_pattern"
	SkipDotfile    SkipReason = "dotfile"
	SkipExtension  SkipReason = "extension"
	SkipSize       SkipReason = "size"
	SkipBinary     SkipReason = "binary"
	SkipUnreadable SkipReason = "unreadable"
)

// Skip records one path that was excluded from the candidate set; an
// unreadable directory is reported here rather than silently dropped.
type Skip struct {
	Path   string
	Reason SkipReason
}

// Filter runs one Path Filter traversal of root (via filepath.WalkDir)
// and returns the admitted candidates in sorted path order, together
// with the paths it skipped.
func Filter(ctx context.Context, root string, cfg Config) ([]Candidate, []Skip, error) {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if len(cfg.WhitelistedDotDirs) == 0 {
		cfg.WhitelistedDotDirs = defaultWhitelistedDotDirs
	}
	whitelist := make(map[string]bool, len(cfg.WhitelistedDotDirs))
	for _, d := range cfg.WhitelistedDotDirs {
		whitelist[d] = true
	}

	gitFiles := gitLsFiles(ctx, root)

	w := &walker{
		root:      root,
		cfg:       cfg,
		whitelist: whitelist,
		gitFiles:  gitFiles,
		ignores:   map[string]*ignore.GitIgnore{},
	}

	var candidates []Candidate
	var skips []Skip

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			skips = append(skips, Skip{Path: path, Reason: SkipUnreadable})
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if w.skipDir(rel, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		reason, ok := w.admitFile(rel, d.Name())
		if !ok {
			skips = append(skips, Skip{Path: rel, Reason: reason})
			return nil
		}

		info, err := d.Info()
		if err != nil {
			skips = append(skips, Skip{Path: rel, Reason: SkipUnreadable})
			return nil
		}
		if info.Size() > cfg.MaxFileSize {
			skips = append(skips, Skip{Path: rel, Reason: SkipSize})
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			skips = append(skips, Skip{Path: rel, Reason: SkipUnreadable})
			return nil
		}

		ext := strings.ToLower(filepath.Ext(d.Name()))
		if !cfg.Extensions[ext] {
			skips = append(skips, Skip{Path: rel, Reason: SkipExtension})
			return nil
		}

		content, lossy, isBinary := decode(raw, ext)
		if isBinary {
			skips = append(skips, Skip{Path: rel, Reason: SkipBinary})
			return nil
		}

		candidates = append(candidates, Candidate{
			AbsPath:     path,
			RelPath:     rel,
			Size:        info.Size(),
			ModTime:     info.ModTime(),
			Content:     []byte(content),
			LossyDecode: lossy,
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].RelPath < candidates[j].RelPath })
	return candidates, skips, nil
}

type walker struct {
	root      string
	cfg       Config
	whitelist map[string]bool
	gitFiles  map[string]bool // nil when not a git repo / git unavailable
	ignores   map[string]*ignore.GitIgnore
}

// skipDir decides whether a directory should be pruned entirely.
func (w *walker) skipDir(rel, name string) bool {
	if strings.HasPrefix(name, ".") {
		if w.cfg.SkipDotfiles && !w.whitelist[name] {
			return true
		}
	}
	if w.cfg.RespectGitignore && w.gitFiles == nil {
		w.loadGitignoreAt(filepath.Join(w.root, rel))
	}
	if matchesExcludeDir(rel, w.cfg.ExcludeGlobPatterns) {
		return true
	}
	if w.cfg.RespectGitignore && w.gitFiles == nil && w.matchesIgnoreChain(rel, true) {
		return true
	}
	return false
}

// admitFile applies dotfile policy, gitignore/exclude patterns in that
// order, returning the first reason the file is rejected.
func (w *walker) admitFile(rel, name string) (SkipReason, bool) {
	if strings.HasPrefix(name, ".") && w.cfg.SkipDotfiles {
		parentDir := filepath.Base(filepath.Dir(rel))
		if !w.whitelist[parentDir] {
			return SkipDotfile, false
		}
	}
	if w.cfg.RespectGitignore {
		if w.gitFiles != nil {
			if !w.gitFiles[rel] {
				return SkipGitignore, false
			}
		} else if w.matchesIgnoreChain(rel, false) {
			return SkipGitignore, false
		}
	}
	if matchesExcludeFile(rel, w.cfg.ExcludeGlobPatterns) {
		return SkipExclude, false
	}
	return "", true
}

// loadGitignoreAt compiles and caches the .gitignore at dir, if any.
func (w *walker) loadGitignoreAt(dir string) {
	if _, ok := w.ignores[dir]; ok {
		return
	}
	path := filepath.Join(dir, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		w.ignores[dir] = nil
		return
	}
	w.ignores[dir] = gi
}

// matchesIgnoreChain checks rel against every ancestor .gitignore found
// so far, closest directory first. This approximates git's hierarchical
// .gitignore resolution; it does not implement negation-pattern
// precedence across levels, which is an acceptable simplification for a
// local indexing tool (a false inclusion here only means the file still
// goes through the normal extension/size/binary checks below).
func (w *walker) matchesIgnoreChain(rel string, isDir bool) bool {
	dir := filepath.Dir(filepath.Join(w.root, rel))
	for {
		w.loadGitignoreAt(dir)
		if gi := w.ignores[dir]; gi != nil {
			relToDir, err := filepath.Rel(dir, filepath.Join(w.root, rel))
			if err == nil {
				check := filepath.ToSlash(relToDir)
				if isDir {
					check += "/"
				}
				if gi.MatchesPath(check) {
					return true
				}
			}
		}
		if dir == w.root || dir == "." || dir == string(filepath.Separator) {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return false
}

func gitLsFiles(ctx context.Context, root string) map[string]bool {
	info, err := os.Stat(filepath.Join(root, ".git"))
	if err != nil || !info.IsDir() {
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]bool)
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[filepath.ToSlash(line)] = true
		}
	}
	return files
}

// matchesExcludeFile/Dir apply fnmatch-style exclude_glob_patterns.
// Directory patterns end in "/" per the Path Filter contract.
func matchesExcludeFile(rel string, patterns []string) bool {
	for _, p := range patterns {
		if strings.HasSuffix(p, "/") {
			continue
		}
		if ok, _ := filepath.Match(p, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(p, filepath.Base(rel)); ok {
			return true
		}
	}
	return false
}

func matchesExcludeDir(rel string, patterns []string) bool {
	for _, p := range patterns {
		if !strings.HasSuffix(p, "/") {
			continue
		}
		trimmed := strings.TrimSuffix(p, "/")
		if ok, _ := filepath.Match(trimmed, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(trimmed, filepath.Base(rel)); ok {
			return true
		}
	}
	return false
}

// decode attempts UTF-8 decoding, falling back to latin-1 for text-kind
// extensions, and reports whether the content looks binary (a null byte
// in the first 512 bytes).
func decode(raw []byte, ext string) (content string, lossy bool, isBinary bool) {
	probe := raw
	if len(probe) > 512 {
		probe = probe[:512]
	}
	for _, b := range probe {
		if b == 0 {
			return "", false, true
		}
	}

	if isValidUTF8(raw) {
		return string(raw), false, false
	}

	if isTextExtension(ext) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if err == nil {
			return string(decoded), true, false
		}
	}
	return "", false, true
}

func isValidUTF8(b []byte) bool {
	return utf8.Valid(b)
}

var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".rst": true,
	".csv": true, ".tsv": true, ".ini": true, ".cfg": true, ".conf": true,
}

func isTextExtension(ext string) bool {
	return textExtensions[strings.ToLower(ext)]
}
