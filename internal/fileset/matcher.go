package fileset

import (
	"path/filepath"
	"strings"
)

// PathMatcher is what Walk consults while descending a directory tree.
type PathMatcher interface {
	// VisitDirectory reports whether the walker should descend into
	// absPath at all.
	VisitDirectory(absPath string) bool
	// VisitFile reports whether absPath should be admitted into the
	// resulting FileSet.
	VisitFile(absPath string) bool
}

// Matcher is the glob/gitignore matching primitive: a flat, ordered list of
// patterns, all anchored at one root, evaluated under a Mode.
type Matcher struct {
	root     string
	mode     Mode
	patterns []pattern
}

// NewMatcher compiles rawPatterns (gitignore syntax, one rule per entry;
// blank lines and "#" comments already stripped by the caller) into a
// Matcher anchored at root.
func NewMatcher(root string, mode Mode, rawPatterns []string) *Matcher {
	compiled := make([]pattern, 0, len(rawPatterns))
	for _, raw := range rawPatterns {
		compiled = append(compiled, compilePattern(raw, root))
	}
	return &Matcher{root: root, mode: mode, patterns: compiled}
}

func (m *Matcher) VisitFile(absPath string) bool {
	return evaluate(m.mode, m.patterns, m.root, absPath, false)
}

// VisitDirectory always descends in ModeInclude, since an include list
// cannot know in advance that nothing beneath a directory could match. In
// ModeExclude a directory is pruned exactly when it is itself excluded.
func (m *Matcher) VisitDirectory(absPath string) bool {
	if m.mode == ModeInclude || absPath == m.root {
		return true
	}
	return evaluate(m.mode, m.patterns, m.root, absPath, true)
}

// evaluate applies patterns, in order, last match wins, against absPath
// (relative to root for the default case; each pattern with its own
// definedDir is instead measured relative to that directory).
func evaluate(mode Mode, patterns []pattern, root, absPath string, isDir bool) bool {
	return evaluateFrom(mode == ModeExclude, mode, patterns, root, absPath, isDir)
}

// evaluateFrom is evaluate with the pre-pattern "included" verdict passed
// in rather than always starting from mode's default — letting a caller
// seed the per-directory pass with a verdict it already reached some other
// way (GitignoreMatcher uses this to carry forward a quick-reject result
// computed against its fixed pattern list).
func evaluateFrom(initial bool, mode Mode, patterns []pattern, root, absPath string, isDir bool) bool {
	included := initial

	rootSegs := relSegments(root, absPath)
	for _, p := range patterns {
		segs := rootSegs
		if p.definedDir != "" && p.definedDir != root {
			rel, err := filepath.Rel(p.definedDir, absPath)
			if err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
				continue
			}
			segs = strings.Split(filepath.ToSlash(rel), "/")
		}

		if !patternMatchesAncestry(p, segs, isDir) {
			continue
		}
		switch {
		case mode == ModeExclude:
			included = !p.negate
		case !p.dirOnly:
			included = !p.negate
		}
	}
	return included
}

func relSegments(root, absPath string) []string {
	rel, err := filepath.Rel(root, absPath)
	if err != nil {
		rel = absPath
	}
	return strings.Split(filepath.ToSlash(rel), "/")
}

// patternMatchesAncestry checks p against every directory-ancestor prefix of
// segs (eligible for dirOnly patterns) and against the full path itself
// (eligible for non-dirOnly patterns, or for dirOnly when the target itself
// is a directory).
func patternMatchesAncestry(p pattern, segs []string, isDir bool) bool {
	for n := 1; n <= len(segs); n++ {
		isLast := n == len(segs)
		probeIsDir := !isLast || isDir
		if p.dirOnly && !probeIsDir {
			continue
		}
		if !p.dirOnly && !isLast {
			continue
		}
		if p.matchesPrefix(segs, n, probeIsDir) {
			return true
		}
	}
	return false
}
