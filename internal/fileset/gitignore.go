package fileset

import (
	"bufio"
	"os"
	"path/filepath"
	"sync"

	"github.com/moby/patternmatcher"
)

// GitignoreMatcher loads ".gitignore" files lazily as directories are
// visited, accumulating patterns from the outermost file down to the
// directory in question, plus a fixed set of built-in patterns (e.g.
// ".nzm-*") applied everywhere beneath root.
type GitignoreMatcher struct {
	mu     sync.Mutex
	root   string
	extra  []pattern
	static *patternmatcher.PatternMatcher
	byDir  map[string][]pattern
}

// NewGitignoreMatcher builds a matcher rooted at root. extraPatterns are
// compiled against root and applied in every directory beneath it, ahead of
// any .gitignore-declared pattern (so a .gitignore can still negate them).
// They are also compiled into a patternmatcher.PatternMatcher, the same
// dockerignore-style matcher nozem's build-context filtering models itself
// on, used as a quick reject ahead of the slower per-directory walk below.
func NewGitignoreMatcher(root string, extraPatterns ...string) *GitignoreMatcher {
	g := &GitignoreMatcher{root: root, byDir: map[string][]pattern{}}
	for _, raw := range extraPatterns {
		g.extra = append(g.extra, compilePattern(raw, root))
	}
	if len(extraPatterns) > 0 {
		if pm, err := patternmatcher.New(extraPatterns); err == nil {
			g.static = pm
		}
	}
	return g
}

func (g *GitignoreMatcher) VisitFile(absPath string) bool {
	patterns := g.patternsFor(filepath.Dir(absPath))
	return evaluateFrom(g.staticIncluded(absPath, false), ModeExclude, patterns, g.root, absPath, false)
}

func (g *GitignoreMatcher) VisitDirectory(absPath string) bool {
	if absPath == g.root {
		return true
	}
	patterns := g.patternsFor(filepath.Dir(absPath))
	return evaluateFrom(g.staticIncluded(absPath, true), ModeExclude, patterns, g.root, absPath, true)
}

// staticIncluded reports whether absPath survives the fixed,
// directory-independent extraPatterns list alone, before any .gitignore
// file is even read — the quick reject that lets the common case
// (node_modules, build output) resolve to "excluded" without the
// per-directory accumulation patternsFor does. Falls back to evaluating
// g.extra directly if the patternmatcher compile failed or the path can't
// be made relative to root.
func (g *GitignoreMatcher) staticIncluded(absPath string, isDir bool) bool {
	if g.static == nil {
		return evaluate(ModeExclude, g.extra, g.root, absPath, isDir)
	}
	rel, err := filepath.Rel(g.root, absPath)
	if err != nil {
		return evaluate(ModeExclude, g.extra, g.root, absPath, isDir)
	}
	matched, err := g.static.MatchesUsingParentResults(filepath.ToSlash(rel), patternmatcher.MatchInfo{})
	if err != nil {
		return evaluate(ModeExclude, g.extra, g.root, absPath, isDir)
	}
	return !matched
}

func (g *GitignoreMatcher) patternsFor(dir string) []pattern {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.patternsForLocked(dir)
}

func (g *GitignoreMatcher) patternsForLocked(dir string) []pattern {
	if p, ok := g.byDir[dir]; ok {
		return p
	}

	var inherited []pattern
	if dir != g.root && len(dir) > len(g.root) {
		inherited = g.patternsForLocked(filepath.Dir(dir))
	}

	own := loadGitignorePatterns(dir)
	combined := make([]pattern, 0, len(inherited)+len(own))
	combined = append(combined, inherited...)
	combined = append(combined, own...)
	g.byDir[dir] = combined
	return combined
}

func loadGitignorePatterns(dir string) []pattern {
	f, err := os.Open(filepath.Join(dir, ".gitignore"))
	if err != nil {
		return nil
	}
	defer f.Close()

	var patterns []pattern
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := trimGitignoreLine(line)
		if trimmed == "" {
			continue
		}
		patterns = append(patterns, compilePattern(trimmed, dir))
	}
	return patterns
}

func trimGitignoreLine(line string) string {
	// Leading/trailing whitespace is insignificant; a leading "#" marks a
	// comment. A literal leading "\#" or "\!" escapes into a real pattern
	// character, but nozem's unit manifests never need that, so it is left
	// unsupported here.
	i, j := 0, len(line)
	for i < j && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	for j > i && (line[j-1] == ' ' || line[j-1] == '\t') {
		j--
	}
	line = line[i:j]
	if line == "" || line[0] == '#' {
		return ""
	}
	return line
}
