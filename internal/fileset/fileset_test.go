package fileset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, root string) {
	t.Helper()
	mustWrite := func(rel, content string) {
		abs := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	}
	mustWrite("bloop.ts", "export {}")
	mustWrite("node_modules/inner", "ignored")
	mustWrite("subdir/bla.log", "log")
	mustWrite(".eslintrc.js", "module.exports = {}")
}

func TestIgnoreMatcherNodeModules(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root)

	m := NewMatcher(root, ModeExclude, []string{"node_modules/"})
	fs, err := Walk(root, m)
	require.NoError(t, err)
	assert.Equal(t, []string{".eslintrc.js", "bloop.ts", "subdir/bla.log"}, fs.Paths())
}

func TestIgnoreMatcherNegation(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root)

	m := NewMatcher(root, ModeExclude, []string{"*.js", "!.eslintrc.js"})
	fs, err := Walk(root, m)
	require.NoError(t, err)
	assert.Equal(t, []string{".eslintrc.js", "bloop.ts", "node_modules/inner", "subdir/bla.log"}, fs.Paths())
}

func TestIgnoreMatcherAnchoredPatternIsRootSpecific(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "other", "subdir"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "other", "subdir", "bla.log"), []byte("log"), 0o644))

	m := NewMatcher(root, ModeExclude, []string{"subdir/bla.log"})
	fs, err := Walk(root, m)
	require.NoError(t, err)

	assert.NotContains(t, fs.Paths(), "subdir/bla.log")
	assert.Contains(t, fs.Paths(), "other/subdir/bla.log", "an anchored pattern only excludes the hit in the directory where it was declared")
}

func TestIncludePatternSelectsOnlyNestedLogFile(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root)

	m := NewMatcher(root, ModeInclude, []string{"*/", "*.log"})
	fs, err := Walk(root, m)
	require.NoError(t, err)
	assert.Equal(t, []string{"subdir/bla.log"}, fs.Paths())
}

func TestIncludePatternDoubleStarMatchesEverything(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root)

	m := NewMatcher(root, ModeInclude, []string{"**/*"})
	fs, err := Walk(root, m)
	require.NoError(t, err)
	assert.Equal(t, []string{".eslintrc.js", "bloop.ts", "node_modules/inner", "subdir/bla.log"}, fs.Paths())
}

func TestGitignoreMatcherLoadsNestedFiles(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root)
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("node_modules/\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "subdir", ".gitignore"), []byte("*.log\n"), 0o644))

	m := NewGitignoreMatcher(root)
	fs, err := Walk(root, m)
	require.NoError(t, err)
	assert.Equal(t, []string{".eslintrc.js", ".gitignore", "bloop.ts", "subdir/.gitignore"}, fs.Paths())
}

func TestGitignoreMatcherAppliesExtraPatterns(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root)
	require.NoError(t, os.WriteFile(filepath.Join(root, ".nzm-buildcache"), []byte("{}"), 0o644))

	m := NewGitignoreMatcher(root, ".nzm-*")
	fs, err := Walk(root, m)
	require.NoError(t, err)
	assert.NotContains(t, fs.Paths(), ".nzm-buildcache")
}

func TestFileSetHashCommitsToPathAndContent(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(rootA, "a.ts"), []byte("same"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(rootB, "a.ts"), []byte("same"), 0o644))

	fsA := New(rootA, []string{"a.ts"})
	fsB := New(rootB, []string{"a.ts"})
	assert.Equal(t, fsA.Hash(), fsB.Hash(), "identical relative layout and content must hash identically regardless of root")

	require.NoError(t, os.WriteFile(filepath.Join(rootB, "a.ts"), []byte("different"), 0o644))
	ResetHashCache()
	fsB2 := New(rootB, []string{"a.ts"})
	assert.NotEqual(t, fsA.Hash(), fsB2.Hash())
}

func TestExceptAndFilter(t *testing.T) {
	root := t.TempDir()
	all := New(root, []string{"a.ts", "b.ts", "b.d.ts"})
	minus := New(root, []string{"b.ts"})

	assert.Equal(t, []string{"a.ts", "b.d.ts"}, all.Except(minus).Paths())
	assert.Equal(t, []string{"a.ts", "b.ts"}, all.WithoutExtension(".d.ts").Paths())
}
