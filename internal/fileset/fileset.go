package fileset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/nozem-build/nozem/internal/merkle"
	"github.com/tonistiigi/fsutil"
)

// FileSet is an immutable snapshot of relative file paths beneath a root
// directory. It is a merkle.ElementProvider: its elements are
// relativePath -> Direct(fileHash(absPath)), so its own Hash commits to
// every file's content and every file's position in the tree.
type FileSet struct {
	root  string
	paths []string // sorted, slash-separated, relative to root

	once  sync.Once
	inner *merkle.Composite
	err   error
}

// New wraps an already-known set of root-relative paths. paths are
// defensively copied and sorted.
func New(root string, paths []string) *FileSet {
	cp := make([]string, len(paths))
	copy(cp, paths)
	sort.Strings(cp)
	return &FileSet{root: root, paths: cp}
}

// Walk enumerates files beneath root, consulting matcher to prune
// directories and admit files, and returns the resulting FileSet. Symbolic
// links are recorded as files (never descended into), matching the rule
// that fileHash uses the link target string rather than its contents.
func Walk(root string, matcher PathMatcher) (*FileSet, error) {
	var (
		mu    sync.Mutex
		paths []string
	)

	err := fsutil.Walk(context.Background(), root, nil, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == "." || path == "" {
			return nil
		}

		abs := filepath.Join(root, path)
		rel := filepath.ToSlash(path)

		if info.IsDir() {
			if !matcher.VisitDirectory(abs) {
				return filepath.SkipDir
			}
			return nil
		}

		if !matcher.VisitFile(abs) {
			return nil
		}

		mu.Lock()
		paths = append(paths, rel)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fileset: walk %s: %w", root, err)
	}

	return New(root, paths), nil
}

// Root returns the directory the FileSet's relative paths are resolved
// against.
func (fs *FileSet) Root() string {
	return fs.root
}

// Paths returns the sorted, root-relative, slash-separated file paths.
func (fs *FileSet) Paths() []string {
	return fs.paths
}

// Len reports the number of files in the set.
func (fs *FileSet) Len() int {
	return len(fs.paths)
}

func (fs *FileSet) ensure() *merkle.Composite {
	fs.once.Do(func() {
		elements := make(map[string]merkle.Hashable, len(fs.paths))
		for _, rel := range fs.paths {
			digest, err := FileHash(filepath.Join(fs.root, rel))
			if err != nil {
				if fs.err == nil {
					fs.err = fmt.Errorf("fileset: hashing %s: %w", rel, err)
				}
				// Mirrors the source's missing-file sentinel: a file that
				// cannot be hashed still occupies a slot in the tree, with
				// a digest that can never collide with a real one.
				digest = "error:" + rel
			}
			elements[rel] = merkle.NewDirect(digest)
		}
		fs.inner = merkle.NewComposite(elements)
	})
	return fs.inner
}

// Hash returns the SHA1 content hash over every file's path and content.
func (fs *FileSet) Hash() string {
	return fs.ensure().Hash()
}

// HashableElements implements merkle.ElementProvider.
func (fs *FileSet) HashableElements() map[string]merkle.Hashable {
	return fs.ensure().HashableElements()
}

// Err reports the first file-hashing error encountered while computing the
// set's hash, if any. A FileSet whose Hash has not yet been requested always
// reports nil.
func (fs *FileSet) Err() error {
	return fs.err
}

// Except returns a new FileSet over fs's root containing every path in fs
// that is not also in other.
func (fs *FileSet) Except(other *FileSet) *FileSet {
	exclude := make(map[string]struct{}, other.Len())
	for _, p := range other.paths {
		exclude[p] = struct{}{}
	}
	kept := make([]string, 0, len(fs.paths))
	for _, p := range fs.paths {
		if _, ok := exclude[p]; !ok {
			kept = append(kept, p)
		}
	}
	return New(fs.root, kept)
}

// Filter returns a new FileSet over fs's root containing only the paths for
// which keep returns true.
func (fs *FileSet) Filter(keep func(relPath string) bool) *FileSet {
	kept := make([]string, 0, len(fs.paths))
	for _, p := range fs.paths {
		if keep(p) {
			kept = append(kept, p)
		}
	}
	return New(fs.root, kept)
}

// WithoutExtension returns a new FileSet with every path ending in any of
// exts removed. Matching is a plain suffix test, so ".ts" also removes
// ".d.ts" files.
func (fs *FileSet) WithoutExtension(exts ...string) *FileSet {
	return fs.Filter(func(rel string) bool {
		for _, ext := range exts {
			if strings.HasSuffix(rel, ext) {
				return false
			}
		}
		return true
	})
}

// OnlyExisting drops paths whose backing file no longer exists on disk —
// used after an external build command has run and may have deleted files
// that were present when the FileSet was first captured.
func (fs *FileSet) OnlyExisting() *FileSet {
	return fs.Filter(func(rel string) bool {
		_, err := os.Lstat(filepath.Join(fs.root, rel))
		return err == nil
	})
}

// Rebase returns a FileSet with the same relative paths resolved against a
// different root directory — used when an artifact recorded against a
// sandbox's src/ directory is reinterpreted against the package's own
// source directory, or vice versa.
func (fs *FileSet) Rebase(newRoot string) *FileSet {
	return New(newRoot, fs.paths)
}

// WithSubdir returns a FileSet whose relative paths are all prefixed by sub,
// still resolved against fs's existing root (sub is itself relative to
// root). Used when installing a FileSet into a sandboxed subdirectory.
func (fs *FileSet) WithSubdir(sub string) *FileSet {
	if sub == "" {
		return New(fs.root, fs.paths)
	}
	prefixed := make([]string, len(fs.paths))
	for i, p := range fs.paths {
		prefixed[i] = filepath.ToSlash(filepath.Join(sub, p))
	}
	return New(fs.root, prefixed)
}
