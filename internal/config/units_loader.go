package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nozem-build/nozem/internal/nozemerr"
	"github.com/nozem-build/nozem/internal/unitdef"
)

// UnitsLoader locates and decodes nozem.json for a given working
// directory.
type UnitsLoader struct {
	workDir string
}

// NewUnitsLoader creates a UnitsLoader rooted at workDir.
func NewUnitsLoader(workDir string) *UnitsLoader {
	return &UnitsLoader{workDir: workDir}
}

// Path returns nozem.json's path, searching workDir and its ancestors.
// The second return reports whether one was found.
func (l *UnitsLoader) Path() (string, bool) {
	return findUpward(l.workDir, UnitsFileName)
}

// MonorepoRoot returns the directory containing nozem.json — the root
// every unit's Root field and every sandboxed build's source tree is
// resolved relative to.
func (l *UnitsLoader) MonorepoRoot() (string, error) {
	path, ok := l.Path()
	if !ok {
		return "", nozemerr.ConfigErrorf("%s not found at or above %s", UnitsFileName, l.workDir)
	}
	return filepath.Dir(path), nil
}

// Load reads and decodes nozem.json. A missing file is reported as a
// nozemerr.ConfigError (spec.md §7's "user configuration" error kind),
// not a generic I/O error, since it's always user-fixable.
//
// Unlike the teacher's viper-based ProjectLoader, this reads the file
// directly through encoding/json rather than through viper's decoded
// map[string]any: unitdef.Document already owns its own tagged-union
// UnmarshalJSON, and viper's mapstructure-based Unmarshal would bypass it.
func (l *UnitsLoader) Load() (*unitdef.Document, error) {
	path, ok := l.Path()
	if !ok {
		return nil, nozemerr.ConfigErrorf("%s not found at or above %s", UnitsFileName, l.workDir)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var doc unitdef.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nozemerr.ConfigErrorf("parsing %s: %v", path, err)
	}
	return &doc, nil
}
