package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nozem-build/nozem/internal/config"
)

// Harness provides an isolated test environment for a fake monorepo:
// a temp directory holding nozem.json/nozem-cache.json, environment
// variable backup/restoration, and automatic cleanup via t.Cleanup().
type Harness struct {
	T           *testing.T
	MonorepoDir string            // temp dir holding nozem.json
	OriginalEnv map[string]string // for restoration
	OriginalDir string            // original working directory
	envKeys     []string
	changedDir  bool
}

// HarnessOption configures a Harness.
type HarnessOption func(*Harness)

// WithUnitsJSON writes nozem.json's raw contents into the monorepo
// directory. Callers build the JSON by hand (or via unitdef's envelope
// shapes) since unitdef.Document only ever decodes.
func WithUnitsJSON(raw string) HarnessOption {
	return func(h *Harness) {
		h.WriteFile(config.UnitsFileName, raw)
	}
}

// WithCacheConfigJSON writes nozem-cache.json's raw contents into the
// monorepo directory.
func WithCacheConfigJSON(raw string) HarnessOption {
	return func(h *Harness) {
		h.WriteFile(config.CacheConfigFileName, raw)
	}
}

// NewHarness creates a new isolated test monorepo directory.
func NewHarness(t *testing.T, opts ...HarnessOption) *Harness {
	t.Helper()

	monorepoDir := t.TempDir()
	monorepoDir, err := filepath.EvalSymlinks(monorepoDir)
	if err != nil {
		t.Fatalf("failed to resolve monorepo directory symlinks: %v", err)
	}

	origDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get current directory: %v", err)
	}

	h := &Harness{
		T:           t,
		MonorepoDir: monorepoDir,
		OriginalDir: origDir,
		OriginalEnv: make(map[string]string),
	}

	for _, opt := range opts {
		opt(h)
	}

	t.Cleanup(h.cleanup)
	return h
}

func (h *Harness) cleanup() {
	if h.changedDir {
		if err := os.Chdir(h.OriginalDir); err != nil {
			h.T.Errorf("failed to restore working directory: %v", err)
		}
	}

	for _, key := range h.envKeys {
		original, existed := h.OriginalEnv[key]
		if existed {
			os.Setenv(key, original)
		} else {
			os.Unsetenv(key)
		}
	}
}

// SetEnv sets an environment variable and registers it for cleanup.
func (h *Harness) SetEnv(key, value string) {
	if _, exists := h.OriginalEnv[key]; !exists {
		h.OriginalEnv[key] = os.Getenv(key)
		h.envKeys = append(h.envKeys, key)
	}
	if err := os.Setenv(key, value); err != nil {
		h.T.Fatalf("failed to set env %s: %v", key, err)
	}
}

// UnsetEnv unsets an environment variable and registers it for cleanup.
func (h *Harness) UnsetEnv(key string) {
	if _, exists := h.OriginalEnv[key]; !exists {
		h.OriginalEnv[key] = os.Getenv(key)
		h.envKeys = append(h.envKeys, key)
	}
	if err := os.Unsetenv(key); err != nil {
		h.T.Fatalf("failed to unset env %s: %v", key, err)
	}
}

// Chdir changes to the monorepo directory and registers restoration for
// cleanup.
func (h *Harness) Chdir() {
	h.T.Helper()
	if err := os.Chdir(h.MonorepoDir); err != nil {
		h.T.Fatalf("failed to change to monorepo directory: %v", err)
	}
	h.changedDir = true
}

// WriteFile writes a file, relative to the monorepo directory, creating
// parent directories as needed.
func (h *Harness) WriteFile(relPath, content string) {
	h.T.Helper()
	fullPath := filepath.Join(h.MonorepoDir, relPath)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		h.T.Fatalf("failed to create directory for %s: %v", relPath, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		h.T.Fatalf("failed to write file %s: %v", fullPath, err)
	}
}

// ReadFile reads a file relative to the monorepo directory.
func (h *Harness) ReadFile(relPath string) string {
	h.T.Helper()
	data, err := os.ReadFile(filepath.Join(h.MonorepoDir, relPath))
	if err != nil {
		h.T.Fatalf("failed to read file %s: %v", relPath, err)
	}
	return string(data)
}

// FileExists reports whether a file exists relative to the monorepo
// directory.
func (h *Harness) FileExists(relPath string) bool {
	_, err := os.Stat(filepath.Join(h.MonorepoDir, relPath))
	return err == nil
}
