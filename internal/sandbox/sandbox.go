// Package sandbox implements the ephemeral build directory a package build
// runs in: a throwaway tree with a restricted-PATH bin/ directory and a
// src/ directory the build command treats as its working copy.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/nozem-build/nozem/internal/fileset"
	"github.com/nozem-build/nozem/internal/logger"
)

// Sandbox is a temporary directory with bin/ (executable symlinks) and
// src/ (where the build command runs) subdirectories.
type Sandbox struct {
	root   string
	binDir string
	srcDir string
}

// Open creates a new sandbox under baseDir (os.TempDir() if empty), named
// nzm-sandbox-<uuid> so concurrent builds never collide and a logged path
// is unambiguous post-mortem.
func Open(baseDir string) (*Sandbox, error) {
	if baseDir == "" {
		baseDir = os.TempDir()
	}

	root := filepath.Join(baseDir, "nzm-sandbox-"+uuid.NewString())
	binDir := filepath.Join(root, "bin")
	srcDir := filepath.Join(root, "src")

	for _, dir := range []string{binDir, srcDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sandbox: creating %s: %w", dir, err)
		}
	}

	return &Sandbox{root: root, binDir: binDir, srcDir: srcDir}, nil
}

// Root is the sandbox's top-level directory.
func (s *Sandbox) Root() string { return s.root }

// BinDir is the sandbox's restricted-PATH directory.
func (s *Sandbox) BinDir() string { return s.binDir }

// SrcDir is the sandbox's current working directory for the build command.
func (s *Sandbox) SrcDir() string { return s.srcDir }

// MoveSrcDir changes SrcDir to a subdirectory of the original src/,
// mirroring a package's position within the monorepo layout. relative must
// be slash-separated and relative.
func (s *Sandbox) MoveSrcDir(relative string) error {
	if relative == "" || relative == "." {
		return nil
	}
	newSrcDir := filepath.Join(s.srcDir, filepath.FromSlash(relative))
	if err := os.MkdirAll(newSrcDir, 0o755); err != nil {
		return fmt.Errorf("sandbox: moving src dir to %s: %w", relative, err)
	}
	s.srcDir = newSrcDir
	return nil
}

// InstallExecutable symlinks absTarget into bin/ under name (or
// filepath.Base(absTarget) if name is empty). If a symlink already exists
// at that name, it is removed and recreated.
func (s *Sandbox) InstallExecutable(absTarget string, name string) error {
	if name == "" {
		name = filepath.Base(absTarget)
	}
	dst := filepath.Join(s.binDir, name)
	_ = os.Remove(dst)
	if err := os.Symlink(absTarget, dst); err != nil {
		return fmt.Errorf("sandbox: installing executable %s: %w", name, err)
	}
	return nil
}

// InstallSymlink creates a symlink at relSource (relative to the sandbox
// root) pointing at absTarget, anywhere under the sandbox tree — e.g. a
// node_modules entry pointing at a registry package's real directory.
func (s *Sandbox) InstallSymlink(relSource, absTarget string) error {
	dst := filepath.Join(s.root, filepath.FromSlash(relSource))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("sandbox: installing symlink %s: %w", relSource, err)
	}
	_ = os.Remove(dst)
	if err := os.Symlink(absTarget, dst); err != nil {
		return fmt.Errorf("sandbox: installing symlink %s: %w", relSource, err)
	}
	return nil
}

// AddSrcFiles copies fs (preserving symlinks) into src/subdir (src/
// itself, if subdir is empty).
func (s *Sandbox) AddSrcFiles(fs *fileset.FileSet, subdir string) error {
	dest := s.srcDir
	if subdir != "" {
		dest = filepath.Join(s.srcDir, filepath.FromSlash(subdir))
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("sandbox: preparing %s: %w", dest, err)
	}
	if err := fs.CopyTo(dest); err != nil {
		return fmt.Errorf("sandbox: adding source files: %w", err)
	}
	return nil
}

// TouchFile ensures a zero-byte file exists at relPath (relative to the
// sandbox root), creating parent directories as needed.
func (s *Sandbox) TouchFile(relPath string) error {
	abs := filepath.Join(s.root, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("sandbox: touching %s: %w", relPath, err)
	}
	f, err := os.OpenFile(abs, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("sandbox: touching %s: %w", relPath, err)
	}
	return f.Close()
}

// InSourceArtifacts returns a FileSet of everything still in src/ matching
// matcher — used by extract units and by the artifact-snapshot step of a
// package build.
func (s *Sandbox) InSourceArtifacts(matcher fileset.PathMatcher) (*fileset.FileSet, error) {
	return fileset.Walk(s.srcDir, matcher)
}

// With creates a sandbox under baseDir, invokes fn, and deletes the
// sandbox on a normal return. If fn returns an error, the sandbox is left
// in place for post-mortem inspection and its path is logged.
func With(baseDir string, fn func(*Sandbox) error) error {
	sb, err := Open(baseDir)
	if err != nil {
		return err
	}

	if err := fn(sb); err != nil {
		logger.Log.Warn().Str("sandbox", sb.root).Err(err).Msg("sandbox left in place after failure")
		return err
	}

	if err := os.RemoveAll(sb.root); err != nil {
		logger.Log.Warn().Str("sandbox", sb.root).Err(err).Msg("removing sandbox after success failed")
	}
	return nil
}
