package pkgbuild

import (
	"crypto/sha1"
	"encoding/hex"

	"github.com/nozem-build/nozem/internal/fileset"
)

// NpmDependencyInput is one resolved NPM dependency a package build
// consumes, in one of the three forms spec.md §4.6 describes.
type NpmDependencyInput interface {
	// FilesIdentifier is the identity folded into the input hash: a
	// registry package's declared version, or a monorepo build's
	// artifact hash.
	FilesIdentifier() string
	// Hashable reports whether this dependency has a stable identity a
	// hermetic build can commit to. MonoRepoInPlace never does.
	Hashable() bool
}

// NpmRegistryDependency is a dependency resolved to a directory under some
// ancestor node_modules/. Its version string is guaranteed unique by
// registry conventions, so it stands in for hashing the package's files.
type NpmRegistryDependency struct {
	Name    string
	Version string
	// Dir is the absolute path to the package's directory on disk.
	Dir string
}

func (d *NpmRegistryDependency) FilesIdentifier() string { return d.Version }
func (d *NpmRegistryDependency) Hashable() bool          { return true }

// MonoRepoBuild is a dependency on another monorepo package that nozem
// itself builds. Its artifact hash stands in for hashing the files
// directly; Artifact is the already-filtered post-build file set (.ts
// stripped where a sibling .d.ts exists, tsconfig.json removed) ready to
// be installed bundled into a dependent's sandbox.
type MonoRepoBuild struct {
	NodeID       string
	ArtifactHash string
	Artifact     *fileset.FileSet
}

func (d *MonoRepoBuild) FilesIdentifier() string { return d.ArtifactHash }
func (d *MonoRepoBuild) Hashable() bool          { return true }

// MonoRepoInPlace is a dependency on a monorepo package whose own build ran
// non-hermetically. It has no hashable identity; any package depending on
// one, even transitively, becomes non-hermetic. Unit definitions carry no
// field that marks a unit uncacheable; the orchestrator creates a
// MonoRepoInPlace only for a producer whose own result was non-hermetic.
type MonoRepoInPlace struct {
	NodeID string
}

func (d *MonoRepoInPlace) FilesIdentifier() string { return "" }
func (d *MonoRepoInPlace) Hashable() bool          { return false }

// OsToolInput is an OS-provided executable located via $PATH at graph-load
// time and exposed to the sandbox under its own bin/.
type OsToolInput struct {
	Name         string
	ResolvedPath string
}

// NonPackageFileInput is a manifest-declared file outside the package's
// own source tree, copied into the sandbox verbatim.
type NonPackageFileInput struct {
	// RelPath is where the file is installed, relative to the sandbox's
	// current source directory.
	RelPath string
	AbsPath string
}

// hashString returns the lowercase hex SHA-1 digest of s, used to fold a
// non-file identity (a version string, a resolved tool path) into the
// merkle tree alongside genuine file-content hashes.
func hashString(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
