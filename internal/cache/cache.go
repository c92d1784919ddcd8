// Package cache implements the multi-tier artifact cache: an in-place
// sidecar living next to a package's own sources, a local directory of
// gzipped tarballs, and a remote object store, composed into a single
// lookup chain that tries cheapest-first and writes through to every
// writable tier on a build.
package cache

import (
	"github.com/nozem-build/nozem/internal/fileset"
)

// Locator identifies one cached artifact: the 40-hex-character (SHA-1) input hash
// that a package build computed for its inputs.
type Locator string

// CachedArtifact is a lookup hit from any tier. Fetch materializes the
// artifact's files under targetDir; for the in-place tier this is a no-op
// since the files already live where the caller wants them.
type CachedArtifact interface {
	// Source names the tier the hit came from ("in-place", "local", "remote").
	Source() string
	// ArtifactHash is the content hash of the cached file set.
	ArtifactHash() string
	// Fetch materializes the artifact's files under targetDir and returns
	// the resulting FileSet.
	Fetch(targetDir string) (*fileset.FileSet, error)
}
