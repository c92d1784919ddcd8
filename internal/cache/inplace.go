package cache

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/nozem-build/nozem/internal/fileset"
	"github.com/nozem-build/nozem/internal/merkle"
)

// sidecarFileName is the name of the in-place cache file written inside a
// package's own source directory.
const sidecarFileName = ".nzm-buildcache"

// changeDetailLevels bounds how many Composite levels of the input tree the
// sidecar keeps expanded. Beyond this depth a subtree collapses to its leaf
// hash, keeping the sidecar small while still letting Diff explain a miss
// down to a useful level of detail.
const changeDetailLevels = 3

// sidecarSchema is the on-disk shape of .nzm-buildcache.
type sidecarSchema struct {
	InputTree    any            `json:"inputTree"`
	Artifacts    fileset.Schema `json:"artifacts"`
	ArtifactHash string         `json:"artifactHash"`
	ArtifactTree any            `json:"artifactTree"`
}

// InPlaceArtifact is a hit served directly out of a package's own source
// tree: the files already live where the caller wants them.
type InPlaceArtifact struct {
	packageDir   string
	artifactHash string
	files        *fileset.FileSet
}

func (a *InPlaceArtifact) Source() string       { return "in-place" }
func (a *InPlaceArtifact) ArtifactHash() string { return a.artifactHash }

// Fetch is a no-op for the in-place tier: the cached files are the live
// source tree, so there is nothing to materialize.
func (a *InPlaceArtifact) Fetch(targetDir string) (*fileset.FileSet, error) {
	if targetDir != "" && targetDir != a.packageDir {
		return nil, fmt.Errorf("cache: in-place artifact can only be fetched in place (%s), not %s", a.packageDir, targetDir)
	}
	return a.files, nil
}

// InPlaceCache reads and writes the .nzm-buildcache sidecar inside a
// package's own source directory.
type InPlaceCache struct{}

// NewInPlaceCache constructs an InPlaceCache. It holds no state of its own —
// every sidecar is addressed by the package directory passed to Lookup/Store.
func NewInPlaceCache() *InPlaceCache {
	return &InPlaceCache{}
}

// Lookup reads packageDir's sidecar, if any, and reports a hit only when the
// sidecar's recorded input tree hash matches currentInputHash and the
// artifact hash recomputed over the files still on disk matches the
// recorded one — i.e. nothing relevant has changed since the sidecar was
// written.
func (c *InPlaceCache) Lookup(packageDir, currentInputHash string) (CachedArtifact, error) {
	raw, err := os.ReadFile(filepath.Join(packageDir, sidecarFileName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: reading in-place sidecar: %w", err)
	}

	var sc sidecarSchema
	if err := json.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("cache: decoding in-place sidecar: %w", err)
	}

	inputTree, err := merkle.Deserialize(sc.InputTree)
	if err != nil {
		return nil, fmt.Errorf("cache: sidecar input tree: %w", err)
	}
	if inputTree.Hash() != currentInputHash {
		return nil, nil
	}

	files := fileset.FromSchema(packageDir, sc.Artifacts).OnlyExisting()
	if files.Len() != len(sc.Artifacts.RelativePaths) {
		// A recorded file has vanished from disk; the sidecar can no
		// longer vouch for the artifact.
		return nil, nil
	}
	if files.Hash() != sc.ArtifactHash {
		return nil, nil
	}

	return &InPlaceArtifact{packageDir: packageDir, artifactHash: sc.ArtifactHash, files: files}, nil
}

// Store writes packageDir's sidecar atomically, recording inputTree
// (truncated to changeDetailLevels), the artifact file set, its hash, and
// the full artifactTree.
func (c *InPlaceCache) Store(packageDir string, inputTree merkle.Hashable, artifacts *fileset.FileSet, artifactHash string, artifactTree merkle.Hashable) error {
	sc := sidecarSchema{
		InputTree:    merkle.Serialize(inputTree, changeDetailLevels),
		Artifacts:    artifacts.ToSchema(),
		ArtifactHash: artifactHash,
		ArtifactTree: merkle.Serialize(artifactTree, math.MaxInt),
	}

	encoded, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: encoding in-place sidecar: %w", err)
	}

	path := filepath.Join(packageDir, sidecarFileName)
	return withFileLock(path, func() error {
		return atomicWriteFile(path, encoded, 0o644)
	})
}
