package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nozem-build/nozem/internal/fileset"
	"github.com/nozem-build/nozem/internal/logger"
)

// defaultLocalCacheMaxSizeMB is the local tarball cache's default size
// budget before the cleaner starts dropping the oldest entries.
const defaultLocalCacheMaxSizeMB = 5000

// localIndexSchema is the on-disk shape of a local cache entry's index
// file, stored alongside its tarball.
type localIndexSchema struct {
	ArtifactHash string         `json:"artifactHash"`
	Artifacts    fileset.Schema `json:"artifacts"`
}

// LocalArtifact is a hit from the local directory cache; Fetch unpacks its
// tarball into the target directory.
type LocalArtifact struct {
	cache        *LocalCache
	locator      Locator
	artifactHash string
}

func (a *LocalArtifact) Source() string       { return "local" }
func (a *LocalArtifact) ArtifactHash() string { return a.artifactHash }

// Fetch unpacks the locator's tarball into targetDir.
func (a *LocalArtifact) Fetch(targetDir string) (*fileset.FileSet, error) {
	tarPath := a.cache.tarballPath(a.locator)
	f, err := os.Open(tarPath)
	if err != nil {
		return nil, fmt.Errorf("cache: opening local tarball %s: %w", a.locator, err)
	}
	defer f.Close()

	paths, err := unpackTarball(f, targetDir)
	if err != nil {
		return nil, fmt.Errorf("cache: unpacking local tarball %s: %w", a.locator, err)
	}
	return fileset.New(targetDir, paths), nil
}

// LocalCache is the second cache tier: a directory of gzipped tarballs under
// $HOME/.cache/nozem/local, sharded by the first four hex characters of the
// locator, kept under a total size budget by a background cleaner.
type LocalCache struct {
	dir     string
	cleaner *cleaner
}

// NewLocalCache constructs a LocalCache rooted at dir (typically
// $HOME/.cache/nozem/local). maxSizeMB <= 0 uses the default budget.
func NewLocalCache(dir string, maxSizeMB int) *LocalCache {
	if maxSizeMB <= 0 {
		maxSizeMB = defaultLocalCacheMaxSizeMB
	}
	return &LocalCache{dir: dir, cleaner: newCleaner(dir, maxSizeMB)}
}

func (c *LocalCache) shard(locator Locator) string {
	s := string(locator)
	if len(s) < 4 {
		return s
	}
	return s[:4]
}

func (c *LocalCache) tarballPath(locator Locator) string {
	return filepath.Join(c.dir, c.shard(locator), string(locator)+".tar.gz")
}

func (c *LocalCache) indexPath(locator Locator) string {
	return filepath.Join(c.dir, c.shard(locator), string(locator)+".json")
}

// Lookup reports a hit when both the index and tarball for locator exist.
func (c *LocalCache) Lookup(locator Locator) (CachedArtifact, error) {
	raw, err := os.ReadFile(c.indexPath(locator))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: reading local index %s: %w", locator, err)
	}
	if _, err := os.Stat(c.tarballPath(locator)); err != nil {
		return nil, nil
	}

	var idx localIndexSchema
	if err := json.Unmarshal(raw, &idx); err != nil {
		return nil, fmt.Errorf("cache: decoding local index %s: %w", locator, err)
	}

	return &LocalArtifact{cache: c, locator: locator, artifactHash: idx.ArtifactHash}, nil
}

// Store writes locator's tarball and index atomically, then schedules an
// asynchronous size-bounded cleanup.
func (c *LocalCache) Store(locator Locator, artifactHash string, files *fileset.FileSet) error {
	var buf bytes.Buffer
	if err := packTarball(&buf, files); err != nil {
		return fmt.Errorf("cache: packing local tarball %s: %w", locator, err)
	}

	tarPath := c.tarballPath(locator)
	if err := os.MkdirAll(filepath.Dir(tarPath), 0o755); err != nil {
		return fmt.Errorf("cache: creating local cache shard: %w", err)
	}
	if err := atomicWriteFile(tarPath, buf.Bytes(), 0o644); err != nil {
		return err
	}

	idx := localIndexSchema{ArtifactHash: artifactHash, Artifacts: files.ToSchema()}
	encoded, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("cache: encoding local index %s: %w", locator, err)
	}
	if err := atomicWriteFile(c.indexPath(locator), encoded, 0o644); err != nil {
		return err
	}

	c.cleaner.triggerAsync(func(err error) {
		logger.Log.Warn().Err(err).Str("dir", c.dir).Msg("local cache cleanup failed")
	})
	return nil
}
