package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/nozem-build/nozem/internal/fileset"
	"github.com/nozem-build/nozem/internal/logger"
)

// ObjectStore is the minimal key/value blob contract the remote cache tier
// needs. A concrete implementation (S3-like, or anything else addressable
// by a string key) satisfies this without the cache package knowing
// anything about its transport.
type ObjectStore interface {
	// Get returns the object's bytes, or an error satisfying
	// errors.Is(err, ErrObjectNotFound) when the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	// List enumerates keys with the given prefix, used by the background
	// mirror scan to discover index files not yet present locally.
	List(ctx context.Context, prefix string) ([]string, error)
}

// ErrObjectNotFound is returned by an ObjectStore.Get for a missing key.
var ErrObjectNotFound = fmt.Errorf("cache: object not found")

const (
	remoteIndexPrefix = "nozem/index/"
	remoteDataPrefix  = "nozem/data/"
)

// RemoteArtifact is a hit from the remote tier; Fetch downloads and unpacks
// its tarball.
type RemoteArtifact struct {
	cache        *RemoteCache
	locator      Locator
	artifactHash string
}

func (a *RemoteArtifact) Source() string       { return "remote" }
func (a *RemoteArtifact) ArtifactHash() string { return a.artifactHash }

func (a *RemoteArtifact) Fetch(targetDir string) (*fileset.FileSet, error) {
	data, err := a.cache.store.Get(context.Background(), remoteDataPrefix+string(a.locator)+".tar.gz")
	if err != nil {
		a.cache.readDisabled.Store(true)
		return nil, fmt.Errorf("cache: fetching remote tarball %s: %w", a.locator, err)
	}

	paths, err := unpackTarball(bytes.NewReader(data), targetDir)
	if err != nil {
		return nil, fmt.Errorf("cache: unpacking remote tarball %s: %w", a.locator, err)
	}
	return fileset.New(targetDir, paths), nil
}

// RemoteCache is the third cache tier: an object store addressed by
// hash-derived keys, guarded by two independent circuit breakers so a
// transient outage degrades the build to "as if the cache were absent"
// rather than failing it.
type RemoteCache struct {
	store         ObjectStore
	mirrorDir     string
	readDisabled  atomic.Bool
	writeDisabled atomic.Bool
}

// NewRemoteCache wraps store. mirrorDir, if non-empty, is where the
// background mirror scan copies remote index files so subsequent lookups
// can be answered without a network round trip.
func NewRemoteCache(store ObjectStore, mirrorDir string) *RemoteCache {
	return &RemoteCache{store: store, mirrorDir: mirrorDir}
}

// StartMirrorScan copies any remote index files missing from mirrorDir into
// it, in the background. Intended to be called once at startup; errors are
// logged, not returned, since this is a cache-warming optimization only.
func (c *RemoteCache) StartMirrorScan(ctx context.Context) {
	if c.mirrorDir == "" {
		return
	}
	go func() {
		if err := c.mirrorScan(ctx); err != nil {
			logger.Log.Debug().Err(err).Msg("remote cache mirror scan failed")
		}
	}()
}

func (c *RemoteCache) mirrorScan(ctx context.Context) error {
	keys, err := c.store.List(ctx, remoteIndexPrefix)
	if err != nil {
		c.readDisabled.Store(true)
		return err
	}

	for _, key := range keys {
		locator := Locator(trimIndexKey(key))
		localPath := filepath.Join(c.mirrorDir, string(locator)+".json")
		if _, err := os.Stat(localPath); err == nil {
			continue
		}

		data, err := c.store.Get(ctx, key)
		if err != nil {
			continue
		}
		if err := atomicWriteFile(localPath, data, 0o644); err != nil {
			logger.Log.Debug().Err(err).Str("key", key).Msg("mirroring remote index entry failed")
		}
	}
	return nil
}

func trimIndexKey(key string) string {
	name := filepath.Base(key)
	const ext = ".json"
	if len(name) > len(ext) && name[len(name)-len(ext):] == ext {
		return name[:len(name)-len(ext)]
	}
	return name
}

// Lookup reads locator's index object. A disabled read breaker always
// reports a miss without touching the store.
func (c *RemoteCache) Lookup(locator Locator) (CachedArtifact, error) {
	if c.readDisabled.Load() {
		return nil, nil
	}

	data, err := c.store.Get(context.Background(), remoteIndexPrefix+string(locator)+".json")
	if errors.Is(err, ErrObjectNotFound) {
		return nil, nil
	}
	if err != nil {
		c.readDisabled.Store(true)
		return nil, fmt.Errorf("cache: reading remote index %s: %w", locator, err)
	}

	var idx localIndexSchema
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("cache: decoding remote index %s: %w", locator, err)
	}
	return &RemoteArtifact{cache: c, locator: locator, artifactHash: idx.ArtifactHash}, nil
}

// Store uploads locator's index and tarball. A disabled write breaker makes
// this a silent no-op.
func (c *RemoteCache) Store(locator Locator, artifactHash string, files *fileset.FileSet) error {
	if c.writeDisabled.Load() {
		return nil
	}

	var buf bytes.Buffer
	if err := packTarball(&buf, files); err != nil {
		return fmt.Errorf("cache: packing remote tarball %s: %w", locator, err)
	}

	ctx := context.Background()
	if err := c.store.Put(ctx, remoteDataPrefix+string(locator)+".tar.gz", buf.Bytes()); err != nil {
		c.writeDisabled.Store(true)
		return fmt.Errorf("cache: uploading remote tarball %s: %w", locator, err)
	}

	idx := localIndexSchema{ArtifactHash: artifactHash, Artifacts: files.ToSchema()}
	encoded, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("cache: encoding remote index %s: %w", locator, err)
	}
	if err := c.store.Put(ctx, remoteIndexPrefix+string(locator)+".json", encoded); err != nil {
		c.writeDisabled.Store(true)
		return fmt.Errorf("cache: uploading remote index %s: %w", locator, err)
	}
	return nil
}

// FSObjectStore is a filesystem-backed ObjectStore: a reference
// implementation for local development and for environments standing a
// shared mounted directory in for a real remote store. The production
// backend (an actual object-storage SDK) is out of scope here; see
// DESIGN.md for why no such dependency was available to ground it on.
type FSObjectStore struct {
	root string
}

// NewFSObjectStore roots store at dir, creating it if necessary.
func NewFSObjectStore(dir string) (*FSObjectStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: creating object store root: %w", err)
	}
	return &FSObjectStore{root: dir}, nil
}

func (s *FSObjectStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *FSObjectStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, ErrObjectNotFound
	}
	return data, err
}

func (s *FSObjectStore) Put(_ context.Context, key string, data []byte) error {
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return atomicWriteFile(path, data, 0o644)
}

func (s *FSObjectStore) List(_ context.Context, prefix string) ([]string, error) {
	dir := s.path(prefix)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		keys = append(keys, prefix+e.Name())
	}
	return keys, nil
}
