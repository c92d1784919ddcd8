package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nozem-build/nozem/internal/fileset"
)

func TestFSObjectStoreGetMissing(t *testing.T) {
	store, err := NewFSObjectStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "nozem/index/missing.json")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestFSObjectStorePutThenGet(t *testing.T) {
	store, err := NewFSObjectStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), "nozem/index/abc.json", []byte(`{"ok":true}`)))
	data, err := store.Get(context.Background(), "nozem/index/abc.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))
}

func TestRemoteCacheStoreThenLookupRoundTrip(t *testing.T) {
	store, err := NewFSObjectStore(t.TempDir())
	require.NoError(t, err)
	c := NewRemoteCache(store, "")

	srcDir := t.TempDir()
	writeFile(t, srcDir, "dist/bundle.js", "console.log(2)")
	artifacts := fileset.New(srcDir, []string{"dist/bundle.js"})

	locator := Locator("cafef00d12345678")
	require.NoError(t, c.Store(locator, artifacts.Hash(), artifacts))

	hit, err := c.Lookup(locator)
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "remote", hit.Source())
	assert.Equal(t, artifacts.Hash(), hit.ArtifactHash())

	destDir := t.TempDir()
	files, err := hit.Fetch(destDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"dist/bundle.js"}, files.Paths())
}

func TestRemoteCacheMissWhenEmpty(t *testing.T) {
	store, err := NewFSObjectStore(t.TempDir())
	require.NoError(t, err)
	c := NewRemoteCache(store, "")

	hit, err := c.Lookup("nope")
	require.NoError(t, err)
	assert.Nil(t, hit)
}

func TestRemoteCacheTripsReadBreakerOnFailure(t *testing.T) {
	c := NewRemoteCache(failingObjectStore{}, "")

	_, err := c.Lookup("anything")
	require.Error(t, err)
	assert.True(t, c.readDisabled.Load())

	// Once tripped, further lookups short-circuit to a clean miss instead
	// of calling the store again.
	hit, err := c.Lookup("anything")
	require.NoError(t, err)
	assert.Nil(t, hit)
}

func TestRemoteCacheTripsWriteBreakerOnFailure(t *testing.T) {
	c := NewRemoteCache(failingObjectStore{}, "")
	srcDir := t.TempDir()
	writeFile(t, srcDir, "dist/bundle.js", "x")
	artifacts := fileset.New(srcDir, []string{"dist/bundle.js"})

	err := c.Store("locator", artifacts.Hash(), artifacts)
	require.Error(t, err)
	assert.True(t, c.writeDisabled.Load())

	// A second store call after the breaker trips is a silent no-op.
	assert.NoError(t, c.Store("locator", artifacts.Hash(), artifacts))
}

type failingObjectStore struct{}

func (failingObjectStore) Get(context.Context, string) ([]byte, error) {
	return nil, assertErr
}
func (failingObjectStore) Put(context.Context, string, []byte) error {
	return assertErr
}
func (failingObjectStore) List(context.Context, string) ([]string, error) {
	return nil, assertErr
}

var assertErr = errStub("simulated object store failure")

type errStub string

func (e errStub) Error() string { return string(e) }
