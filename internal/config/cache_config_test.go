package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheConfigLoaderLoadFallsBackToDefaultsWhenFileAbsent(t *testing.T) {
	workDir := t.TempDir()

	loader := NewCacheConfigLoader(workDir)
	cfg, err := loader.Load()
	require.NoError(t, err)

	defaults, err := DefaultCacheConfig()
	require.NoError(t, err)
	assert.Equal(t, defaults.CacheDir, cfg.CacheDir)
	assert.Nil(t, cfg.CacheBucket)
}

func TestCacheConfigLoaderLoadDecodesFileWhenPresent(t *testing.T) {
	workDir := t.TempDir()
	const raw = `{
		"cacheDir": "/var/nozem/cache",
		"cacheBucket": {
			"bucketName": "nozem-artifacts",
			"region": "us-east-1",
			"profileName": "ci"
		}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(workDir, CacheConfigFileName), []byte(raw), 0o644))

	loader := NewCacheConfigLoader(workDir)
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/nozem/cache", cfg.CacheDir)
	require.NotNil(t, cfg.CacheBucket)
	assert.Equal(t, "nozem-artifacts", cfg.CacheBucket.BucketName)
	assert.Equal(t, "us-east-1", cfg.CacheBucket.Region)
	assert.Equal(t, "ci", cfg.CacheBucket.ProfileName)
}

func TestCacheConfigLoaderLoadFindsFileFromNestedWorkDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, CacheConfigFileName), []byte(`{"cacheDir": "/srv/cache"}`), 0o644))

	nested := filepath.Join(root, "packages", "a")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	loader := NewCacheConfigLoader(nested)
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "/srv/cache", cfg.CacheDir)
}

func TestCacheConfigLoaderEnvVarOverridesCacheDir(t *testing.T) {
	workDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workDir, CacheConfigFileName), []byte(`{"cacheDir": "/from/file"}`), 0o644))

	t.Setenv("NOZEM_CACHEDIR", "/from/env")

	loader := NewCacheConfigLoader(workDir)
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.CacheDir)
}
