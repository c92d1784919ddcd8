// Package config locates and loads nozem's two on-disk configuration
// files: the required unit-definitions file (nozem.json) and the optional
// cache-tier configuration (nozem-cache.json), both searched for upward
// from the working directory the way the teacher's ProjectLoader resolves
// clawker.yaml relative to a project root.
package config

const (
	// UnitsFileName is the required unit-definitions file's name.
	UnitsFileName = "nozem.json"
	// CacheConfigFileName is the optional cache-tier configuration file's name.
	CacheConfigFileName = "nozem-cache.json"

	// EnvPrefix is the prefix viper binds environment variable overrides
	// of CacheConfig fields under (e.g. NOZEM_CACHEDIR).
	EnvPrefix = "NOZEM"

	// CacheHomeEnv overrides the default cache home directory.
	CacheHomeEnv = "NOZEM_CACHE_HOME"
)
