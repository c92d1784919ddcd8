package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// BucketConfig names a remote object-store bucket backing the remote
// cache tier.
type BucketConfig struct {
	BucketName  string `mapstructure:"bucketName"`
	Region      string `mapstructure:"region"`
	ProfileName string `mapstructure:"profileName"`
}

// CacheConfig is nozem-cache.json's decoded shape (spec.md §6).
type CacheConfig struct {
	CacheDir    string        `mapstructure:"cacheDir"`
	CacheBucket *BucketConfig `mapstructure:"cacheBucket"`
}

// DefaultCacheConfig returns the configuration used when nozem-cache.json
// is absent: a local tier only, rooted at the default cache home, no
// remote tier.
func DefaultCacheConfig() (*CacheConfig, error) {
	dir, err := LocalCacheDir()
	if err != nil {
		return nil, err
	}
	return &CacheConfig{CacheDir: dir}, nil
}

// CacheConfigLoader locates and decodes nozem-cache.json, the way the
// teacher's ProjectLoader locates and decodes clawker.yaml: viper for
// env-var binding and defaults, mapstructure for the final struct
// population.
type CacheConfigLoader struct {
	workDir string
	viper   *viper.Viper
}

// NewCacheConfigLoader creates a CacheConfigLoader rooted at workDir.
func NewCacheConfigLoader(workDir string) *CacheConfigLoader {
	return &CacheConfigLoader{workDir: workDir, viper: viper.New()}
}

// Path returns nozem-cache.json's path, searching workDir and its
// ancestors, and whether one was found.
func (l *CacheConfigLoader) Path() (string, bool) {
	return findUpward(l.workDir, CacheConfigFileName)
}

// Load decodes nozem-cache.json if present, falling back to
// DefaultCacheConfig when it is not — the file is optional per spec.md
// §6. Environment variables prefixed NOZEM_ override any field (e.g.
// NOZEM_CACHEDIR), matching the teacher's SetEnvPrefix/AutomaticEnv use.
func (l *CacheConfigLoader) Load() (*CacheConfig, error) {
	defaults, err := DefaultCacheConfig()
	if err != nil {
		return nil, err
	}

	l.viper.SetEnvPrefix(EnvPrefix)
	l.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.viper.AutomaticEnv()
	l.viper.SetDefault("cacheDir", defaults.CacheDir)

	if path, ok := l.Path(); ok {
		l.viper.SetConfigFile(path)
		l.viper.SetConfigType("json")
		if err := l.viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var cfg CacheConfig
	if err := l.viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding cache configuration: %w", err)
	}
	return &cfg, nil
}
