package cmdutil

import (
	"os"
	"sync"

	"github.com/nozem-build/nozem/internal/config"
	"github.com/nozem-build/nozem/internal/iostreams"
)

// Factory provides shared dependencies for CLI commands. Configuration
// loaders are lazily initialized and cached for the Factory's lifetime,
// since WorkDir doesn't change once the root command has resolved it.
type Factory struct {
	WorkDir string
	Debug   bool

	Version string
	Commit  string

	IOStreams *iostreams.IOStreams

	unitsOnce   sync.Once
	unitsLoader *config.UnitsLoader

	cacheConfigOnce   sync.Once
	cacheConfigLoader *config.CacheConfigLoader
}

// New creates a new Factory with the given version information.
func New(version, commit string) *Factory {
	ios := iostreams.NewIOStreams()

	if ios.IsOutputTTY() {
		ios.DetectTerminalTheme()
		if os.Getenv("NO_COLOR") != "" {
			ios.SetColorEnabled(false)
		}
	} else {
		ios.SetColorEnabled(false)
	}

	return &Factory{
		Version:   version,
		Commit:    commit,
		IOStreams: ios,
	}
}

// UnitsLoader returns the nozem.json loader rooted at WorkDir.
func (f *Factory) UnitsLoader() *config.UnitsLoader {
	f.unitsOnce.Do(func() {
		f.unitsLoader = config.NewUnitsLoader(f.WorkDir)
	})
	return f.unitsLoader
}

// CacheConfigLoader returns the nozem-cache.json loader rooted at WorkDir.
func (f *Factory) CacheConfigLoader() *config.CacheConfigLoader {
	f.cacheConfigOnce.Do(func() {
		f.cacheConfigLoader = config.NewCacheConfigLoader(f.WorkDir)
	})
	return f.cacheConfigLoader
}
