package cache

import (
	"github.com/nozem-build/nozem/internal/fileset"
	"github.com/nozem-build/nozem/internal/logger"
	"github.com/nozem-build/nozem/internal/merkle"
)

// Chain composes the three cache tiers into the lookup order the build
// scheduler relies on: in-place, then local, then remote. Any tier may be
// nil, in which case it is skipped — a build with no configured remote
// simply never consults one.
type Chain struct {
	InPlace *InPlaceCache
	Local   *LocalCache
	Remote  *RemoteCache
}

// NewChain builds a Chain from whichever tiers are configured. inPlace is
// expected to always be non-nil; local and remote may be nil.
func NewChain(inPlace *InPlaceCache, local *LocalCache, remote *RemoteCache) *Chain {
	return &Chain{InPlace: inPlace, Local: local, Remote: remote}
}

// Lookup walks the chain in order and returns the first hit. A remote hit
// is wrapped so that fetching it also rewrites the local tier, sparing
// later runs the network round trip.
func (c *Chain) Lookup(packageDir string, locator Locator, currentInputHash string) (CachedArtifact, error) {
	if c.InPlace != nil {
		hit, err := c.InPlace.Lookup(packageDir, currentInputHash)
		if err != nil {
			logger.Log.Debug().Err(err).Str("packageDir", packageDir).Msg("in-place cache lookup failed")
		} else if hit != nil {
			return hit, nil
		}
	}

	if c.Local != nil {
		hit, err := c.Local.Lookup(locator)
		if err != nil {
			logger.Log.Debug().Err(err).Str("locator", string(locator)).Msg("local cache lookup failed")
		} else if hit != nil {
			return hit, nil
		}
	}

	if c.Remote != nil {
		hit, err := c.Remote.Lookup(locator)
		if err != nil {
			logger.Log.Debug().Err(err).Str("locator", string(locator)).Msg("remote cache lookup failed")
		} else if hit != nil {
			return &localRewritingArtifact{CachedArtifact: hit, chain: c, locator: locator}, nil
		}
	}

	return nil, nil
}

// localRewritingArtifact wraps a remote hit so that a successful Fetch also
// populates the local tier, so the next lookup for the same locator is
// answered locally instead of over the network.
type localRewritingArtifact struct {
	CachedArtifact
	chain   *Chain
	locator Locator
}

func (a *localRewritingArtifact) Fetch(targetDir string) (*fileset.FileSet, error) {
	files, err := a.CachedArtifact.Fetch(targetDir)
	if err != nil {
		return nil, err
	}

	if a.chain.Local != nil {
		go func() {
			if err := a.chain.Local.Store(a.locator, a.ArtifactHash(), files); err != nil {
				logger.Log.Warn().Err(err).Str("locator", string(a.locator)).Msg("rewriting remote hit into local cache failed")
			}
		}()
	}
	return files, nil
}

// QueueForStoring pushes a freshly built artifact to every writable tier,
// asynchronously. Failures are logged, never surfaced to the build that
// triggered the store — a cache write failure must not fail a build whose
// own output already succeeded.
func (c *Chain) QueueForStoring(packageDir string, locator Locator, inputTree merkle.Hashable, artifacts *fileset.FileSet, artifactHash string, artifactTree merkle.Hashable) {
	go func() {
		if c.InPlace != nil {
			if err := c.InPlace.Store(packageDir, inputTree, artifacts, artifactHash, artifactTree); err != nil {
				logger.Log.Warn().Err(err).Str("packageDir", packageDir).Msg("storing in-place cache entry failed")
			}
		}
		if c.Local != nil {
			if err := c.Local.Store(locator, artifactHash, artifacts); err != nil {
				logger.Log.Warn().Err(err).Str("locator", string(locator)).Msg("storing local cache entry failed")
			}
		}
		if c.Remote != nil {
			if err := c.Remote.Store(locator, artifactHash, artifacts); err != nil {
				logger.Log.Warn().Err(err).Str("locator", string(locator)).Msg("storing remote cache entry failed")
			}
		}
	}()
}
