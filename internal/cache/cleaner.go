package cache

import (
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/singleflight"
)

// cleaner drops the local directory cache's oldest tarballs until total
// size is back under a budget. It is serialized by a singleflight group
// keyed on a constant: a trigger that arrives while a cleanup is in flight
// joins that run and shares its result. No follow-on run is scheduled
// after the in-flight cleanup finishes.
type cleaner struct {
	dir      string
	maxBytes int64
	inflight singleflight.Group
}

func newCleaner(dir string, maxSizeMB int) *cleaner {
	return &cleaner{dir: dir, maxBytes: int64(maxSizeMB) * 1_000_000}
}

// triggerAsync schedules a cleanup run without blocking the caller. If one
// is already running, this call joins it; no second run is started, either
// alongside it or after it.
func (c *cleaner) triggerAsync(onErr func(error)) {
	go func() {
		_, err, _ := c.inflight.Do("clean", func() (any, error) {
			return nil, c.run()
		})
		if err != nil && onErr != nil {
			onErr(err)
		}
	}()
}

type tarballEntry struct {
	path    string
	size    int64
	modTime int64
}

func (c *cleaner) run() error {
	var entries []tarballEntry
	var total int64

	err := filepath.Walk(c.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".gz" {
			return nil
		}
		entries = append(entries, tarballEntry{path: path, size: info.Size(), modTime: info.ModTime().UnixNano()})
		total += info.Size()
		return nil
	})
	if err != nil {
		return err
	}

	if total <= c.maxBytes {
		return nil
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].modTime < entries[j].modTime })

	for _, e := range entries {
		if total <= c.maxBytes {
			break
		}
		if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
			return err
		}
		// The matching index file shares the same stem with a .json
		// extension; removing it is best-effort since its absence alone
		// does not corrupt the cache (a missing tarball is what matters).
		_ = os.Remove(e.path[:len(e.path)-len(".tar.gz")] + ".json")
		total -= e.size
	}
	return nil
}
