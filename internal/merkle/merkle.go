// Package merkle implements the hash engine shared by every other nozem
// component: a content hash over heterogeneous trees of files, dicts, and
// nested composites, with canonical (order-independent) hashing, diffing,
// and depth-truncated serialization.
package merkle

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"sync"
)

// Hashable is anything that can produce a stable content hash.
type Hashable interface {
	// Hash returns a lowercase hex digest.
	Hash() string
}

// ElementProvider is implemented by Composite hashables: it exposes the
// named children whose hashes are folded into this node's own hash.
// A Hashable that does not implement ElementProvider is a Direct leaf.
type ElementProvider interface {
	Hashable
	HashableElements() map[string]Hashable
}

// Direct is a leaf Hashable wrapping a caller-provided digest, e.g. a
// file's content hash or a precomputed version string's hash.
type Direct struct {
	digest string
}

// NewDirect wraps an already-computed hex digest as a Hashable leaf.
func NewDirect(digest string) Direct {
	return Direct{digest: digest}
}

// Hash returns the wrapped digest unchanged.
func (d Direct) Hash() string {
	return d.digest
}

// Composite is a Hashable whose children are themselves Hashable (Direct
// or Composite). Its hash is the digest of "key=childHash\n" concatenated
// over keys in ascending lexicographic order, so two composites with the
// same elements in different insertion order hash identically.
//
// The computed hash is memoized per-process, keyed by Composite identity
// (a *Composite pointer), matching the source design's per-object cache.
type Composite struct {
	mu       sync.Mutex
	elements map[string]Hashable
	hash     string
	computed bool
}

// NewComposite builds a Composite over the given named children. The map
// is not copied; do not mutate it after construction — Composite is meant
// to be immutable once built, like every other Hashable in this package.
func NewComposite(elements map[string]Hashable) *Composite {
	if elements == nil {
		elements = map[string]Hashable{}
	}
	return &Composite{elements: elements}
}

// HashableElements returns the composite's named children.
func (c *Composite) HashableElements() map[string]Hashable {
	return c.elements
}

// Hash computes (or returns the memoized) SHA-1 hex digest.
func (c *Composite) Hash() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.computed {
		return c.hash
	}

	keys := make([]string, 0, len(c.elements))
	for k := range c.elements {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha1.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte("="))
		h.Write([]byte(c.elements[k].Hash()))
		h.Write([]byte("\n"))
	}

	c.hash = hex.EncodeToString(h.Sum(nil))
	c.computed = true
	return c.hash
}

// StringMap builds a Composite over a map of plain strings, each wrapped
// as a Direct leaf. Convenience for env-var and similar flat maps.
func StringMap(m map[string]string) *Composite {
	elements := make(map[string]Hashable, len(m))
	for k, v := range m {
		elements[k] = NewDirect(v)
	}
	return NewComposite(elements)
}

// HashableMap builds a Composite directly from an already-Hashable map.
func HashableMap(m map[string]Hashable) *Composite {
	return NewComposite(m)
}
