package merkle

import (
	"path"
	"sort"
)

// DiffKind identifies the shape of one MerkleDifference entry.
type DiffKind int

const (
	// Added means a path exists in B but not in A.
	Added DiffKind = iota
	// Removed means a path exists in A but not in B.
	Removed
	// Changed means a Direct leaf (or a non-composite pair) differs.
	Changed
)

func (k DiffKind) String() string {
	switch k {
	case Added:
		return "add"
	case Removed:
		return "remove"
	case Changed:
		return "change"
	default:
		return "unknown"
	}
}

// Diff is one entry of a MerkleDifference: add(path, newHash),
// remove(path, oldHash), or change(path, oldHash, newHash).
type Diff struct {
	Kind    DiffKind
	Path    string
	OldHash string
	NewHash string
}

// CompareResult is the outcome of Compare: either Same, or a list of Diffs
// explaining why two Hashables differ.
type CompareResult struct {
	Same  bool
	Diffs []Diff
}

// Compare walks two Hashable trees and explains their differences. The
// recursion rule: when both corresponding children are Composite and their
// hashes differ, descend into them; when either side is a Direct leaf (or
// the hashes are equal), stop — emitting a Changed diff only in the former
// case.
func Compare(a, b Hashable) CompareResult {
	diffs := compareAt("", a, b)
	return CompareResult{Same: len(diffs) == 0, Diffs: diffs}
}

func compareAt(at string, a, b Hashable) []Diff {
	if a.Hash() == b.Hash() {
		return nil
	}

	ac, aComposite := a.(ElementProvider)
	bc, bComposite := b.(ElementProvider)
	if !aComposite || !bComposite {
		return []Diff{{Kind: Changed, Path: at, OldHash: a.Hash(), NewHash: b.Hash()}}
	}

	aElems := ac.HashableElements()
	bElems := bc.HashableElements()

	keySet := make(map[string]struct{}, len(aElems)+len(bElems))
	for k := range aElems {
		keySet[k] = struct{}{}
	}
	for k := range bElems {
		keySet[k] = struct{}{}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var diffs []Diff
	for _, k := range keys {
		childPath := joinPath(at, k)
		av, aok := aElems[k]
		bv, bok := bElems[k]
		switch {
		case aok && !bok:
			diffs = append(diffs, Diff{Kind: Removed, Path: childPath, OldHash: av.Hash()})
		case !aok && bok:
			diffs = append(diffs, Diff{Kind: Added, Path: childPath, NewHash: bv.Hash()})
		default:
			diffs = append(diffs, compareAt(childPath, av, bv)...)
		}
	}
	return diffs
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return path.Join(base, key)
}
