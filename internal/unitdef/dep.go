package unitdef

import (
	"encoding/json"
	"fmt"
)

// DependencyEdge is one edge out of a Unit: a link to another unit's
// build output, a copy of another unit's files, a pinned external NPM
// package, or an OS-provided executable made available on the sandbox
// PATH.
type DependencyEdge interface {
	isDependencyEdge()
}

// LinkNpmEdge hoists a dependency unit's build output into node_modules
// as a regular package. IncludeExecutables is decoded but the build never
// reads it, so a linked package's executables are not placed in the
// sandbox's bin/.
type LinkNpmEdge struct {
	NodeID             string `mapstructure:"node"`
	IncludeExecutables bool   `mapstructure:"executables"`
}

// CopyEdge copies another unit's output into Subdir of the dependent
// unit's own sandbox tree, rather than hoisting it into node_modules.
type CopyEdge struct {
	NodeID string `mapstructure:"node"`
	Subdir string `mapstructure:"subdir"`
}

// ExternalNpmEdge pins a registry package by name and version range; it
// carries no build-graph edge of its own and resolves straight from the
// package's lockfile entry. Version is the exact version the lockfile
// resolved VersionRange to — it, not the range, identifies the actual
// files on disk at ResolvedLocation.
type ExternalNpmEdge struct {
	Name             string `mapstructure:"name"`
	ResolvedLocation string `mapstructure:"resolvedLocation"`
	VersionRange     string `mapstructure:"versionRange"`
	Version          string `mapstructure:"version"`
}

// OsToolEdge exposes a host executable (resolved from the invoking
// shell's PATH at graph-build time) on the sandbox's restricted PATH.
type OsToolEdge struct {
	Executable string `mapstructure:"executable"`
	RenameTo   string `mapstructure:"rename"`
}

func (LinkNpmEdge) isDependencyEdge()     {}
func (CopyEdge) isDependencyEdge()        {}
func (ExternalNpmEdge) isDependencyEdge() {}
func (OsToolEdge) isDependencyEdge()      {}

// depEnvelope is the on-disk shape of a BuildDepSpec entry: a "type"
// discriminator alongside the union of all variants' fields.
type depEnvelope struct {
	Type             string `json:"type"`
	Node             string `json:"node"`
	Executables      bool   `json:"executables"`
	Subdir           string `json:"subdir"`
	Name             string `json:"name"`
	ResolvedLocation string `json:"resolvedLocation"`
	VersionRange     string `json:"versionRange"`
	Version          string `json:"version"`
	Executable       string `json:"executable"`
	Rename           string `json:"rename"`
}

func decodeDependencyEdges(raw []json.RawMessage) ([]DependencyEdge, error) {
	edges := make([]DependencyEdge, 0, len(raw))
	for i, entry := range raw {
		edge, err := decodeDependencyEdge(entry)
		if err != nil {
			return nil, fmt.Errorf("dependency %d: %w", i, err)
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

func decodeDependencyEdge(data []byte) (DependencyEdge, error) {
	var env depEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding dependency envelope: %w", err)
	}

	payload := map[string]any{
		"node":             env.Node,
		"executables":      env.Executables,
		"subdir":           env.Subdir,
		"name":             env.Name,
		"resolvedLocation": env.ResolvedLocation,
		"versionRange":     env.VersionRange,
		"version":          env.Version,
		"executable":       env.Executable,
		"rename":           env.Rename,
	}

	switch env.Type {
	case "link-npm":
		var edge LinkNpmEdge
		if err := decodeViaMapstructure(payload, &edge); err != nil {
			return nil, err
		}
		return edge, nil
	case "copy":
		var edge CopyEdge
		if err := decodeViaMapstructure(payload, &edge); err != nil {
			return nil, err
		}
		return edge, nil
	case "npm":
		var edge ExternalNpmEdge
		if err := decodeViaMapstructure(payload, &edge); err != nil {
			return nil, err
		}
		return edge, nil
	case "os":
		var edge OsToolEdge
		if err := decodeViaMapstructure(payload, &edge); err != nil {
			return nil, err
		}
		return edge, nil
	default:
		return nil, fmt.Errorf("unknown dependency type %q", env.Type)
	}
}
