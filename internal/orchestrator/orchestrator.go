// Package orchestrator bridges buildgraph's node scheduler to pkgbuild's
// per-package build procedure: for each node it is handed, it resolves
// the node's dependency edges against already-completed sibling results
// into a pkgbuild.PackageBuild, runs the build, and records the result
// for nodes that depend on it.
package orchestrator

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nozem-build/nozem/internal/buildgraph"
	"github.com/nozem-build/nozem/internal/cache"
	"github.com/nozem-build/nozem/internal/fileset"
	"github.com/nozem-build/nozem/internal/pkgbuild"
	"github.com/nozem-build/nozem/internal/unitdef"
)

// builtInSourceExcludes are always excluded from a package's source
// snapshot, on top of any .gitignore and the unit's own NonSources.
var builtInSourceExcludes = []string{"node_modules", ".nzm-*", "*.tsbuildinfo"}

// Orchestrator drives a buildgraph.Queue's builds against pkgbuild,
// tracking completed results so later nodes can resolve link-npm/copy
// edges onto their producer's artifact.
type Orchestrator struct {
	MonorepoRoot   string
	Cache          *cache.Chain
	SandboxBaseDir string
	LogDir         string
	RunTests       bool

	mu      sync.Mutex
	results map[string]*pkgbuild.Result
}

// New creates an Orchestrator over a monorepo rooted at monorepoRoot.
func New(monorepoRoot string, chain *cache.Chain, sandboxBaseDir, logDir string, runTests bool) *Orchestrator {
	return &Orchestrator{
		MonorepoRoot:   monorepoRoot,
		Cache:          chain,
		SandboxBaseDir: sandboxBaseDir,
		LogDir:         logDir,
		RunTests:       runTests,
		results:        make(map[string]*pkgbuild.Result),
	}
}

// Result returns a completed node's build result, if any.
func (o *Orchestrator) Result(nodeID string) (*pkgbuild.Result, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.results[nodeID]
	return r, ok
}

// BuildFunc is the buildgraph.BuildFunc this Orchestrator drives: it
// resolves n into a PackageBuild, builds it, and stores the result under
// n's identifier for dependents to pick up.
func (o *Orchestrator) BuildFunc(ctx context.Context, n *buildgraph.Node) error {
	pb, err := o.resolve(n)
	if err != nil {
		return err
	}
	result, err := pb.Build(ctx)
	if err != nil {
		return fmt.Errorf("building %s: %w", n.ID(), err)
	}
	o.mu.Lock()
	o.results[n.ID()] = result
	o.mu.Unlock()
	return nil
}

// resolve assembles a pkgbuild.PackageBuild for n, translating each of
// its unitdef.DependencyEdge values into the NPM/OS-tool/external-file
// input pkgbuild expects, using already-completed producer results from
// o.results for link-npm and copy edges.
func (o *Orchestrator) resolve(n *buildgraph.Node) (*pkgbuild.PackageBuild, error) {
	unit := n.Unit
	root, packageRelPath := o.unitRoot(unit)

	var sources *fileset.FileSet
	if _, isExtract := unit.(*unitdef.ExtractUnit); isExtract {
		// ExtractUnit has no source tree of its own: it only repackages
		// its dependencies' artifacts, matched by ExtractPatterns.
		sources = fileset.New(root, nil)
	} else {
		var err error
		sources, err = fileset.Walk(root, fileset.NewGitignoreMatcher(root, append(append([]string{}, builtInSourceExcludes...), nonSourcesOf(unit)...)...))
		if err != nil {
			return nil, fmt.Errorf("walking sources for %s: %w", n.ID(), err)
		}
	}

	deps := make(map[string]pkgbuild.NpmDependencyInput)
	osTools := make(map[string]pkgbuild.OsToolInput)
	externalFiles := make(map[string]pkgbuild.NonPackageFileInput)

	for _, edge := range unit.Deps() {
		switch e := edge.(type) {
		case unitdef.LinkNpmEdge:
			producer := findDependency(n, e.NodeID)
			if producer == nil {
				return nil, fmt.Errorf("%s: link-npm dependency %s not found among its graph edges", n.ID(), e.NodeID)
			}
			name := npmNameFor(producer.Unit)
			result, ok := o.Result(e.NodeID)
			if !ok {
				return nil, fmt.Errorf("%s: dependency %s has no recorded build result", n.ID(), e.NodeID)
			}
			if result.Source == "non-hermetic" {
				deps[name] = &pkgbuild.MonoRepoInPlace{NodeID: e.NodeID}
			} else {
				deps[name] = &pkgbuild.MonoRepoBuild{NodeID: e.NodeID, ArtifactHash: result.ArtifactHash, Artifact: filterPublishedArtifact(result.Artifacts)}
			}
		case unitdef.ExternalNpmEdge:
			deps[e.Name] = &pkgbuild.NpmRegistryDependency{
				Name:    e.Name,
				Version: e.Version,
				Dir:     e.ResolvedLocation,
			}
		case unitdef.OsToolEdge:
			resolved, err := exec.LookPath(e.Executable)
			if err != nil {
				return nil, fmt.Errorf("%s: resolving os-tool %s: %w", n.ID(), e.Executable, err)
			}
			name := e.RenameTo
			if name == "" {
				name = e.Executable
			}
			osTools[name] = pkgbuild.OsToolInput{Name: name, ResolvedPath: resolved}
		case unitdef.CopyEdge:
			result, ok := o.Result(e.NodeID)
			if !ok {
				return nil, fmt.Errorf("%s: dependency %s has no recorded build result", n.ID(), e.NodeID)
			}
			subdir := e.Subdir
			for _, relPath := range result.Artifacts.Paths() {
				externalFiles[filepath.Join(subdir, relPath)] = pkgbuild.NonPackageFileInput{
					RelPath: filepath.Join(subdir, relPath),
					AbsPath: filepath.Join(result.Artifacts.Root(), relPath),
				}
			}
		}
	}

	return &pkgbuild.PackageBuild{
		Unit:            unit,
		PackageDir:      root,
		MonorepoRelPath: packageRelPath,
		Sources:         sources,
		Deps:            deps,
		OsTools:         osTools,
		ExternalFiles:   externalFiles,
		Env:             envOf(unit),
		Cache:           o.Cache,
		SandboxBaseDir:  o.SandboxBaseDir,
		LogDir:          o.LogDir,
		RunTests:        o.RunTests,
	}, nil
}

// unitRoot returns the unit's absolute source directory and its path
// relative to the monorepo root. Extract units have no source tree of
// their own — their root is the monorepo root itself, contributing an
// empty source set.
func (o *Orchestrator) unitRoot(unit unitdef.Unit) (abs, rel string) {
	rooter, ok := unit.(buildgraph.Rooter)
	if !ok {
		return o.MonorepoRoot, "."
	}
	return filepath.Join(o.MonorepoRoot, rooter.Root()), rooter.Root()
}

func nonSourcesOf(unit unitdef.Unit) []string {
	switch u := unit.(type) {
	case *unitdef.TypeScriptBuildUnit:
		return u.NonSources
	case *unitdef.CommandUnit:
		return u.NonSources
	default:
		return nil
	}
}

func envOf(unit unitdef.Unit) map[string]string {
	switch u := unit.(type) {
	case *unitdef.TypeScriptBuildUnit:
		return u.Env
	case *unitdef.CommandUnit:
		return u.Env
	default:
		return nil
	}
}

// findDependency returns n's dependency node with the given identifier,
// or nil if none matches.
func findDependency(n *buildgraph.Node, nodeID string) *buildgraph.Node {
	for _, dep := range n.Dependencies {
		if dep.ID() == nodeID {
			return dep
		}
	}
	return nil
}

// npmNameFor derives the node_modules package name a link-npm producer
// installs under: its own root's base directory name, the monorepo
// convention of one npm package per directory.
func npmNameFor(unit unitdef.Unit) string {
	if rooter, ok := unit.(buildgraph.Rooter); ok && rooter.Root() != "" {
		return filepath.Base(rooter.Root())
	}
	return unit.ID()
}

// filterPublishedArtifact implements spec §4.6's trim of what a link-npm
// dependent actually sees of its producer's build output: a .ts source is
// dropped when a sibling .d.ts of the same stem exists, since the compiled
// declaration is what consumers should type-check against, and
// tsconfig.json never belongs in a dependency's node_modules entry.
// fs.WithoutExtension(".ts") alone would also catch every .d.ts file, so
// the sibling check has to run first.
func filterPublishedArtifact(fs *fileset.FileSet) *fileset.FileSet {
	hasDeclaration := make(map[string]bool, fs.Len())
	for _, p := range fs.Paths() {
		if strings.HasSuffix(p, ".d.ts") {
			hasDeclaration[strings.TrimSuffix(p, ".d.ts")] = true
		}
	}

	return fs.Filter(func(rel string) bool {
		if filepath.Base(rel) == "tsconfig.json" {
			return false
		}
		if strings.HasSuffix(rel, ".ts") && !strings.HasSuffix(rel, ".d.ts") && hasDeclaration[strings.TrimSuffix(rel, ".ts")] {
			return false
		}
		return true
	})
}
