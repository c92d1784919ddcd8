// Package pkgbuild orchestrates one package's hermetic build: composing
// its input merkle, consulting the cache chain, and on a miss, opening a
// sandbox, installing its resolved inputs, running its build (and
// optionally test) command, and snapshotting the result as an artifact.
package pkgbuild

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nozem-build/nozem/internal/cache"
	"github.com/nozem-build/nozem/internal/fileset"
	"github.com/nozem-build/nozem/internal/hoist"
	"github.com/nozem-build/nozem/internal/logger"
	"github.com/nozem-build/nozem/internal/merkle"
	"github.com/nozem-build/nozem/internal/nozemerr"
	"github.com/nozem-build/nozem/internal/sandbox"
	"github.com/nozem-build/nozem/internal/unitdef"
)

// logicVersion is folded into every input hash as a cache buster: bump it
// to invalidate every previously cached artifact after a change to the
// build procedure itself, without touching any package's actual inputs.
const logicVersion = "1"

// PackageBuild holds everything needed to build one unit hermetically (or
// to fall back to the non-hermetic path when one of its dependencies
// isn't hashable).
type PackageBuild struct {
	Unit unitdef.Unit

	// PackageDir is the package's own directory on disk, where the
	// in-place cache sidecar lives and where a non-hermetic build runs
	// directly.
	PackageDir string
	// MonorepoRelPath is the package's root, relative to the monorepo
	// root, mirrored inside the sandbox via Sandbox.MoveSrcDir.
	MonorepoRelPath string

	Sources       *fileset.FileSet
	Deps          map[string]NpmDependencyInput
	OsTools       map[string]OsToolInput
	ExternalFiles map[string]NonPackageFileInput
	Env           map[string]string

	Cache          *cache.Chain
	SandboxBaseDir string
	LogDir         string
	RunTests       bool
}

// Result is the outcome of a successful build: the artifact's content
// hash, its file set, and which tier (or "built") served it.
type Result struct {
	ArtifactHash string
	Artifacts    *fileset.FileSet
	Source       string
}

// IsHermetic reports whether every NPM dependency is hashable. A package
// with any MonoRepoInPlace dependency, even transitively, is not.
func (pb *PackageBuild) IsHermetic() bool {
	for _, d := range pb.Deps {
		if !d.Hashable() {
			return false
		}
	}
	return true
}

// resolveEnv splits the unit's declared env map into the environment the
// build command actually sees (execEnv) and the subset folded into the
// input hash (hashEnv, excluding any key with a leading '&'). A value
// beginning with '|' inherits from the invoking process, falling back to
// the remainder of the string when the process doesn't have it set.
func (pb *PackageBuild) resolveEnv() (execEnv, hashEnv map[string]string) {
	execEnv = make(map[string]string, len(pb.Env))
	hashEnv = make(map[string]string, len(pb.Env))
	for k, v := range pb.Env {
		resolved := v
		if strings.HasPrefix(v, "|") {
			fallback := strings.TrimPrefix(v, "|")
			if pv, ok := os.LookupEnv(k); ok {
				resolved = pv
			} else {
				resolved = fallback
			}
		}
		execEnv[k] = resolved
		if !strings.HasPrefix(k, "&") {
			hashEnv[k] = resolved
		}
	}
	return execEnv, hashEnv
}

// inputTree builds the composed input merkle tree described in spec.md
// §4.6: source files, environment, dependency identities, OS tool
// identities, external file hashes, and a constant cache-buster leaf.
func (pb *PackageBuild) inputTree() *merkle.Composite {
	_, hashEnv := pb.resolveEnv()

	deps := make(map[string]merkle.Hashable, len(pb.Deps))
	for name, d := range pb.Deps {
		deps[name] = merkle.NewDirect(hashString(d.FilesIdentifier()))
	}

	osTools := make(map[string]merkle.Hashable, len(pb.OsTools))
	for name, t := range pb.OsTools {
		osTools[name] = merkle.NewDirect(hashString(t.ResolvedPath))
	}

	externalFiles := make(map[string]merkle.Hashable, len(pb.ExternalFiles))
	for relPath, f := range pb.ExternalFiles {
		digest, err := fileset.FileHash(f.AbsPath)
		if err != nil {
			digest = "error:" + relPath
		}
		externalFiles[relPath] = merkle.NewDirect(digest)
	}

	return merkle.NewComposite(map[string]merkle.Hashable{
		"source":        pb.Sources,
		"env":           merkle.StringMap(hashEnv),
		"deps":          merkle.HashableMap(deps),
		"osTools":       merkle.HashableMap(osTools),
		"externalFiles": merkle.HashableMap(externalFiles),
		"v":             merkle.NewDirect(hashString(logicVersion)),
	})
}

// InputHash is the package's content hash over everything that could
// affect its build output.
func (pb *PackageBuild) InputHash() string {
	return pb.inputTree().Hash()
}

// Build runs the full procedure from spec.md §4.6: for a hermetic
// package, cache lookup then (on miss) a sandboxed build; for a
// non-hermetic package, delegation straight to the source tree.
func (pb *PackageBuild) Build(ctx context.Context) (*Result, error) {
	if !pb.IsHermetic() {
		return pb.buildNonHermetic(ctx)
	}

	inputHash := pb.InputHash()
	locator := cache.Locator(inputHash)

	if hit, err := pb.Cache.Lookup(pb.PackageDir, locator, inputHash); err != nil {
		logger.Log.Debug().Err(err).Str("packageDir", pb.PackageDir).Msg("cache lookup failed")
	} else if hit != nil {
		files, err := hit.Fetch(pb.PackageDir)
		if err != nil {
			return nil, fmt.Errorf("pkgbuild: fetching cached artifact for %s: %w", pb.Unit.ID(), err)
		}
		return &Result{ArtifactHash: hit.ArtifactHash(), Artifacts: files, Source: hit.Source()}, nil
	}

	var result *Result
	err := sandbox.With(pb.SandboxBaseDir, func(sb *sandbox.Sandbox) error {
		if err := sb.TouchFile(".nzmroot"); err != nil {
			return err
		}
		if err := sb.MoveSrcDir(pb.MonorepoRelPath); err != nil {
			return err
		}

		var err error
		switch pb.Unit.(type) {
		case *unitdef.ExtractUnit:
			result, err = pb.buildExtract(sb, locator)
		default:
			result, err = pb.buildCommand(sb, locator)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (pb *PackageBuild) buildCommand(sb *sandbox.Sandbox, locator cache.Locator) (*Result, error) {
	if err := sb.AddSrcFiles(pb.Sources, ""); err != nil {
		return nil, err
	}
	if err := pb.installDependencies(sb); err != nil {
		return nil, err
	}

	if ts, ok := pb.Unit.(*unitdef.TypeScriptBuildUnit); ok && ts.PatchTsconfig {
		if err := patchTsconfig(filepath.Join(sb.SrcDir(), "tsconfig.json")); err != nil {
			return nil, err
		}
	}

	cmd, ok := commandFor(pb.Unit)
	if !ok {
		return nil, nozemerr.ConfigErrorf("unit %s has no build command", pb.Unit.ID())
	}

	execEnv, _ := pb.resolveEnv()
	if err := sb.Execute(cmd, execEnv, pb.LogDir); err != nil {
		return nil, err
	}

	artifacts, err := sb.InSourceArtifacts(artifactMatcher(sb.SrcDir()))
	if err != nil {
		return nil, err
	}

	if pb.RunTests {
		if testCmd, ok := testCommandFor(pb.Unit); ok && testCmd != "" {
			if err := sb.Execute(testCmd, execEnv, pb.LogDir); err != nil {
				return nil, err
			}
		}
	}

	return pb.finishBuild(locator, artifacts)
}

// finishBuild copies the sandbox-rooted artifact back into the package's
// own directory and queues it for storing. The copy happens synchronously,
// before the sandbox is torn down, so the asynchronous cache-store
// goroutine (which reads the files to pack them) is never racing the
// sandbox's own cleanup — it reads from the now-persistent package
// directory instead. This is also what lets the in-place cache tier serve
// the next lookup directly off disk with no fetch at all.
func (pb *PackageBuild) finishBuild(locator cache.Locator, sandboxArtifacts *fileset.FileSet) (*Result, error) {
	if err := sandboxArtifacts.CopyTo(pb.PackageDir); err != nil {
		return nil, fmt.Errorf("pkgbuild: copying artifact back to %s: %w", pb.PackageDir, err)
	}
	artifacts := sandboxArtifacts.Rebase(pb.PackageDir)

	artifactHash := artifacts.Hash()
	pb.Cache.QueueForStoring(pb.PackageDir, locator, pb.inputTree(), artifacts, artifactHash, artifacts)

	return &Result{ArtifactHash: artifactHash, Artifacts: artifacts, Source: "built"}, nil
}

func (pb *PackageBuild) buildExtract(sb *sandbox.Sandbox, locator cache.Locator) (*Result, error) {
	unit := pb.Unit.(*unitdef.ExtractUnit)

	if err := pb.installDependencies(sb); err != nil {
		return nil, err
	}

	matcher := fileset.NewMatcher(sb.SrcDir(), fileset.ModeInclude, unit.ExtractPatterns)
	artifacts, err := sb.InSourceArtifacts(matcher)
	if err != nil {
		return nil, err
	}

	return pb.finishBuild(locator, artifacts)
}

// depInstall is the install-time payload attached to one hoist.DependencyNode
// in the tree installDependencies builds: how to actually place that node
// into the sandbox once hoist.Hoist has decided where in the tree it lands.
type depInstall struct {
	registry *NpmRegistryDependency
	build    *MonoRepoBuild
}

// installDependencies installs every resolved input into the sandbox.
// Registry and bundled (MonoRepoBuild) NPM dependencies are first assembled
// into the nested tree hoist.Hoist expects — walking each registry
// dependency's own on-disk node_modules to surface whatever nesting npm
// itself already left there — hoisted, and only then installed: bundled
// dependencies are copied, registry dependencies are symlinked to their
// real on-disk location. OS tools become bin/ symlinks; external files are
// copied verbatim.
func (pb *PackageBuild) installDependencies(sb *sandbox.Sandbox) error {
	nodeModulesRel, err := filepath.Rel(sb.Root(), sb.SrcDir())
	if err != nil {
		return fmt.Errorf("pkgbuild: resolving node_modules location: %w", err)
	}

	tree, info, err := pb.buildDependencyTree()
	if err != nil {
		return err
	}
	hoist.Hoist(tree, nil)

	if err := installTree(sb, nodeModulesRel, "", tree, info); err != nil {
		return err
	}

	for name, tool := range pb.OsTools {
		if err := sb.InstallExecutable(tool.ResolvedPath, name); err != nil {
			return err
		}
	}

	for relPath, f := range pb.ExternalFiles {
		dst := filepath.Join(sb.SrcDir(), filepath.FromSlash(relPath))
		if err := copyFile(f.AbsPath, dst); err != nil {
			return fmt.Errorf("pkgbuild: installing external file %s: %w", relPath, err)
		}
	}

	return nil
}

// buildDependencyTree constructs the hoist.DependencyNode tree rooted at
// this package for its own direct dependencies. MonoRepoBuild dependencies
// are leaves — nozem builds them as a whole, so there's no further nesting
// to discover. Registry dependencies recurse into their own node_modules,
// since that's exactly the "deeply nested, version-conflicting tree" hoist
// is built to flatten.
func (pb *PackageBuild) buildDependencyTree() (*hoist.DependencyNode, map[*hoist.DependencyNode]depInstall, error) {
	root := hoist.NewDependencyNode(pb.Unit.ID(), "")
	info := map[*hoist.DependencyNode]depInstall{}

	for name, dep := range pb.Deps {
		switch d := dep.(type) {
		case *NpmRegistryDependency:
			child := registryDependencyNode(name, d, info)
			root.AddDependency(child)
		case *MonoRepoBuild:
			child := hoist.NewDependencyNode(name, d.ArtifactHash)
			info[child] = depInstall{build: d}
			root.AddDependency(child)
		case *MonoRepoInPlace:
			return nil, nil, fmt.Errorf("pkgbuild: %s depends on non-hermetic %s; should have taken the non-hermetic path", pb.Unit.ID(), d.NodeID)
		}
	}

	return root, info, nil
}

// registryDependencyNode builds d's node and, if d.Dir has its own
// node_modules, recurses into it to pick up whatever nested copies npm
// itself already resolved there. A directory that can't be read or doesn't
// parse as a package is treated as a leaf rather than failing the build —
// hoisting an extra level of detail is a nice-to-have, not a requirement for
// correctness, since d itself is still installed either way.
func registryDependencyNode(name string, d *NpmRegistryDependency, info map[*hoist.DependencyNode]depInstall) *hoist.DependencyNode {
	n := hoist.NewDependencyNode(name, d.Version)
	info[n] = depInstall{registry: d}

	entries, err := os.ReadDir(filepath.Join(d.Dir, "node_modules"))
	if err != nil {
		return n
	}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		childDir := filepath.Join(d.Dir, "node_modules", entry.Name())
		version, err := packageVersion(childDir)
		if err != nil {
			continue
		}
		n.AddDependency(registryDependencyNode(entry.Name(), &NpmRegistryDependency{
			Name:    entry.Name(),
			Version: version,
			Dir:     childDir,
		}, info))
	}
	return n
}

// packageVersion reads the "version" field out of dir/package.json.
func packageVersion(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return "", err
	}
	var manifest struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return "", err
	}
	return manifest.Version, nil
}

// installTree installs every (name, child) entry of n — the tree after
// hoist.Hoist has decided where each dependency belongs — then recurses
// into whatever is still nested under child. rootPrefix is relative to
// sb.Root(), the path InstallSymlink expects for registry dependencies;
// srcPrefix is relative to sb.SrcDir(), the path AddSrcFiles expects for
// bundled copies — the two diverge by sb.SrcDir()'s own offset from
// sb.Root(), so both must be threaded through the recursion separately.
func installTree(sb *sandbox.Sandbox, rootPrefix, srcPrefix string, n *hoist.DependencyNode, info map[*hoist.DependencyNode]depInstall) error {
	for name, child := range n.Dependencies {
		rootDest := filepath.Join(rootPrefix, "node_modules", name)
		srcDest := filepath.Join(srcPrefix, "node_modules", name)

		inst := info[child]
		switch {
		case inst.registry != nil:
			if err := sb.InstallSymlink(rootDest, inst.registry.Dir); err != nil {
				return err
			}
		case inst.build != nil:
			if err := sb.AddSrcFiles(inst.build.Artifact, srcDest); err != nil {
				return err
			}
		}

		if err := installTree(sb, rootDest, srcDest, child, info); err != nil {
			return err
		}
	}
	return nil
}

// buildNonHermetic runs the unit's build command directly in its own
// source directory, with the invoking process's full environment, and
// skips caching entirely — a package depending on any MonoRepoInPlace
// dependency has no stable identity to cache under.
func (pb *PackageBuild) buildNonHermetic(ctx context.Context) (*Result, error) {
	cmd, ok := commandFor(pb.Unit)
	if !ok {
		return nil, nozemerr.ConfigErrorf("unit %s has no build command", pb.Unit.ID())
	}

	execEnv, _ := pb.resolveEnv()
	if err := executeInPlace(cmd, pb.PackageDir, execEnv, pb.LogDir); err != nil {
		return nil, err
	}

	artifacts, err := fileset.Walk(pb.PackageDir, artifactMatcher(pb.PackageDir))
	if err != nil {
		return nil, err
	}

	return &Result{ArtifactHash: artifacts.Hash(), Artifacts: artifacts, Source: "non-hermetic"}, nil
}

func commandFor(u unitdef.Unit) (string, bool) {
	switch unit := u.(type) {
	case *unitdef.TypeScriptBuildUnit:
		return unit.BuildCommand, unit.BuildCommand != ""
	case *unitdef.CommandUnit:
		return unit.BuildCommand, unit.BuildCommand != ""
	default:
		return "", false
	}
}

// testCommandFor reports the unit's declared test command, if any.
func testCommandFor(u unitdef.Unit) (string, bool) {
	switch unit := u.(type) {
	case *unitdef.TypeScriptBuildUnit:
		return unit.TestCommand, unit.TestCommand != ""
	case *unitdef.CommandUnit:
		return unit.TestCommand, unit.TestCommand != ""
	default:
		return "", false
	}
}

// artifactMatcher excludes node_modules and TypeScript's incremental-build
// bookkeeping files from an artifact snapshot.
func artifactMatcher(root string) fileset.PathMatcher {
	return fileset.NewMatcher(root, fileset.ModeExclude, []string{"node_modules", "*.tsbuildinfo"})
}
