// Package fromlerna provides the from-lerna command: a best-effort
// generator that scans a Lerna-style monorepo for its package manifests
// and emits a nozem.json covering them.
//
// This is deliberately a minimal generator, not a full migration tool: it
// produces one command unit per discovered package, wired together by
// link-npm edges for workspace-internal dependencies and npm edges (using
// the manifest's declared range for both the range and the resolved
// version, since no lockfile is consulted) for everything else. A real
// migration will usually need to hand-edit the result — custom build
// commands, extract units, OS tools — afterward.
package fromlerna

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/nozem-build/nozem/internal/cmdutil"
	"github.com/nozem-build/nozem/internal/config"
	"github.com/nozem-build/nozem/internal/iostreams"
	"github.com/spf13/cobra"
)

// Options holds the from-lerna command's resolved dependencies.
type Options struct {
	IOStreams *iostreams.IOStreams
	WorkDir   func() string

	Force bool
}

// NewCmdFromLerna creates the from-lerna command.
func NewCmdFromLerna(f *cmdutil.Factory, runF func(context.Context, *Options) error) *cobra.Command {
	opts := &Options{
		IOStreams: f.IOStreams,
		WorkDir:   func() string { return f.WorkDir },
	}

	cmd := &cobra.Command{
		Use:   "from-lerna",
		Short: "Generate nozem.json from a Lerna-style monorepo",
		Long: `Scans the current directory for lerna.json and the package manifests its
"packages" globs resolve to, and emits a nozem.json covering them.

The generated unit list is a starting point: review build commands,
external dependency pins, and any package that needs an extract unit
before relying on it.`,
		Args: cmdutil.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if runF != nil {
				return runF(cmd.Context(), opts)
			}
			return fromLernaRun(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "Overwrite an existing nozem.json")

	return cmd
}

func fromLernaRun(opts *Options) error {
	ios := opts.IOStreams
	cs := ios.ColorScheme()

	root := opts.WorkDir()
	lerna, err := readLernaManifest(root)
	if err != nil {
		return err
	}

	pkgDirs, err := resolvePackageDirs(root, lerna.Packages)
	if err != nil {
		return err
	}

	manifests := make(map[string]*packageManifest, len(pkgDirs))
	for _, dir := range pkgDirs {
		m, err := readPackageManifest(filepath.Join(root, dir))
		if err != nil {
			fmt.Fprintf(ios.ErrOut, "%s skipping %s: %v\n", cs.WarningIcon(), dir, err)
			continue
		}
		m.dir = dir
		manifests[m.Name] = m
	}

	doc := generateUnitsDocument(manifests)

	out := filepath.Join(root, config.UnitsFileName)
	if !opts.Force {
		if _, err := os.Stat(out); err == nil {
			return cmdutil.FlagErrorf("%s already exists (use --force to overwrite)", out)
		}
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", config.UnitsFileName, err)
	}
	raw = append(raw, '\n')

	if err := os.WriteFile(out, raw, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", config.UnitsFileName, err)
	}

	fmt.Fprintf(ios.ErrOut, "%s wrote %s with %d unit(s)\n", cs.SuccessIcon(), out, len(doc.Units))
	return nil
}

// lernaManifest is lerna.json's relevant subset.
type lernaManifest struct {
	Packages []string `json:"packages"`
}

func readLernaManifest(root string) (*lernaManifest, error) {
	raw, err := os.ReadFile(filepath.Join(root, "lerna.json"))
	if os.IsNotExist(err) {
		return &lernaManifest{Packages: []string{"packages/*"}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading lerna.json: %w", err)
	}
	var m lernaManifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parsing lerna.json: %w", err)
	}
	if len(m.Packages) == 0 {
		m.Packages = []string{"packages/*"}
	}
	return &m, nil
}

// resolvePackageDirs expands lerna.json's "packages" globs (relative to
// root) into directories that contain a package.json, sorted for
// deterministic output.
func resolvePackageDirs(root string, globs []string) ([]string, error) {
	seen := make(map[string]bool)
	var dirs []string
	for _, glob := range globs {
		matches, err := filepath.Glob(filepath.Join(root, glob))
		if err != nil {
			return nil, fmt.Errorf("expanding package glob %q: %w", glob, err)
		}
		for _, m := range matches {
			if _, err := os.Stat(filepath.Join(m, "package.json")); err != nil {
				continue
			}
			rel, err := filepath.Rel(root, m)
			if err != nil {
				continue
			}
			if !seen[rel] {
				seen[rel] = true
				dirs = append(dirs, rel)
			}
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// packageManifest is the subset of package.json needed to derive a
// command unit and its dependency edges.
type packageManifest struct {
	Name            string            `json:"name"`
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`

	dir string
}

func readPackageManifest(dir string) (*packageManifest, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return nil, err
	}
	var m packageManifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parsing package.json: %w", err)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("package.json has no name")
	}
	return &m, nil
}

// unitsDocument and unitEntry mirror nozem.json's on-disk shape directly
// (rather than going through unitdef.Document, which only decodes).
type unitsDocument struct {
	Units []unitEntry `json:"units"`
}

type unitEntry struct {
	Kind         string            `json:"kind"`
	Identifier   string            `json:"identifier"`
	Root         string            `json:"root"`
	NonSources   []string          `json:"nonSources,omitempty"`
	NonArtifacts []string          `json:"nonArtifacts,omitempty"`
	BuildCommand string            `json:"buildCommand,omitempty"`
	TestCommand  string            `json:"testCommand,omitempty"`
	Env          map[string]string `json:"env,omitempty"`
	Dependencies []depEntry        `json:"dependencies"`
}

type depEntry struct {
	Type             string `json:"type"`
	Node             string `json:"node,omitempty"`
	Executables      bool   `json:"executables,omitempty"`
	Subdir           string `json:"subdir,omitempty"`
	Name             string `json:"name,omitempty"`
	ResolvedLocation string `json:"resolvedLocation,omitempty"`
	VersionRange     string `json:"versionRange,omitempty"`
	Version          string `json:"version,omitempty"`
	Executable       string `json:"executable,omitempty"`
	Rename           string `json:"rename,omitempty"`
}

func generateUnitsDocument(manifests map[string]*packageManifest) *unitsDocument {
	names := make([]string, 0, len(manifests))
	for name := range manifests {
		names = append(names, name)
	}
	sort.Strings(names)

	doc := &unitsDocument{Units: make([]unitEntry, 0, len(names))}
	for _, name := range names {
		m := manifests[name]
		doc.Units = append(doc.Units, unitEntry{
			Kind:         "command",
			Identifier:   m.Name,
			Root:         m.dir,
			NonSources:   []string{"dist", "build"},
			BuildCommand: buildCommandFor(m),
			TestCommand:  m.Scripts["test"],
			Dependencies: dependencyEdgesFor(m, manifests),
		})
	}
	return doc
}

func buildCommandFor(m *packageManifest) string {
	if _, ok := m.Scripts["build"]; ok {
		return "npm run build"
	}
	return ""
}

// dependencyEdgesFor turns package.json's dependency maps into edges:
// link-npm for anything resolved among this monorepo's own packages, npm
// for everything else. An npm edge's versionRange and version are both
// set to the manifest's declared range, since no lockfile is read here.
func dependencyEdgesFor(m *packageManifest, manifests map[string]*packageManifest) []depEntry {
	names := make([]string, 0, len(m.Dependencies)+len(m.DevDependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	for name := range m.DevDependencies {
		if _, ok := m.Dependencies[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	edges := make([]depEntry, 0, len(names))
	for _, name := range names {
		if dep, ok := manifests[name]; ok {
			edges = append(edges, depEntry{Type: "link-npm", Node: dep.Name})
			continue
		}
		versionRange := m.Dependencies[name]
		if versionRange == "" {
			versionRange = m.DevDependencies[name]
		}
		edges = append(edges, depEntry{
			Type:         "npm",
			Name:         name,
			VersionRange: versionRange,
			Version:      versionRange,
		})
	}
	return edges
}
