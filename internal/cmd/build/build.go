// Package build provides the build command: loads nozem.json, selects the
// target nodes, and drives a buildgraph.Queue over them through an
// orchestrator.Orchestrator.
package build

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nozem-build/nozem/internal/buildgraph"
	"github.com/nozem-build/nozem/internal/cache"
	"github.com/nozem-build/nozem/internal/cmdutil"
	"github.com/nozem-build/nozem/internal/config"
	"github.com/nozem-build/nozem/internal/iostreams"
	"github.com/nozem-build/nozem/internal/logger"
	"github.com/nozem-build/nozem/internal/nozemerr"
	"github.com/nozem-build/nozem/internal/orchestrator"
	"github.com/nozem-build/nozem/internal/signals"
	"github.com/spf13/cobra"
)

// Options holds the build command's resolved flags and dependencies.
type Options struct {
	IOStreams         *iostreams.IOStreams
	UnitsLoader       func() *config.UnitsLoader
	CacheConfigLoader func() *config.CacheConfigLoader

	Targets     []string
	Concurrency int
	Bail        bool
	NoBail      bool
	Down        bool
	Verbose     bool
	JSON        bool
}

// buildSummary is the --json output shape: one line per built node plus
// the overall failed/pruned/stuck counts from buildgraph.Result.
type buildSummary struct {
	Built  []string            `json:"built"`
	Failed []string            `json:"failed"`
	Pruned int                 `json:"pruned"`
	Stuck  map[string][]string `json:"stuck,omitempty"`
}

// NewCmdBuild creates the build command.
func NewCmdBuild(f *cmdutil.Factory, runF func(context.Context, *Options) error) *cobra.Command {
	opts := &Options{
		IOStreams:         f.IOStreams,
		UnitsLoader:       f.UnitsLoader,
		CacheConfigLoader: f.CacheConfigLoader,
	}

	cmd := &cobra.Command{
		Use:   "build [TARGET...]",
		Short: "Build one or more packages and their dependencies",
		Long: `Builds the packages named by TARGET — package identifiers or directories —
plus everything they transitively depend on. With no TARGET, builds the
whole graph.

Completed builds are served from the artifact cache instead of re-running
when a package's input hash is unchanged.`,
		Example: `  # Build everything
  nozem build

  # Build one package and its dependencies, with concurrency 8
  nozem build -c 8 packages/api

  # Build a package and everything that depends on it too
  nozem build --down packages/core

  # Keep building the rest of the graph past the first failure
  nozem build --no-bail`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Targets = args
			if runF != nil {
				return runF(cmd.Context(), opts)
			}
			return buildRun(cmd.Context(), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Concurrency, "concurrency", "c", 4, "Number of packages to build at once")
	cmd.Flags().BoolVarP(&opts.Bail, "bail", "b", true, "Stop on the first failure")
	cmd.Flags().BoolVar(&opts.NoBail, "no-bail", false, "Continue building the rest of the graph past a failure")
	cmd.Flags().BoolVarP(&opts.Down, "down", "d", false, "Also include nodes that transitively depend on the selected targets")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Increase log verbosity")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Print a machine-readable build summary to stdout instead of status lines")

	return cmd
}

func buildRun(ctx context.Context, opts *Options) error {
	ctx, cancel := signals.SetupSignalContext(ctx)
	defer cancel()

	ios := opts.IOStreams
	cs := ios.ColorScheme()

	if opts.NoBail {
		opts.Bail = false
	}

	doc, err := opts.UnitsLoader().Load()
	if err != nil {
		return err
	}

	monorepoRoot, err := opts.UnitsLoader().MonorepoRoot()
	if err != nil {
		return err
	}

	graph, err := buildgraph.Load(*doc)
	if err != nil {
		return err
	}

	nodes, err := selectNodes(graph, monorepoRoot, opts.Targets, opts.Down)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return nozemerr.ConfigErrorf("no nodes are buildable: the selection is empty")
	}

	cacheCfg, err := opts.CacheConfigLoader().Load()
	if err != nil {
		return err
	}
	chain, err := buildCacheChain(cacheCfg)
	if err != nil {
		return err
	}

	sandboxBaseDir, err := os.MkdirTemp("", "nozem-sandbox-")
	if err != nil {
		return fmt.Errorf("creating sandbox base directory: %w", err)
	}
	defer os.RemoveAll(sandboxBaseDir)

	logsDir, err := config.LogsDir()
	if err != nil {
		logsDir = sandboxBaseDir
	}

	orch := orchestrator.New(monorepoRoot, chain, sandboxBaseDir, logsDir, false)

	mode := buildgraph.Bail
	if !opts.Bail {
		mode = buildgraph.Continue
	}

	queue := buildgraph.NewQueue(nodes, opts.Concurrency, mode, orch.BuildFunc)

	logger.Info().
		Int("nodes", len(nodes)).
		Int("concurrency", opts.Concurrency).
		Bool("bail", opts.Bail).
		Msg("starting build")

	var result *buildgraph.Result
	runErr := ios.RunWithProgress(fmt.Sprintf("Building %d package(s)", len(nodes)), func() error {
		var err error
		result, err = queue.Run(ctx)
		return err
	})
	if runErr != nil {
		fmt.Fprintf(ios.ErrOut, "%s %v\n", cs.FailureIcon(), runErr)
		return cmdutil.SilentError
	}

	if opts.JSON {
		return printSummaryJSON(ios.Out, nodes, result)
	}

	if err := printSummaryTable(ios, nodes, result); err != nil {
		return fmt.Errorf("writing build summary: %w", err)
	}

	footer := iostreams.FlexRow(ios.TerminalWidth(),
		fmt.Sprintf("%s built %d/%d package(s)", cs.SuccessIcon(), len(nodes)-len(result.Failed), len(nodes)),
		"",
		fmt.Sprintf("%d pruned", result.Pruned))
	fmt.Fprintln(ios.ErrOut, footer)

	if len(result.Failed) > 0 {
		return cmdutil.SilentError
	}
	return nil
}

// printSummaryTable renders one row per node (status built/failed/stuck) to
// ios.Out, styled when the output is an interactive terminal and plain
// tab-separated otherwise.
func printSummaryTable(ios *iostreams.IOStreams, nodes []*buildgraph.Node, result *buildgraph.Result) error {
	failed := make(map[string]bool, len(result.Failed))
	for _, id := range result.Failed {
		failed[id] = true
	}

	cs := ios.ColorScheme()
	table := ios.NewTablePrinter("PACKAGE", "STATUS")
	for _, n := range nodes {
		id := n.ID()
		status := cs.Green("built")
		if deps, stuck := result.Stuck[id]; stuck {
			status = cs.Yellow(fmt.Sprintf("stuck: waiting on %s", strings.Join(deps, ", ")))
		} else if failed[id] {
			status = cs.Red("failed")
		}
		table.AddRow(id, status)
	}

	return table.Render()
}

// printSummaryJSON writes a buildSummary to w and, for parity with the
// text path, still signals failure via cmdutil.SilentError so the exit
// code is correct even though the failure details already went to stdout.
func printSummaryJSON(w io.Writer, nodes []*buildgraph.Node, result *buildgraph.Result) error {
	failed := make(map[string]bool, len(result.Failed))
	for _, id := range result.Failed {
		failed[id] = true
	}

	summary := buildSummary{
		Failed: result.Failed,
		Pruned: result.Pruned,
		Stuck:  result.Stuck,
	}
	for _, n := range nodes {
		if !failed[n.ID()] {
			summary.Built = append(summary.Built, n.ID())
		}
	}

	if err := cmdutil.WriteJSON(w, summary); err != nil {
		return fmt.Errorf("writing build summary: %w", err)
	}
	if len(result.Failed) > 0 {
		return cmdutil.SilentError
	}
	return nil
}

// selectNodes implements spec.md §6/§4.7's target-selection rules: no
// targets means the whole graph; identifiers and directories are unioned
// together with their incoming closure, plus the outgoing closure too
// when down is set.
func selectNodes(graph *buildgraph.Graph, monorepoRoot string, targets []string, down bool) ([]*buildgraph.Node, error) {
	if len(targets) == 0 {
		return buildgraph.SelectAll(graph), nil
	}

	var identifiers, dirs []string
	for _, t := range targets {
		if _, ok := graph.Nodes[t]; ok {
			identifiers = append(identifiers, t)
			continue
		}
		dirs = append(dirs, relativeToMonorepo(monorepoRoot, t))
	}

	var selected []*buildgraph.Node
	if len(identifiers) > 0 {
		byID, err := buildgraph.SelectByIdentifiers(graph, identifiers)
		if err != nil {
			return nil, err
		}
		selected = buildgraph.Union(selected, byID)
	}
	if len(dirs) > 0 {
		selected = buildgraph.Union(selected, buildgraph.SelectByDirectories(graph, dirs))
	}

	seed := buildgraph.IncomingClosure(selected)
	if down {
		seed = buildgraph.Union(seed, buildgraph.OutgoingClosure(selected))
	}
	return seed, nil
}

// relativeToMonorepo converts a target argument that looks like a
// filesystem path into a path relative to the monorepo root, the form
// unitdef.Unit.Root values are stored in.
func relativeToMonorepo(monorepoRoot, target string) string {
	if filepath.IsAbs(target) {
		rel, err := filepath.Rel(monorepoRoot, target)
		if err == nil {
			return rel
		}
	}
	return target
}

// buildCacheChain wires the in-place and local tiers unconditionally, and
// the remote tier only when a bucket is configured — using FSObjectStore
// as the only object-store backend this build carries.
func buildCacheChain(cfg *config.CacheConfig) (*cache.Chain, error) {
	inPlace := cache.NewInPlaceCache()
	local := cache.NewLocalCache(cfg.CacheDir, 0)

	var remote *cache.RemoteCache
	if cfg.CacheBucket != nil {
		store, err := cache.NewFSObjectStore(filepath.Join(cfg.CacheDir, "remote-mirror"))
		if err != nil {
			return nil, fmt.Errorf("initializing remote cache store: %w", err)
		}
		remote = cache.NewRemoteCache(store, filepath.Join(cfg.CacheDir, "remote"))
	}

	return cache.NewChain(inPlace, local, remote), nil
}
