// Package root assembles the nozem CLI's root command.
package root

import (
	"fmt"
	"os"

	"github.com/nozem-build/nozem/internal/cmd/build"
	"github.com/nozem-build/nozem/internal/cmd/fromlerna"
	"github.com/nozem-build/nozem/internal/cmdutil"
	internalconfig "github.com/nozem-build/nozem/internal/config"
	"github.com/nozem-build/nozem/internal/logger"
	"github.com/spf13/cobra"
)

// NewCmdRoot creates the root command for the nozem CLI.
func NewCmdRoot(f *cmdutil.Factory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nozem",
		Short: "Hermetic, content-addressed builds for JS/TS monorepos",
		Long: `nozem builds JS/TS monorepo packages in isolated sandboxes, keyed by the
content hash of their declared inputs, and serves repeat builds from a
tiered artifact cache instead of re-running them.

Quick start:
  nozem from-lerna      # generate nozem.json from a Lerna-style manifest
  nozem build           # build the whole graph
  nozem build -c 8 pkg  # build one package and its dependencies, concurrency 8`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			initializeLogger(f.Debug)

			if f.WorkDir == "" {
				var err error
				f.WorkDir, err = os.Getwd()
				if err != nil {
					return fmt.Errorf("failed to get working directory: %w", err)
				}
			}

			logger.Debug().
				Str("version", f.Version).
				Str("workdir", f.WorkDir).
				Bool("debug", f.Debug).
				Msg("nozem starting")

			return nil
		},
		Version: f.Version,
	}

	cmd.PersistentFlags().BoolVarP(&f.Debug, "debug", "D", false, "Enable debug logging")
	cmd.PersistentFlags().StringVarP(&f.WorkDir, "workdir", "w", "", "Working directory (default: current directory)")

	cmd.SetVersionTemplate(fmt.Sprintf("nozem %s (commit: %s)\n", f.Version, f.Commit))

	cmd.AddCommand(build.NewCmdBuild(f, nil))
	cmd.AddCommand(fromlerna.NewCmdFromLerna(f, nil))

	return cmd
}

// initializeLogger sets up file-backed logging if possible, falling back
// to a nop logger on any error so a broken logs directory never stops a
// build from running.
func initializeLogger(debug bool) {
	logsDir, err := internalconfig.LogsDir()
	if err != nil {
		logger.Init()
		return
	}

	level := "info"
	if debug {
		level = "debug"
	}

	if err := logger.NewLogger(&logger.Options{
		LogsDir: logsDir,
		FileConfig: &logger.LoggingConfig{
			MaxSizeMB:  50,
			MaxAgeDays: 7,
		},
	}); err != nil {
		logger.Init()
		logger.Warn().Err(err).Msg("file logging unavailable, falling back to nop logger")
		return
	}

	logger.Debug().Str("level", level).Msg("logger initialized")
}
