// Package nozem wires the CLI's root command together and renders the
// result of running it to an exit code.
package nozem

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nozem-build/nozem/internal/cmd/root"
	"github.com/nozem-build/nozem/internal/cmdutil"
	"github.com/nozem-build/nozem/internal/iostreams"
	"github.com/nozem-build/nozem/internal/logger"
)

// Main is the entry point for the nozem CLI. It initializes the Factory,
// creates the root command, and executes it. Error rendering is
// centralized here — commands return typed errors rather than printing
// them directly.
func Main(version, commit string) int {
	defer logger.Close()

	f := cmdutil.New(version, commit)

	rootCmd := root.NewCmdRoot(f)
	rootCmd.SilenceErrors = true

	cmd, err := rootCmd.ExecuteC()
	if err != nil {
		if !errors.Is(err, cmdutil.SilentError) {
			printError(f.IOStreams.ErrOut, f.IOStreams.ColorScheme(), err, cmd)
		}

		var exitErr *cmdutil.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code
		}
		return 1
	}

	return 0
}

// printError renders an error to the given writer: a FlagError prints the
// error followed by the command's usage; anything else prints a single
// failure-icon line.
func printError(out io.Writer, cs *iostreams.ColorScheme, err error, cmd *cobra.Command) {
	var flagErr *cmdutil.FlagError
	if errors.As(err, &flagErr) {
		fmt.Fprintln(out, err)
		fmt.Fprintln(out)
		fmt.Fprintln(out, cmd.UsageString())
		fmt.Fprintf(out, "\nRun '%s --help' for more information.\n", cmd.CommandPath())
		return
	}
	fmt.Fprintf(out, "%s %s\n", cs.FailureIcon(), err)
}
