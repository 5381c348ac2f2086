// Package cli implements the demctl command line interface: the offline
// merge pipeline and artifact inspection.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "demctl",
		Short:         "Demography data pipeline CLI",
		Long:          "Operator tooling for the demography extension: merge source CSVs into the columnar artifact and inspect the result.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	bindVerbose(rootCmd.PersistentFlags(), &verbose)

	rootCmd.AddCommand(newMergeCmd(&verbose))
	rootCmd.AddCommand(newInspectCmd())
	return rootCmd
}

func bindVerbose(fs *pflag.FlagSet, verbose *bool) {
	fs.BoolVarP(verbose, "verbose", "v", false, "enable debug logging")
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
