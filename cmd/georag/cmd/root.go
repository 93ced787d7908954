// Package cmd provides the CLI commands for georag: a thin ambient wrapper
// around internal/workspace.Coordinator that proves the engine is wired
// end to end (SPEC_FULL.md's CLI surface is scaffolding, not a product).
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/georag/georag/internal/logging"
	"github.com/georag/georag/pkg/version"
)

var (
	workspaceDir string
	debugMode    bool
	jsonOutput   bool
)

// NewRootCmd creates the root command for the georag CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "georag",
		Short:   "Geospatial retrieval-augmented generation over your own data",
		Version: version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("georag version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&workspaceDir, "dir", ".", "workspace directory (holds .georag.yaml and data)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit machine-readable JSON output")

	cmd.AddCommand(
		newIngestCmd(),
		newBuildCmd(),
		newQueryCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	return cmd
}

// Execute runs the root command, returning its error (if any) for main to
// translate into an exit code.
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

func setupLogging() func() {
	cfg := logging.DefaultConfig()
	if debugMode {
		cfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: logging setup failed: %v\n", err)
		return func() {}
	}
	slog.SetDefault(logger)
	return cleanup
}
