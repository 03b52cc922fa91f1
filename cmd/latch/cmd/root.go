// Package cmd implements the latch CLI.
package cmd

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/latch-ci/latch/internal/config"
	"github.com/latch-ci/latch/internal/logging"
)

var (
	// Version is set at build time via ldflags
	Version = "dev"

	// Global flags
	verbose bool
	workDir string
)

var rootCmd = &cobra.Command{
	Use:   "latch",
	Short: "latch - a minimal CI pipeline orchestrator",
	Long: `latch runs declarative CI pipelines: it evaluates triggers,
enforces concurrency groups, expands job matrices, and executes job
steps through external tools (shell commands, linter, environment
manager, test driver).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&workDir, "workdir", "C", "", "working directory (default: current)")

	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("latch {{.Version}}\n")
}

// getWorkDir returns the effective working directory.
func getWorkDir() (string, error) {
	if workDir != "" {
		return workDir, nil
	}
	return os.Getwd()
}

// setup loads configuration and builds the logger. The returned closer
// is non-nil when file logging is enabled.
func setup() (*config.Config, string, *slog.Logger, io.Closer, error) {
	baseDir, err := getWorkDir()
	if err != nil {
		return nil, "", nil, nil, err
	}

	cfg, err := config.Load(baseDir)
	if err != nil {
		return nil, "", nil, nil, err
	}
	if verbose {
		cfg.Logging.Level = config.LogLevelDebug
	}

	logger, closer, err := logging.NewFromConfig(cfg, baseDir)
	if err != nil {
		return nil, "", nil, nil, err
	}
	return cfg, baseDir, logger, closer, nil
}
