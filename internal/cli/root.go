package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dshills/scribe/internal/config"
	"github.com/dshills/scribe/internal/logging"
	"github.com/dshills/scribe/internal/output"
)

// Version is set at build time with -ldflags.
var Version = "0.1.0"

// Exit codes
const (
	ExitSuccess    = 0
	ExitFailure    = 1
	ExitUsageError = 2
)

// Global flags
var (
	flagConfig   string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:          "scribe",
	Short:        "Turn a folder of notes into published blog posts",
	Long:         "Scribe reads drafts from an inbox, runs them through staged, checkpointed processing with privacy redaction, and writes Hexo posts.",
	SilenceUsage: true,
}

// Run executes the root command and returns an exit code.
func Run() int {
	output.ToolVersion = Version
	exitCode = ExitSuccess
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error
		return ExitUsageError
	}
	return exitCode
}

// exitCode is set by command handlers to control the process exit code.
var exitCode = ExitSuccess

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print scribe version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "scribe version %s\n", Version)
	},
}

// loadConfig resolves the effective config for a command from the config
// file, the environment and the command's flags.
func loadConfig() (config.Config, error) {
	return config.Load(flagConfig, buildOverrides())
}

func newLogger(cmd *cobra.Command, cfg config.Config) (*slog.Logger, error) {
	return logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
}

// fail reports a runtime error and sets the failure exit code. Returning
// nil keeps cobra from printing usage for an error that is not a usage
// error.
func fail(cmd *cobra.Command, err error) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	exitCode = ExitFailure
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(checkpointsCmd)
	rootCmd.AddCommand(ledgerCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)
}
