package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "refinery",
	Short: "Automated refactor-proposal pipeline",
	Long: `refinery watches a repository for new commits, asks a language model for
behavior-preserving cleanups of the changed files, and publishes the result
as a pull request. A patch is published only after it survives scope and
behavior checks, applies cleanly, and passes the configured test command.`,
}

func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the structured logger for pipeline internals. Console
// output for the user goes through cobra's output streams instead.
func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(configCmd)
}
