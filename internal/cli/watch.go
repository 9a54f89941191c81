package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/refinerylab/refinery/internal/config"
	"github.com/refinerylab/refinery/internal/pipeline"
	"github.com/refinerylab/refinery/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll for new commits and run the pipeline on each range",
	Long: `Polls the repository on a fixed interval, running one pipeline pass per
detected commit range. An optional event payload file (JSON with before/after
SHAs) names the range explicitly; otherwise HEAD movement is tracked.
Ctrl-C stops after the in-flight run finishes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadValidConfig()
		if err != nil {
			return err
		}
		log, err := newLogger()
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		runner, git, cleanup, err := buildRunner(cfg, log)
		if err != nil {
			return err
		}
		defer cleanup()

		runOnce := func(ctx context.Context, base, head string) error {
			outcome, err := runner.Run(ctx, pipeline.Opts{BaseRef: base, HeadRef: head})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), outcome.String())
			return nil
		}

		w := watch.New(git, runOnce,
			config.Duration(cfg.Pipeline.Watch.Interval, 0),
			cfg.Pipeline.Watch.EventFile, log)

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigs
			fmt.Fprintln(cmd.OutOrStdout(), "stopping after current poll...")
			w.Stop()
		}()

		return w.Watch(cmd.Context())
	},
}
