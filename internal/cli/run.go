package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/refinerylab/refinery/internal/pipeline"
)

var (
	runBase string
	runHead string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one refactor-proposal pass over a commit range",
	Long: `Runs the pipeline once against the given commit range. With no flags the
range defaults to HEAD against its immediate parent.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadValidConfig()
		if err != nil {
			return err
		}
		log, err := newLogger()
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		runner, _, cleanup, err := buildRunner(cfg, log)
		if err != nil {
			return err
		}
		defer cleanup()

		outcome, err := runner.Run(cmd.Context(), pipeline.Opts{BaseRef: runBase, HeadRef: runHead})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), outcome.String())
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runBase, "base", "", "base ref of the commit range")
	runCmd.Flags().StringVar(&runHead, "head", "", "head ref of the commit range")
}
