package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/refinerylab/refinery/internal/analytics"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		history, err := openHistory(cfg.Pipeline.HistoryDB)
		if err != nil {
			return fmt.Errorf("open run history: %w", err)
		}
		defer history.Close()

		s, err := analytics.Summarize(history)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Runs:              %d\n", s.TotalRuns)
		fmt.Fprintf(w, "Pull requests:     %d\n", s.PullRequests)
		fmt.Fprintf(w, "Patches generated: %d\n", s.PatchesGenerated)
		fmt.Fprintf(w, "Patches applied:   %d\n", s.PatchesApplied)
		fmt.Fprintf(w, "Tokens used:       %d\n", s.TotalTokens)
		if s.TotalCostUSD > 0 {
			fmt.Fprintf(w, "Estimated cost:    $%.4f\n", s.TotalCostUSD)
		}
		if len(s.Outcomes) > 0 {
			fmt.Fprintln(w, "\nOutcomes:")
			for _, oc := range s.Outcomes {
				fmt.Fprintf(w, "  %-20s %d\n", oc.Outcome, oc.Count)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
