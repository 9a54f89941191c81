package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent pipeline runs",
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

		records, err := history.RecentRuns(runsLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			cmd.Println("No runs recorded yet.")
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-10s %-20s %-20s %-8s %-8s %s\n", "RUN", "FINISHED", "OUTCOME", "PATCHES", "TOKENS", "DETAIL")
		for _, r := range records {
			detail := r.Detail
			if r.PRURL != "" {
				detail = r.PRURL
			}
			outcome := r.Outcome
			if len(outcome) > 20 {
				outcome = outcome[:20]
			}
			fmt.Fprintf(w, "%-10s %-20s %-20s %-8s %-8d %s\n",
				shortID(r.ID),
				r.FinishedAt.Format("2006-01-02 15:04:05"),
				outcome,
				fmt.Sprintf("%d/%d", r.PatchesApplied, r.PatchesTotal),
				r.PromptTokens+r.CompletionTokens,
				detail)
		}
		return nil
	},
}

func shortID(id string) string {
	if i := strings.Index(id, "-"); i > 0 {
		return id[:i]
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
}
