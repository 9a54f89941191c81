package pipeline

import (
	"fmt"
	"strings"

	"github.com/refinerylab/refinery/internal/apply"
	"github.com/refinerylab/refinery/internal/llm"
	"github.com/refinerylab/refinery/internal/patch"
)

// buildSummary renders the pull-request body: what was applied, what was
// skipped and why, and what the run cost.
func buildSummary(baseRef, headRef string, appliedPatches []string, skipNotes []string, stats *apply.Stats, usage *llm.UsageStats) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Automated behavior-preserving cleanups proposed for `%s..%s`.\n\n", short(baseRef), short(headRef))
	fmt.Fprintf(&b, "Every source edit in this PR is token-equivalent to the code it replaces; test, doc, and config edits were reviewed structurally only. Verified with the configured test command before publishing.\n\n")

	b.WriteString("## Changed files\n\n")
	for _, stat := range collectStats(appliedPatches) {
		fmt.Fprintf(&b, "- `%s` (+%d/-%d)\n", stat.Path, stat.Added, stat.Removed)
	}

	if len(skipNotes) > 0 {
		b.WriteString("\n## Skipped candidates\n\n")
		for _, note := range skipNotes {
			fmt.Fprintf(&b, "- %s\n", note)
		}
	}

	b.WriteString("\n## Run stats\n\n")
	fmt.Fprintf(&b, "- patches generated: %d, applied: %d\n", stats.Generated, stats.Applied)
	if stats.GuardBlocked > 0 || stats.ScopeBlocked > 0 {
		fmt.Fprintf(&b, "- blocked: %d by behavior guard, %d by scope check\n", stats.GuardBlocked, stats.ScopeBlocked)
	}
	if stats.RepairAttempts > 0 {
		fmt.Fprintf(&b, "- repair attempts: %d (%d declined)\n", stats.RepairAttempts, stats.RepairNoPatch)
	}
	fmt.Fprintf(&b, "- model usage: %d requests, %d tokens", usage.Requests, usage.TotalTokens())
	if usage.Cost > 0 {
		fmt.Fprintf(&b, ", ~$%.4f", usage.Cost)
	}
	b.WriteString("\n")

	return b.String()
}

// collectStats merges per-file add/remove counts across the applied patches.
func collectStats(patches []string) []patch.FileStat {
	var order []string
	merged := make(map[string]*patch.FileStat)
	for _, p := range patches {
		for _, stat := range patch.Stats(p) {
			if existing, ok := merged[stat.Path]; ok {
				existing.Added += stat.Added
				existing.Removed += stat.Removed
				continue
			}
			s := stat
			merged[stat.Path] = &s
			order = append(order, stat.Path)
		}
	}
	stats := make([]patch.FileStat, 0, len(order))
	for _, path := range order {
		stats = append(stats, *merged[path])
	}
	return stats
}

func short(ref string) string {
	if len(ref) > 10 {
		return ref[:10]
	}
	return ref
}
