// Package analytics aggregates the run history into summary statistics
// for display. Read-only over the runs table.
package analytics

import (
	"database/sql"
	"fmt"
)

// DB is the interface for database queries used by analytics.
type DB interface {
	Conn() *sql.DB
}

// OutcomeCount is one row of the outcome histogram.
type OutcomeCount struct {
	Outcome string `json:"outcome"`
	Count   int    `json:"count"`
}

// Summary aggregates run history.
type Summary struct {
	TotalRuns        int            `json:"total_runs"`
	PullRequests     int            `json:"pull_requests"`
	PatchesGenerated int            `json:"patches_generated"`
	PatchesApplied   int            `json:"patches_applied"`
	TotalTokens      int64          `json:"total_tokens"`
	TotalCostUSD     float64        `json:"total_cost_usd"`
	Outcomes         []OutcomeCount `json:"outcomes"`
}

// Summarize computes the run-history summary.
func Summarize(d DB) (*Summary, error) {
	s := &Summary{}

	row := d.Conn().QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN outcome = 'created' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(patches_total), 0),
			COALESCE(SUM(patches_applied), 0),
			COALESCE(SUM(prompt_tokens + completion_tokens), 0),
			COALESCE(SUM(cost_usd), 0)
		FROM runs`)
	if err := row.Scan(&s.TotalRuns, &s.PullRequests, &s.PatchesGenerated,
		&s.PatchesApplied, &s.TotalTokens, &s.TotalCostUSD); err != nil {
		return nil, fmt.Errorf("summarize runs: %w", err)
	}

	rows, err := d.Conn().Query(`
		SELECT outcome, COUNT(*) FROM runs GROUP BY outcome ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var oc OutcomeCount
		if err := rows.Scan(&oc.Outcome, &oc.Count); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		s.Outcomes = append(s.Outcomes, oc)
	}
	return s, rows.Err()
}
