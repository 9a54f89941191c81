package db

import (
	"fmt"
	"strings"
	"time"
)

// RunRecord is one row of run history.
type RunRecord struct {
	ID               string
	BaseRef          string
	HeadRef          string
	Outcome          string
	Detail           string
	Branch           string
	PRURL            string
	Files            []string
	PatchesTotal     int
	PatchesApplied   int
	PromptTokens     int64
	CompletionTokens int64
	CostUSD          float64
	StartedAt        time.Time
	FinishedAt       time.Time
}

// InsertRun records a terminal run outcome.
func (d *DB) InsertRun(r RunRecord) error {
	_, err := d.conn.Exec(`
		INSERT INTO runs (id, base_ref, head_ref, outcome, detail, branch, pr_url, files,
			patches_total, patches_applied, prompt_tokens, completion_tokens, cost_usd,
			started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))`,
		r.ID, r.BaseRef, r.HeadRef, r.Outcome, r.Detail, r.Branch, r.PRURL,
		strings.Join(r.Files, "\n"), r.PatchesTotal, r.PatchesApplied,
		r.PromptTokens, r.CompletionTokens, r.CostUSD,
		r.StartedAt.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (d *DB) RecentRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.conn.Query(`
		SELECT id, base_ref, head_ref, outcome, detail, branch, pr_url, files,
			patches_total, patches_applied, prompt_tokens, completion_tokens, cost_usd,
			started_at, finished_at
		FROM runs ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		var files, started, finished string
		if err := rows.Scan(&r.ID, &r.BaseRef, &r.HeadRef, &r.Outcome, &r.Detail,
			&r.Branch, &r.PRURL, &files, &r.PatchesTotal, &r.PatchesApplied,
			&r.PromptTokens, &r.CompletionTokens, &r.CostUSD, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if files != "" {
			r.Files = strings.Split(files, "\n")
		}
		r.StartedAt = parseTimestamp(started)
		r.FinishedAt = parseTimestamp(finished)
		records = append(records, r)
	}
	return records, rows.Err()
}

var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
}

func parseTimestamp(s string) time.Time {
	for _, f := range timestampFormats {
		if t, err := time.Parse(f, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
