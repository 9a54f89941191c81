package db

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "refinery.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestInsertAndRecentRuns(t *testing.T) {
	d := openTestDB(t)

	started := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	records := []RunRecord{
		{
			ID:      "run-one",
			BaseRef: "aaa111", HeadRef: "bbb222",
			Outcome: "skipped", Detail: "no_patch",
			StartedAt: started,
		},
		{
			ID:      "run-two",
			BaseRef: "bbb222", HeadRef: "ccc333",
			Outcome: "created",
			Branch:  "refinery/abc12345",
			PRURL:   "https://github.com/acme/widgets/pull/9",
			Files:   []string{"a.go", "b.go"},
			PatchesTotal: 3, PatchesApplied: 2,
			PromptTokens: 1000, CompletionTokens: 400, CostUSD: 0.05,
			StartedAt: started.Add(time.Hour),
		},
	}
	for _, r := range records {
		if err := d.InsertRun(r); err != nil {
			t.Fatalf("InsertRun(%s) error: %v", r.ID, err)
		}
	}

	got, err := d.RecentRuns(10)
	if err != nil {
		t.Fatalf("RecentRuns() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d runs, want 2", len(got))
	}

	byID := map[string]RunRecord{}
	for _, r := range got {
		byID[r.ID] = r
	}
	created := byID["run-two"]
	if created.Outcome != "created" || created.Branch != "refinery/abc12345" {
		t.Errorf("created run = %+v", created)
	}
	if len(created.Files) != 2 || created.Files[0] != "a.go" {
		t.Errorf("Files = %v", created.Files)
	}
	if created.PatchesApplied != 2 || created.PromptTokens != 1000 {
		t.Errorf("counters = %+v", created)
	}
	if created.StartedAt.IsZero() || created.FinishedAt.IsZero() {
		t.Errorf("timestamps not round-tripped: %+v", created)
	}
	skipped := byID["run-one"]
	if skipped.Detail != "no_patch" || len(skipped.Files) != 0 {
		t.Errorf("skipped run = %+v", skipped)
	}
}

func TestRecentRuns_LimitAndDefault(t *testing.T) {
	d := openTestDB(t)
	for i := 0; i < 25; i++ {
		if err := d.InsertRun(RunRecord{
			ID:        string(rune('a'+i%26)) + "-run",
			Outcome:   "skipped",
			StartedAt: time.Now().UTC(),
		}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := d.RecentRuns(5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Errorf("RecentRuns(5) returned %d", len(got))
	}

	got, err = d.RecentRuns(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 20 {
		t.Errorf("RecentRuns(0) returned %d, want default 20", len(got))
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refinery.db")
	d, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.InsertRun(RunRecord{ID: "persisted", Outcome: "created", StartedAt: time.Now().UTC()}); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}

	d2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer d2.Close()
	got, err := d2.RecentRuns(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "persisted" {
		t.Errorf("got %+v after reopen", got)
	}
}
