package apply

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/refinerylab/refinery/internal/chunk"
	"github.com/refinerylab/refinery/internal/llm"
)

func diffFor(path, oldLine, newLine string) string {
	return strings.Join([]string{
		"--- a/" + path,
		"+++ b/" + path,
		"@@ -1 +1 @@",
		"-" + oldLine,
		"+" + newLine,
	}, "\n")
}

type fakeApplier struct {
	errs    []error // popped per call; nil means success
	applied []string
}

func (f *fakeApplier) Apply(p string) error {
	f.applied = append(f.applied, p)
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

type fakeGenerator struct {
	repairResults []*llm.Result
	repairErr     error
	repairCalls   int
	lastApplyErr  string
	lastFailed    string
}

func (f *fakeGenerator) Generate(ctx context.Context, repo, baseRef, headRef string, c *chunk.Chunk) (*llm.Result, error) {
	return nil, errors.New("not used")
}

func (f *fakeGenerator) Repair(ctx context.Context, repo, baseRef, headRef string, c *chunk.Chunk, failedPatch, applyError string) (*llm.Result, error) {
	f.repairCalls++
	f.lastFailed = failedPatch
	f.lastApplyErr = applyError
	if f.repairErr != nil {
		return nil, f.repairErr
	}
	if len(f.repairResults) == 0 {
		return &llm.Result{NoChanges: true}, nil
	}
	res := f.repairResults[0]
	f.repairResults = f.repairResults[1:]
	return res, nil
}

func newTestMachine(applier Applier, gen llm.Generator, strict bool, maxRepairs int) (*Machine, *Stats) {
	stats := &Stats{}
	m := NewMachine(applier, gen, stats, strict, maxRepairs, "org/repo", "abc", "def")
	return m, stats
}

func TestDrive_CleanApply(t *testing.T) {
	applier := &fakeApplier{}
	gen := &fakeGenerator{}
	m, stats := newTestMachine(applier, gen, true, 2)

	cand := &Candidate{
		Chunk: &chunk.Chunk{Files: []string{"doc.md"}},
		Patch: diffFor("doc.md", "old", "new"),
	}
	out := m.Drive(context.Background(), cand)
	if out.Status != StatusApplied {
		t.Fatalf("Status = %v (%s), want StatusApplied", out.Status, out.Reason)
	}
	if stats.Applied != 1 || gen.repairCalls != 0 {
		t.Errorf("Applied = %d, repairCalls = %d", stats.Applied, gen.repairCalls)
	}
}

func TestDrive_ScopeViolationRepairsThenApplies(t *testing.T) {
	applier := &fakeApplier{}
	inScope := diffFor("doc.md", "old", "new")
	gen := &fakeGenerator{repairResults: []*llm.Result{{Patch: inScope}}}
	m, stats := newTestMachine(applier, gen, true, 2)

	cand := &Candidate{
		Chunk: &chunk.Chunk{Files: []string{"doc.md"}},
		Patch: diffFor("other.md", "old", "new"),
	}
	out := m.Drive(context.Background(), cand)
	if out.Status != StatusApplied {
		t.Fatalf("Status = %v (%s), want StatusApplied", out.Status, out.Reason)
	}
	if stats.ScopeBlocked != 1 || stats.RepairAttempts != 1 {
		t.Errorf("ScopeBlocked = %d, RepairAttempts = %d, want 1, 1", stats.ScopeBlocked, stats.RepairAttempts)
	}
	if !strings.Contains(gen.lastApplyErr, "other.md") {
		t.Errorf("repair prompt error = %q, should name the out-of-scope file", gen.lastApplyErr)
	}
	if len(applier.applied) != 1 {
		t.Errorf("out-of-scope patch reached the applier: %v", applier.applied)
	}
}

func TestDrive_ScopeExhaustionSkipsNotFails(t *testing.T) {
	gen := &fakeGenerator{}
	m, _ := newTestMachine(&fakeApplier{}, gen, true, 0)

	cand := &Candidate{
		Chunk: &chunk.Chunk{Files: []string{"doc.md"}},
		Patch: diffFor("other.md", "old", "new"),
	}
	out := m.Drive(context.Background(), cand)
	if out.Status != StatusSkipped {
		t.Fatalf("Status = %v, want StatusSkipped for exhausted scope violation", out.Status)
	}
	if gen.repairCalls != 0 {
		t.Errorf("repairCalls = %d, want 0 with zero budget", gen.repairCalls)
	}
}

func TestDrive_GuardBlockIsTerminal(t *testing.T) {
	gen := &fakeGenerator{}
	applier := &fakeApplier{}
	m, stats := newTestMachine(applier, gen, true, 2)

	cand := &Candidate{
		Chunk: &chunk.Chunk{Files: []string{"main.go"}},
		Patch: diffFor("main.go", "x = 1", "x = 2"),
	}
	out := m.Drive(context.Background(), cand)
	if out.Status != StatusSkipped {
		t.Fatalf("Status = %v, want StatusSkipped", out.Status)
	}
	if !strings.Contains(out.Reason, "behavior guard") {
		t.Errorf("Reason = %q", out.Reason)
	}
	if gen.repairCalls != 0 {
		t.Error("guard block must not trigger repair")
	}
	if len(applier.applied) != 0 {
		t.Error("guard-blocked patch reached the applier")
	}
	if stats.GuardBlocked != 1 {
		t.Errorf("GuardBlocked = %d, want 1", stats.GuardBlocked)
	}
}

func TestDrive_LenientModeSkipsGuard(t *testing.T) {
	m, _ := newTestMachine(&fakeApplier{}, &fakeGenerator{}, false, 2)

	cand := &Candidate{
		Chunk: &chunk.Chunk{Files: []string{"main.go"}},
		Patch: diffFor("main.go", "x = 1", "x = 2"),
	}
	if out := m.Drive(context.Background(), cand); out.Status != StatusApplied {
		t.Fatalf("Status = %v (%s), want StatusApplied in lenient mode", out.Status, out.Reason)
	}
}

func TestDrive_ApplyFailureRepairedThenApplied(t *testing.T) {
	applier := &fakeApplier{errs: []error{errors.New("hunk #1 failed at line 12")}}
	fixed := diffFor("doc.md", "old", "fixed")
	gen := &fakeGenerator{repairResults: []*llm.Result{{Patch: fixed}}}
	m, stats := newTestMachine(applier, gen, true, 2)

	cand := &Candidate{
		Chunk: &chunk.Chunk{Files: []string{"doc.md"}},
		Patch: diffFor("doc.md", "old", "new"),
	}
	out := m.Drive(context.Background(), cand)
	if out.Status != StatusApplied {
		t.Fatalf("Status = %v (%s), want StatusApplied", out.Status, out.Reason)
	}
	if cand.Patch != fixed {
		t.Error("candidate patch not replaced by repair result")
	}
	if !strings.Contains(gen.lastApplyErr, "hunk #1") {
		t.Errorf("apply error not forwarded to repair: %q", gen.lastApplyErr)
	}
	if stats.RepairAttempts != 1 || stats.Applied != 1 {
		t.Errorf("RepairAttempts = %d, Applied = %d", stats.RepairAttempts, stats.Applied)
	}
}

func TestDrive_ApplyExhaustionFails(t *testing.T) {
	applier := &fakeApplier{errs: []error{
		errors.New("corrupt patch"),
		errors.New("corrupt patch"),
	}}
	bad := diffFor("doc.md", "old", "new")
	gen := &fakeGenerator{repairResults: []*llm.Result{{Patch: bad}}}
	m, _ := newTestMachine(applier, gen, true, 1)

	cand := &Candidate{
		Chunk: &chunk.Chunk{Files: []string{"doc.md"}},
		Patch: bad,
	}
	out := m.Drive(context.Background(), cand)
	if out.Status != StatusFailed {
		t.Fatalf("Status = %v (%s), want StatusFailed", out.Status, out.Reason)
	}
	if !strings.Contains(out.Reason, "repair attempts exhausted") {
		t.Errorf("Reason = %q", out.Reason)
	}
}

func TestDrive_RepairDeclines(t *testing.T) {
	applier := &fakeApplier{errs: []error{errors.New("does not apply")}}
	gen := &fakeGenerator{} // empty repairResults: replies NoChanges
	m, stats := newTestMachine(applier, gen, true, 2)

	cand := &Candidate{
		Chunk: &chunk.Chunk{Files: []string{"doc.md"}},
		Patch: diffFor("doc.md", "old", "new"),
	}
	out := m.Drive(context.Background(), cand)
	if out.Status != StatusSkipped || out.Reason != "repair produced no patch" {
		t.Fatalf("Outcome = %+v", out)
	}
	if stats.RepairNoPatch != 1 {
		t.Errorf("RepairNoPatch = %d, want 1", stats.RepairNoPatch)
	}
}

func TestDrive_RepairRequestErrorSkips(t *testing.T) {
	applier := &fakeApplier{errs: []error{errors.New("does not apply")}}
	gen := &fakeGenerator{repairErr: errors.New("model unavailable")}
	m, _ := newTestMachine(applier, gen, true, 2)

	cand := &Candidate{
		Chunk: &chunk.Chunk{Files: []string{"doc.md"}},
		Patch: diffFor("doc.md", "old", "new"),
	}
	out := m.Drive(context.Background(), cand)
	if out.Status != StatusSkipped {
		t.Fatalf("Status = %v, want StatusSkipped", out.Status)
	}
	if !strings.Contains(out.Reason, "repair request failed") {
		t.Errorf("Reason = %q", out.Reason)
	}
}
