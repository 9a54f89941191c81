// Package apply drives a patch candidate through scope and guard checks,
// apply attempts, and bounded repair retries.
package apply

import (
	"context"
	"fmt"
	"strings"

	"github.com/refinerylab/refinery/internal/chunk"
	"github.com/refinerylab/refinery/internal/guard"
	"github.com/refinerylab/refinery/internal/llm"
	"github.com/refinerylab/refinery/internal/patch"
)

// Applier stages a patch into the working tree. Satisfied by gitx.Client.
type Applier interface {
	Apply(patch string) error
}

// Stats counts patch lifecycle events across one run. Counters only go up
// and are never consulted for control flow.
type Stats struct {
	Generated      int
	Applied        int
	GuardBlocked   int
	ScopeBlocked   int
	RepairAttempts int
	RepairNoPatch  int
}

// Candidate is one proposed patch for one chunk. The patch text mutates
// across repair attempts; the chunk never does.
type Candidate struct {
	Chunk   *chunk.Chunk
	Patch   string
	Attempt int
}

// Status is the terminal disposition of driving one candidate.
type Status int

const (
	// StatusApplied means the patch is staged in the index.
	StatusApplied Status = iota
	// StatusSkipped means the candidate was abandoned for a reason that
	// should not fail the whole run (guard block, scope violation,
	// repair declined).
	StatusSkipped
	// StatusFailed means apply attempts were exhausted on a genuine
	// apply failure; the run surfaces this as a patch apply failure.
	StatusFailed
)

// Outcome reports how a candidate ended.
type Outcome struct {
	Status Status
	Reason string
}

// Machine runs candidates through the apply/repair lifecycle.
type Machine struct {
	applier    Applier
	gen        llm.Generator
	stats      *Stats
	strict     bool
	maxRepairs int
	repo       string
	baseRef    string
	headRef    string
}

// NewMachine creates a Machine. maxRepairs bounds repair attempts per
// candidate; strict enables the behavior guard.
func NewMachine(applier Applier, gen llm.Generator, stats *Stats, strict bool, maxRepairs int, repo, baseRef, headRef string) *Machine {
	return &Machine{
		applier:    applier,
		gen:        gen,
		stats:      stats,
		strict:     strict,
		maxRepairs: maxRepairs,
		repo:       repo,
		baseRef:    baseRef,
		headRef:    headRef,
	}
}

// Drive takes a candidate from Pending to a terminal outcome. The order
// is fixed: scope check, then guard check, then apply. A scope violation
// takes the repair path exactly like an apply failure so the two share
// one retry budget; a guard block is terminal with no repair.
func (m *Machine) Drive(ctx context.Context, cand *Candidate) Outcome {
	for {
		if outside := m.outOfScope(cand); len(outside) > 0 {
			m.stats.ScopeBlocked++
			reason := fmt.Sprintf("patch touches files outside its chunk: %s", strings.Join(outside, ", "))
			next, done := m.requestRepair(ctx, cand, reason, true)
			if done {
				return next
			}
			continue
		}

		if m.strict {
			if res := guard.Check(cand.Patch); !res.Safe {
				m.stats.GuardBlocked++
				return Outcome{Status: StatusSkipped, Reason: "behavior guard: " + strings.Join(res.Reasons, "; ")}
			}
		}

		err := m.applier.Apply(cand.Patch)
		if err == nil {
			m.stats.Applied++
			return Outcome{Status: StatusApplied}
		}

		next, done := m.requestRepair(ctx, cand, err.Error(), false)
		if done {
			return next
		}
	}
}

// requestRepair asks the generator for a corrected patch, mutating the
// candidate on success. It returns (outcome, true) when the candidate is
// terminal. scopeFailure distinguishes exhausted scope violations (merely
// skipped) from exhausted genuine apply failures (fatal for the run).
func (m *Machine) requestRepair(ctx context.Context, cand *Candidate, applyError string, scopeFailure bool) (Outcome, bool) {
	if cand.Attempt >= m.maxRepairs {
		if scopeFailure {
			return Outcome{Status: StatusSkipped, Reason: "repair attempts exhausted: " + applyError}, true
		}
		return Outcome{Status: StatusFailed, Reason: "repair attempts exhausted: " + applyError}, true
	}
	cand.Attempt++
	m.stats.RepairAttempts++

	res, err := m.gen.Repair(ctx, m.repo, m.baseRef, m.headRef, cand.Chunk, cand.Patch, applyError)
	if err != nil {
		return Outcome{Status: StatusSkipped, Reason: fmt.Sprintf("repair request failed: %v", err)}, true
	}
	if res.NoChanges {
		m.stats.RepairNoPatch++
		return Outcome{Status: StatusSkipped, Reason: "repair produced no patch"}, true
	}
	cand.Patch = res.Patch
	return Outcome{}, false
}

// outOfScope lists the files the candidate's current patch touches that
// are not in its chunk's authorized set.
func (m *Machine) outOfScope(cand *Candidate) []string {
	allowed := make(map[string]bool, len(cand.Chunk.Files))
	for _, f := range cand.Chunk.Files {
		allowed[f] = true
	}
	var outside []string
	for _, f := range patch.TouchedFiles(cand.Patch) {
		if !allowed[f] {
			outside = append(outside, f)
		}
	}
	return outside
}
