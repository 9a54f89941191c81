// Package pipeline sequences one refactor-proposal run: extract and chunk
// the diff, request candidate patches, drive apply/repair, verify with the
// test command, and publish a branch and pull request. Every run ends in
// exactly one terminal Outcome, and no partial branch, commit, or PR is
// left behind on any skip path.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/refinerylab/refinery/internal/apply"
	"github.com/refinerylab/refinery/internal/chunk"
	"github.com/refinerylab/refinery/internal/config"
	"github.com/refinerylab/refinery/internal/db"
	"github.com/refinerylab/refinery/internal/github"
	"github.com/refinerylab/refinery/internal/gitx"
	"github.com/refinerylab/refinery/internal/llm"
	"github.com/refinerylab/refinery/internal/patch"
	"github.com/refinerylab/refinery/internal/verify"
)

// Runner executes refactor-proposal runs. Chunks, candidates, and repair
// attempts are processed strictly sequentially: every apply mutates the
// one shared index, so the next candidate's scope check must observe the
// previous result.
type Runner struct {
	git     *gitx.Client
	gen     llm.Generator
	pub     github.Publisher
	tests   *verify.Runner
	cfg     *config.Config
	usage   *llm.UsageStats
	history *db.DB // optional; nil disables run history
	log     *zap.Logger
}

// NewRunner creates a pipeline runner. history may be nil.
func NewRunner(git *gitx.Client, gen llm.Generator, pub github.Publisher, tests *verify.Runner, cfg *config.Config, usage *llm.UsageStats, history *db.DB, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		git:     git,
		gen:     gen,
		pub:     pub,
		tests:   tests,
		cfg:     cfg,
		usage:   usage,
		history: history,
		log:     log,
	}
}

// Opts selects the commit range for one run. Empty refs default to
// HEAD's parent vs HEAD.
type Opts struct {
	BaseRef string
	HeadRef string
}

// Run executes one full pipeline pass and returns its terminal outcome.
// An error return means the run could not be brought to a terminal
// outcome at all (environment failure), not a skipped run.
func (r *Runner) Run(ctx context.Context, opts Opts) (*Outcome, error) {
	start := time.Now()
	runID := uuid.NewString()
	r.usage.Reset()
	stats := &apply.Stats{}
	p := r.cfg.Pipeline

	headRef := opts.HeadRef
	if headRef == "" {
		headRef = "HEAD"
	}
	baseRef := opts.BaseRef
	if baseRef == "" {
		baseRef = headRef + "~1"
	}
	baseSHA, err := r.git.RevParse(baseRef)
	if err != nil {
		return nil, fmt.Errorf("resolve base ref: %w", err)
	}
	headSHA, err := r.git.RevParse(headRef)
	if err != nil {
		return nil, fmt.Errorf("resolve head ref: %w", err)
	}
	// On a diverged base the naive range drags in unrelated commits, so the
	// diff is taken from the merge base instead.
	if mb, err := r.git.MergeBase(baseSHA, headSHA); err == nil && mb != "" && mb != baseSHA {
		r.log.Info("base diverged from head, using merge base",
			zap.String("base", baseSHA),
			zap.String("merge_base", mb))
		baseSHA = mb
	}
	r.log.Info("run started",
		zap.String("run_id", runID),
		zap.String("base", baseSHA),
		zap.String("head", headSHA))

	finish := func(o *Outcome) (*Outcome, error) {
		r.record(runID, baseSHA, headSHA, start, o, stats)
		r.log.Info("run finished", zap.String("run_id", runID), zap.String("outcome", o.String()))
		return o, nil
	}

	// Extract and chunk the diff.
	files, err := r.git.ChangedFiles(baseSHA, headSHA)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return finish(skipped(SkipNoDiff, "no files changed in range"))
	}

	excludes, err := chunk.CompileExcludes(p.Chunking.Exclude)
	if err != nil {
		return nil, err
	}
	build, err := chunk.Build(r.git, baseSHA, headSHA, files, chunk.Options{
		MaxChars: p.Chunking.MaxChars,
		MaxFiles: p.Chunking.MaxFiles,
		Exclude:  excludes,
	})
	if err != nil {
		return nil, err
	}
	if build == nil {
		return finish(skipped(SkipNoDiff, "nothing left to analyze after exclusion filtering"))
	}

	// Prioritize and cap to the run budget. A non-positive budget means
	// unlimited.
	ordered := chunk.Prioritize(build.Chunks, p.StrictGuard())
	if p.Chunking.MaxChunks > 0 && len(ordered) > p.Chunking.MaxChunks {
		ordered = ordered[:p.Chunking.MaxChunks]
	}

	// Request generation per chunk, classifying failures without
	// aborting the loop.
	breakdown := &FailureBreakdown{}
	var candidates []*apply.Candidate
	for i, c := range ordered {
		res, err := r.gen.Generate(ctx, p.Repo, baseSHA, headSHA, c)
		if err != nil {
			kind := classifyFailure(err)
			breakdown.Add(kind)
			r.log.Warn("chunk generation failed",
				zap.Int("chunk", i),
				zap.String("kind", string(kind)),
				zap.Error(err))
			continue
		}
		if res.NoChanges {
			continue
		}
		stats.Generated++
		candidates = append(candidates, &apply.Candidate{Chunk: c, Patch: res.Patch})
	}

	if len(candidates) == 0 {
		if breakdown.Total() > 0 {
			return finish(&Outcome{Skipped: &Skipped{
				Reason:       SkipModelFailure,
				Subtype:      breakdown.Subtype(),
				FailedChunks: breakdown.Total(),
				TotalChunks:  len(ordered),
			}})
		}
		return finish(skipped(SkipNoPatch, "generator declined all chunks"))
	}

	// Drive candidates through apply/repair.
	machine := apply.NewMachine(r.git, r.gen, stats, p.StrictGuard(), p.Apply.RepairAttempts, p.Repo, baseSHA, headSHA)
	var (
		appliedFiles   []string
		appliedPatches []string
		skipNotes      []string
		hardFailure    string
	)
	for _, cand := range candidates {
		oc := machine.Drive(ctx, cand)
		switch oc.Status {
		case apply.StatusApplied:
			appliedFiles = append(appliedFiles, patch.TouchedFiles(cand.Patch)...)
			appliedPatches = append(appliedPatches, cand.Patch)
		case apply.StatusSkipped:
			skipNotes = append(skipNotes, oc.Reason)
		case apply.StatusFailed:
			hardFailure = oc.Reason
		}
		if hardFailure != "" {
			break
		}
	}

	if len(appliedFiles) == 0 {
		r.cleanupTree()
		detail := "no candidate survived apply"
		if hardFailure != "" {
			detail = hardFailure
		}
		return finish(skipped(SkipNoPatch, detail))
	}
	if hardFailure != "" {
		r.cleanupTree()
		return finish(skipped(SkipApplyFailure, hardFailure))
	}

	staged, err := r.git.HasStagedChanges()
	if err != nil {
		r.cleanupTree()
		return nil, err
	}
	if !staged {
		r.cleanupTree()
		return finish(skipped(SkipNoPatch, "no staged changes after apply"))
	}

	// Verify with the configured test command.
	testResult, err := r.tests.Run(r.git.Dir(), p.TestCommand, config.Duration(p.TestTimeout, 10*time.Minute))
	if err != nil {
		r.cleanupTree()
		return nil, err
	}
	if !testResult.Passed {
		r.cleanupTree()
		return finish(skipped(SkipTestFailure, testResult.Summary))
	}

	// Publish.
	created, err := r.publish(ctx, runID, baseSHA, headSHA, dedupe(appliedFiles), appliedPatches, skipNotes, stats)
	if err != nil {
		r.cleanupTree()
		return nil, err
	}
	return finish(&Outcome{Created: created})
}

// publish creates the branch, commits the staged changes, pushes, and
// opens the pull request. The original branch is restored afterwards so
// the next run starts from a clean tree.
func (r *Runner) publish(ctx context.Context, runID, baseSHA, headSHA string, files, patches, skipNotes []string, stats *apply.Stats) (*Created, error) {
	p := r.cfg.Pipeline
	branch := p.BranchPrefix + runID[:8]

	original, err := r.git.CurrentBranch()
	if err != nil {
		return nil, err
	}
	restore := func() {
		if original != "" && original != "HEAD" {
			_ = r.git.Checkout(original)
		}
	}

	if err := r.git.CheckoutNewBranch(branch, ""); err != nil {
		return nil, err
	}
	commitMsg := fmt.Sprintf("Apply automated refactor proposals for %s..%s", short(baseSHA), short(headSHA))
	if err := r.git.Commit(commitMsg); err != nil {
		restore()
		return nil, err
	}
	if err := r.git.Push("origin", branch); err != nil {
		restore()
		return nil, err
	}

	summary := buildSummary(baseSHA, headSHA, patches, skipNotes, stats, r.usage)
	pr, err := r.pub.CreatePullRequest(ctx, p.Owner(), p.Name(), github.NewPullRequest{
		Title: fmt.Sprintf("Automated refactor proposals (%d files)", len(files)),
		Body:  summary,
		Head:  branch,
		Base:  p.BaseBranch,
	})
	restore()
	if err != nil {
		return nil, fmt.Errorf("create pull request: %w", err)
	}

	return &Created{
		Branch:  branch,
		PRURL:   pr.URL,
		PRNum:   pr.Number,
		Files:   files,
		Summary: summary,
	}, nil
}

// cleanupTree discards any staged or partial state. Best effort; a
// cleanup failure must not mask the run's outcome.
func (r *Runner) cleanupTree() {
	if err := r.git.ResetWorkingTree(); err != nil {
		r.log.Warn("working tree cleanup failed", zap.Error(err))
	}
}

// record writes the run to history, best effort.
func (r *Runner) record(runID, baseSHA, headSHA string, start time.Time, o *Outcome, stats *apply.Stats) {
	if r.history == nil {
		return
	}
	rec := db.RunRecord{
		ID:               runID,
		BaseRef:          baseSHA,
		HeadRef:          headSHA,
		Outcome:          o.Label(),
		PatchesTotal:     stats.Generated,
		PatchesApplied:   stats.Applied,
		PromptTokens:     r.usage.PromptTokens,
		CompletionTokens: r.usage.CompletionTokens,
		CostUSD:          r.usage.Cost,
		StartedAt:        start,
	}
	if o.Skipped != nil {
		rec.Detail = o.Skipped.Detail
		if o.Skipped.Reason == SkipModelFailure {
			rec.Detail = fmt.Sprintf("%s (%d/%d chunks failed)", o.Skipped.Subtype, o.Skipped.FailedChunks, o.Skipped.TotalChunks)
		}
	}
	if o.Created != nil {
		rec.Branch = o.Created.Branch
		rec.PRURL = o.Created.PRURL
		rec.Files = o.Created.Files
	}
	if err := r.history.InsertRun(rec); err != nil {
		r.log.Warn("record run history failed", zap.Error(err))
	}
}

func dedupe(files []string) []string {
	seen := make(map[string]bool, len(files))
	var out []string
	for _, f := range files {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
