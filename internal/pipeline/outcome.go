package pipeline

import (
	"errors"
	"fmt"

	"github.com/refinerylab/refinery/internal/llm"
	"github.com/refinerylab/refinery/internal/patch"
)

// SkipReason enumerates why a run ended without a pull request.
type SkipReason string

const (
	SkipNoDiff       SkipReason = "no_diff"
	SkipNoPatch      SkipReason = "no_patch"
	SkipTestFailure  SkipReason = "test_failure"
	SkipApplyFailure SkipReason = "patch_apply_failure"
	SkipModelFailure SkipReason = "model_failure"
)

// FailureKind classifies one chunk-level generation failure.
type FailureKind string

const (
	FailTimeout       FailureKind = "timeout"
	FailInvalidOutput FailureKind = "invalid_output"
	FailAPIError      FailureKind = "api_error"
	FailUnknown       FailureKind = "unknown"
)

// FailureBreakdown counts chunk-level generation failures by kind.
// Counts only accumulate, never decrement.
type FailureBreakdown struct {
	Timeout       int
	InvalidOutput int
	APIError      int
	Unknown       int
}

// Add records one failure of the given kind.
func (f *FailureBreakdown) Add(kind FailureKind) {
	switch kind {
	case FailTimeout:
		f.Timeout++
	case FailInvalidOutput:
		f.InvalidOutput++
	case FailAPIError:
		f.APIError++
	default:
		f.Unknown++
	}
}

// Total returns the number of recorded failures.
func (f *FailureBreakdown) Total() int {
	return f.Timeout + f.InvalidOutput + f.APIError + f.Unknown
}

// Subtype derives the model-failure subtype from the histogram: a single
// nonzero kind names itself, multiple nonzero kinds are "mixed", none is
// "unknown".
func (f *FailureBreakdown) Subtype() string {
	kinds := []struct {
		name  FailureKind
		count int
	}{
		{FailTimeout, f.Timeout},
		{FailInvalidOutput, f.InvalidOutput},
		{FailAPIError, f.APIError},
		{FailUnknown, f.Unknown},
	}
	var nonzero []FailureKind
	for _, k := range kinds {
		if k.count > 0 {
			nonzero = append(nonzero, k.name)
		}
	}
	switch len(nonzero) {
	case 0:
		return string(FailUnknown)
	case 1:
		return string(nonzero[0])
	default:
		return "mixed"
	}
}

// classifyFailure maps a generation error onto its failure kind.
func classifyFailure(err error) FailureKind {
	if errors.Is(err, llm.ErrTimeout) {
		return FailTimeout
	}
	if errors.Is(err, patch.ErrNoDiff) {
		return FailInvalidOutput
	}
	var ve *patch.ValidationError
	if errors.As(err, &ve) {
		return FailInvalidOutput
	}
	var ae *llm.APIError
	if errors.As(err, &ae) {
		return FailAPIError
	}
	return FailUnknown
}

// Skipped describes a run that ended without publication.
type Skipped struct {
	Reason SkipReason
	Detail string
	// Model-failure fields, set only for SkipModelFailure.
	Subtype      string
	FailedChunks int
	TotalChunks  int
}

// Created describes a published run.
type Created struct {
	Branch  string
	PRURL   string
	PRNum   int
	Files   []string
	Summary string
}

// Outcome is the single terminal result of one run: exactly one of
// Created or Skipped is set.
type Outcome struct {
	Created *Created
	Skipped *Skipped
}

func skipped(reason SkipReason, detail string) *Outcome {
	return &Outcome{Skipped: &Skipped{Reason: reason, Detail: detail}}
}

// String renders the outcome for console display.
func (o *Outcome) String() string {
	switch {
	case o.Created != nil:
		return fmt.Sprintf("created %s (%s, %d files)", o.Created.PRURL, o.Created.Branch, len(o.Created.Files))
	case o.Skipped != nil:
		s := o.Skipped
		if s.Reason == SkipModelFailure {
			return fmt.Sprintf("skipped (%s: %s, %d/%d chunks failed)", s.Reason, s.Subtype, s.FailedChunks, s.TotalChunks)
		}
		if s.Detail != "" {
			return fmt.Sprintf("skipped (%s: %s)", s.Reason, s.Detail)
		}
		return fmt.Sprintf("skipped (%s)", s.Reason)
	default:
		return "unknown outcome"
	}
}

// Label returns the short outcome tag used in run history.
func (o *Outcome) Label() string {
	if o.Created != nil {
		return "created"
	}
	if o.Skipped != nil {
		return string(o.Skipped.Reason)
	}
	return "unknown"
}
