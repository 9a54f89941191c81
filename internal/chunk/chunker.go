package chunk

import (
	"fmt"
	"regexp"
)

// Chunk is a bounded unit of diff work: a disjoint, ordered set of changed
// files, the unified diff covering exactly those files, and a pre-change
// snapshot of each file used as generation context. Chunks are immutable
// once built.
type Chunk struct {
	Files     []string
	Diff      string
	Snapshots map[string]string
}

// DiffSource provides the per-file diff and baseline content a chunker
// needs. Satisfied by gitx.Client.
type DiffSource interface {
	DiffFile(base, head, path string) (string, error)
	Show(ref, path string) (string, error)
}

// Options bounds chunk assembly.
type Options struct {
	MaxChars int // start a new chunk before exceeding this many diff characters
	MaxFiles int // maximum files per chunk
	Exclude  []*regexp.Regexp
}

// CompileExcludes compiles path-exclusion patterns as case-insensitive
// regular expressions.
func CompileExcludes(patterns []string) ([]*regexp.Regexp, error) {
	var res []*regexp.Regexp
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("exclude pattern %q: %w", p, err)
		}
		res = append(res, re)
	}
	return res, nil
}

// BuildResult holds the assembled chunks plus the files removed by the
// exclusion filter, which are reported but never sent downstream.
type BuildResult struct {
	Chunks        []*Chunk
	ExcludedFiles []string
}

// Build partitions the changed files between base and head into chunks.
// Files matching an exclusion pattern are filtered out first; files whose
// diff text is empty are skipped. A new chunk starts when adding the next
// file would push the running chunk past MaxChars (while it already holds
// a file) or when the chunk already holds MaxFiles.
//
// Returns nil (no error) when files changed but exclusion and empty-diff
// skipping removed them all, so the caller can distinguish "nothing
// changed" from "nothing left to analyze".
func Build(src DiffSource, base, head string, files []string, opts Options) (*BuildResult, error) {
	result := &BuildResult{}

	var kept []string
	for _, f := range files {
		if matchesAny(opts.Exclude, f) {
			result.ExcludedFiles = append(result.ExcludedFiles, f)
			continue
		}
		kept = append(kept, f)
	}
	if len(kept) == 0 {
		return nil, nil
	}

	var (
		current   *Chunk
		totalDiff int
	)
	flush := func() {
		if current != nil && len(current.Files) > 0 {
			result.Chunks = append(result.Chunks, current)
		}
		current = nil
	}

	for _, f := range kept {
		diff, err := src.DiffFile(base, head, f)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", f, err)
		}
		if diff == "" {
			continue
		}
		totalDiff += len(diff)

		if current != nil {
			// +1 for the newline joining the diffs below.
			over := len(current.Diff)+1+len(diff) > opts.MaxChars
			full := len(current.Files) >= opts.MaxFiles
			if over || full {
				flush()
			}
		}
		if current == nil {
			current = &Chunk{Snapshots: make(map[string]string)}
		}
		current.Files = append(current.Files, f)
		if current.Diff != "" {
			current.Diff += "\n"
		}
		current.Diff += diff

		// Baseline snapshot; absent at base (shouldn't happen for
		// edit-only patches) just leaves no snapshot entry.
		if content, err := src.Show(base, f); err == nil {
			current.Snapshots[f] = content
		}
	}
	flush()

	if len(result.Chunks) == 0 {
		if totalDiff > 0 {
			return nil, fmt.Errorf("diff text present but chunk assembly produced no chunks")
		}
		return nil, nil
	}
	return result, nil
}

func matchesAny(res []*regexp.Regexp, path string) bool {
	for _, re := range res {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}
