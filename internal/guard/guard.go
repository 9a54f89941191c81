// Package guard implements the behavior-risk check that gates accepted
// patches: edits to ordinary source files must be token-equivalent to what
// they replace, while tests, docs, and config may be rewritten freely.
package guard

import (
	"fmt"
	"strings"

	"github.com/refinerylab/refinery/internal/chunk"
	"github.com/refinerylab/refinery/internal/patch"
)

// Result reports whether a patch is behavior-safe. Any non-empty Reasons
// is a hard block for the candidate.
type Result struct {
	Safe    bool
	Reasons []string
}

// Check walks the patch per touched file. Source files are compared
// token-for-token between removed and added lines; test/doc/config files
// are exempt; any other file type is an automatic rejection.
func Check(p string) Result {
	var reasons []string
	for _, edit := range patch.FileEdits(p) {
		switch chunk.Classify(edit.Path) {
		case chunk.KindTest, chunk.KindDocConfig:
			continue
		case chunk.KindSource:
			removed := Tokenize(strings.Join(edit.Removed, "\n"))
			added := Tokenize(strings.Join(edit.Added, "\n"))
			if !equalTokens(removed, added) {
				reasons = append(reasons, fmt.Sprintf("%s: semantic token changes in source file", edit.Path))
			}
		default:
			reasons = append(reasons, fmt.Sprintf("%s: unsupported file type for automated edits", edit.Path))
		}
	}
	return Result{Safe: len(reasons) == 0, Reasons: reasons}
}

func equalTokens(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
