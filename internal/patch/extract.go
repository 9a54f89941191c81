package patch

import (
	"errors"
	"strings"
)

// NoChangesSentinel is the exact line a generator emits to decline a chunk.
const NoChangesSentinel = "NO_CHANGES_NEEDED"

// ErrNoDiff means the response contained no diff-shaped content at all.
var ErrNoDiff = errors.New("no unified diff found in response")

// Result is the outcome of extracting a generator response: either an
// explicit "no changes" signal or a sanitized unified diff. Exactly one
// case is set.
type Result struct {
	NoChanges bool
	Patch     string
}

// Extract converts raw generator text into a sanitized, structurally valid
// unified diff. The sentinel alone on any line short-circuits to NoChanges.
// Otherwise the diff is located (fenced diff block, then any fenced block,
// then a bare scan from the first diff header), sanitized down to
// recognized diff syntax, and validated.
func Extract(raw string) (*Result, error) {
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == NoChangesSentinel {
			return &Result{NoChanges: true}, nil
		}
	}

	body := locateDiff(raw)
	if body == "" {
		return nil, ErrNoDiff
	}

	clean := Sanitize(body)
	if err := Validate(clean); err != nil {
		return nil, err
	}
	return &Result{Patch: clean}, nil
}

// locateDiff finds the most plausible diff content in raw text. Preference
// order: a fenced code block labeled diff, any fenced block that contains a
// diff header, then a bare scan from the first diff header line to a
// closing fence or end of text.
func locateDiff(raw string) string {
	lines := strings.Split(raw, "\n")

	if block := fencedBlock(lines, true); block != "" {
		return block
	}
	if block := fencedBlock(lines, false); block != "" {
		return block
	}

	start := -1
	for i, line := range lines {
		if isDiffStart(line) {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}
	end := len(lines)
	for i := start; i < len(lines); i++ {
		if strings.HasPrefix(lines[i], "```") {
			end = i
			break
		}
	}
	return strings.Join(lines[start:end], "\n")
}

// fencedBlock returns the contents of the first fenced block that holds
// diff content. When labeledOnly is set, only blocks tagged diff/patch
// qualify; otherwise any fenced block containing a diff header does.
func fencedBlock(lines []string, labeledOnly bool) string {
	for i := 0; i < len(lines); i++ {
		if !strings.HasPrefix(lines[i], "```") {
			continue
		}
		label := strings.TrimSpace(strings.TrimPrefix(lines[i], "```"))
		var body []string
		closed := false
		j := i + 1
		for ; j < len(lines); j++ {
			if strings.HasPrefix(lines[j], "```") {
				closed = true
				break
			}
			body = append(body, lines[j])
		}
		content := strings.Join(body, "\n")
		ok := false
		if labeledOnly {
			ok = label == "diff" || label == "patch"
		} else {
			ok = containsDiffStart(body)
		}
		if ok && content != "" {
			return content
		}
		if closed {
			i = j
		} else {
			break
		}
	}
	return ""
}

func containsDiffStart(lines []string) bool {
	for _, line := range lines {
		if isDiffStart(line) {
			return true
		}
	}
	return false
}

func isDiffStart(line string) bool {
	return strings.HasPrefix(line, "diff --git ") || strings.HasPrefix(line, "--- ")
}

// Sanitize re-emits only recognized unified-diff syntax. Inside a hunk,
// only lines prefixed with space/+/- (or the no-newline marker) survive;
// generator prose is dropped. Outside a hunk, unrecognized lines are
// trimmed and kept when non-empty.
func Sanitize(body string) string {
	var out []string
	inHunk := false
	for _, line := range strings.Split(body, "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git "),
			strings.HasPrefix(line, "--- "),
			strings.HasPrefix(line, "+++ "):
			inHunk = false
			out = append(out, line)
		case strings.HasPrefix(line, "@@"):
			inHunk = true
			out = append(out, line)
		case isMetadataLine(line):
			inHunk = false
			out = append(out, line)
		case inHunk:
			if line == "" {
				// Blank context line with its leading space stripped
				// by the generator; restore it.
				out = append(out, " ")
				continue
			}
			switch line[0] {
			case ' ', '+', '-', '\\':
				out = append(out, line)
			}
			// anything else inside a hunk is prose, dropped
		default:
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return strings.Join(out, "\n")
}

var metadataPrefixes = []string{
	"index ",
	"old mode ",
	"new mode ",
	"deleted file mode ",
	"new file mode ",
	"similarity index ",
	"dissimilarity index ",
	"rename from ",
	"rename to ",
	"copy from ",
	"copy to ",
	"Binary files ",
	"GIT binary patch",
}

func isMetadataLine(line string) bool {
	for _, p := range metadataPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}
