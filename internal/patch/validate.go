package patch

import (
	"fmt"
	"strings"
)

// ValidationError reports the first structural violation in a patch,
// citing the offending line.
type ValidationError struct {
	Line    int // 1-based
	Excerpt string
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid patch at line %d: %s: %q", e.Line, e.Reason, e.Excerpt)
	}
	return fmt.Sprintf("invalid patch: %s", e.Reason)
}

// Validate checks that a sanitized patch is structurally a unified diff:
// at least one file-header pair, at least one hunk marker, every in-hunk
// non-empty line carrying a valid prefix, and no null-device headers
// (creating or deleting files is out of contract — only edits to existing
// tracked files are accepted).
func Validate(p string) error {
	lines := strings.Split(p, "\n")

	headerPairs := 0
	hunks := 0
	inHunk := false
	sawOld := false

	for i, line := range lines {
		n := i + 1
		switch {
		case strings.HasPrefix(line, "--- "):
			inHunk = false
			if strings.Contains(line, "/dev/null") {
				return &ValidationError{Line: n, Excerpt: excerpt(line), Reason: "null-device file header (file creation/deletion not allowed)"}
			}
			sawOld = true
		case strings.HasPrefix(line, "+++ "):
			inHunk = false
			if strings.Contains(line, "/dev/null") {
				return &ValidationError{Line: n, Excerpt: excerpt(line), Reason: "null-device file header (file creation/deletion not allowed)"}
			}
			if sawOld {
				headerPairs++
				sawOld = false
			}
		case strings.HasPrefix(line, "@@"):
			inHunk = true
			hunks++
		case strings.HasPrefix(line, "diff --git "), isMetadataLine(line):
			inHunk = false
		case inHunk:
			if line == "" {
				continue
			}
			switch line[0] {
			case ' ', '+', '-', '\\':
			default:
				return &ValidationError{Line: n, Excerpt: excerpt(line), Reason: "hunk line lacks a valid space/+/- prefix"}
			}
		}
	}

	if headerPairs == 0 {
		return &ValidationError{Reason: "no file header pair (---/+++) found"}
	}
	if hunks == 0 {
		return &ValidationError{Reason: "no hunk marker (@@) found"}
	}
	return nil
}

func excerpt(line string) string {
	const max = 80
	if len(line) > max {
		return line[:max] + "..."
	}
	return line
}

// FileEdit holds the per-file removed and added line bodies of a patch,
// prefixes stripped. Used by the behavior guard and for reporting.
type FileEdit struct {
	Path    string
	Removed []string
	Added   []string
}

// FileEdits walks a patch and groups its hunk lines by touched file. The
// path comes from the +++ header with any a/ b/ prefix stripped.
type fileEditBuilder struct {
	order []string
	byPth map[string]*FileEdit
}

func FileEdits(p string) []FileEdit {
	b := &fileEditBuilder{byPth: make(map[string]*FileEdit)}
	var current *FileEdit
	inHunk := false

	for _, line := range strings.Split(p, "\n") {
		switch {
		case strings.HasPrefix(line, "+++ "):
			inHunk = false
			path := stripPathPrefix(strings.TrimSpace(strings.TrimPrefix(line, "+++ ")))
			current = b.get(path)
		case strings.HasPrefix(line, "--- "), strings.HasPrefix(line, "diff --git "), isMetadataLine(line):
			inHunk = false
		case strings.HasPrefix(line, "@@"):
			inHunk = true
		case inHunk && current != nil && line != "":
			switch line[0] {
			case '-':
				current.Removed = append(current.Removed, line[1:])
			case '+':
				current.Added = append(current.Added, line[1:])
			}
		}
	}

	edits := make([]FileEdit, 0, len(b.order))
	for _, path := range b.order {
		edits = append(edits, *b.byPth[path])
	}
	return edits
}

func (b *fileEditBuilder) get(path string) *FileEdit {
	if e, ok := b.byPth[path]; ok {
		return e
	}
	e := &FileEdit{Path: path}
	b.byPth[path] = e
	b.order = append(b.order, path)
	return e
}

// TouchedFiles lists the files a patch edits, in patch order, deduplicated.
func TouchedFiles(p string) []string {
	seen := make(map[string]bool)
	var files []string
	for _, line := range strings.Split(p, "\n") {
		if !strings.HasPrefix(line, "+++ ") {
			continue
		}
		path := stripPathPrefix(strings.TrimSpace(strings.TrimPrefix(line, "+++ ")))
		if path == "" || path == "/dev/null" || seen[path] {
			continue
		}
		seen[path] = true
		files = append(files, path)
	}
	return files
}

// FileStat counts added and removed lines for one file, for reporting.
type FileStat struct {
	Path    string
	Added   int
	Removed int
}

// Stats summarizes a patch per file.
func Stats(p string) []FileStat {
	edits := FileEdits(p)
	stats := make([]FileStat, 0, len(edits))
	for _, e := range edits {
		stats = append(stats, FileStat{Path: e.Path, Added: len(e.Added), Removed: len(e.Removed)})
	}
	return stats
}

func stripPathPrefix(path string) string {
	for _, prefix := range []string{"a/", "b/"} {
		if strings.HasPrefix(path, prefix) {
			return path[len(prefix):]
		}
	}
	return path
}
