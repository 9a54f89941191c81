package chunk

import (
	"path/filepath"
	"strings"
)

// Kind classifies a changed file for prioritization and for the behavior
// guard. Both consumers share this table so their notions of "test" and
// "source" cannot drift apart.
type Kind int

const (
	KindOther     Kind = iota // unrecognized extension
	KindGenerated             // build output, vendored or minified code, lockfiles
	KindSource                // recognized source extension
	KindDocConfig             // documentation or configuration
	KindTest                  // test file by path or name convention
)

func (k Kind) String() string {
	switch k {
	case KindTest:
		return "test"
	case KindDocConfig:
		return "doc/config"
	case KindSource:
		return "source"
	case KindGenerated:
		return "generated"
	default:
		return "other"
	}
}

var sourceExts = map[string]bool{
	".go": true, ".js": true, ".mjs": true, ".cjs": true, ".jsx": true,
	".ts": true, ".tsx": true, ".py": true, ".rb": true, ".java": true,
	".c": true, ".h": true, ".cpp": true, ".hpp": true, ".cc": true,
	".cs": true, ".rs": true, ".kt": true, ".swift": true, ".php": true,
	".scala": true, ".sh": true,
}

var docConfigExts = map[string]bool{
	".md": true, ".markdown": true, ".rst": true, ".adoc": true, ".txt": true,
	".json": true, ".yaml": true, ".yml": true, ".toml": true, ".ini": true,
	".cfg": true, ".conf": true, ".env": true, ".properties": true,
}

var lockfileNames = map[string]bool{
	"package-lock.json": true, "yarn.lock": true, "pnpm-lock.yaml": true,
	"go.sum": true, "cargo.lock": true, "gemfile.lock": true,
	"composer.lock": true, "poetry.lock": true,
}

// Classify maps a repository-relative path to its Kind. Test and
// generated conventions win over plain extension lookup.
func Classify(path string) Kind {
	lower := strings.ToLower(filepath.ToSlash(path))
	base := lower
	if i := strings.LastIndex(lower, "/"); i >= 0 {
		base = lower[i+1:]
	}
	ext := filepath.Ext(base)

	if isTestPath(lower, base) {
		return KindTest
	}
	if isGeneratedPath(lower, base) {
		return KindGenerated
	}
	if sourceExts[ext] {
		return KindSource
	}
	if docConfigExts[ext] {
		return KindDocConfig
	}
	return KindOther
}

func isTestPath(lower, base string) bool {
	if strings.HasSuffix(base, "_test.go") {
		return true
	}
	for _, marker := range []string{".test.", ".spec.", "_test.", "_spec."} {
		if strings.Contains(base, marker) {
			return true
		}
	}
	for _, dir := range []string{"/test/", "/tests/", "/__tests__/", "/spec/", "/testdata/"} {
		if strings.Contains("/"+lower, dir) {
			return true
		}
	}
	return false
}

func isGeneratedPath(lower, base string) bool {
	if lockfileNames[base] {
		return true
	}
	for _, suffix := range []string{".min.js", ".min.css", ".map", ".pb.go", ".gen.go", "_generated.go"} {
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}
	for _, dir := range []string{"/vendor/", "/node_modules/", "/dist/", "/build/", "/out/", "/target/"} {
		if strings.Contains("/"+lower, dir) {
			return true
		}
	}
	return false
}
