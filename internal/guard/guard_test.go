package guard

import (
	"strings"
	"testing"
)

func patchFor(path string, removed, added []string) string {
	lines := []string{
		"--- a/" + path,
		"+++ b/" + path,
		"@@ -1 +1 @@",
	}
	for _, r := range removed {
		lines = append(lines, "-"+r)
	}
	for _, a := range added {
		lines = append(lines, "+"+a)
	}
	return strings.Join(lines, "\n")
}

func TestCheck_ReformattedSourceIsSafe(t *testing.T) {
	p := patchFor("calc.js",
		[]string{"function sum(a,b){return a+b;}"},
		[]string{"function sum(a, b) {", "  return a + b;", "}"},
	)
	result := Check(p)
	if !result.Safe {
		t.Fatalf("reformatting flagged unsafe: %v", result.Reasons)
	}
}

func TestCheck_OperatorChangeIsUnsafe(t *testing.T) {
	p := patchFor("calc.js",
		[]string{"return a + b;"},
		[]string{"return a - b;"},
	)
	result := Check(p)
	if result.Safe {
		t.Fatal("operator change passed the guard")
	}
	if len(result.Reasons) != 1 || !strings.Contains(result.Reasons[0], "semantic token changes") {
		t.Errorf("Reasons = %v", result.Reasons)
	}
	if !strings.Contains(result.Reasons[0], "calc.js") {
		t.Errorf("reason does not name the file: %v", result.Reasons)
	}
}

func TestCheck_CommentOnlyChangeIsSafe(t *testing.T) {
	p := patchFor("main.go",
		[]string{"x := compute() // old note"},
		[]string{"// recomputed each call", "x := compute()"},
	)
	if result := Check(p); !result.Safe {
		t.Fatalf("comment-only change flagged unsafe: %v", result.Reasons)
	}
}

func TestCheck_TestAndDocFilesExempt(t *testing.T) {
	for _, path := range []string{"server_test.go", "README.md", "config.yaml"} {
		p := patchFor(path,
			[]string{"completely different"},
			[]string{"rewritten content here"},
		)
		if result := Check(p); !result.Safe {
			t.Errorf("%s: exempt file flagged unsafe: %v", path, result.Reasons)
		}
	}
}

func TestCheck_UnsupportedFileTypeRejected(t *testing.T) {
	p := patchFor("assets/logo.svg",
		[]string{"<svg/>"},
		[]string{"<svg></svg>"},
	)
	result := Check(p)
	if result.Safe {
		t.Fatal("unsupported file type passed the guard")
	}
	if !strings.Contains(result.Reasons[0], "unsupported file type") {
		t.Errorf("Reasons = %v", result.Reasons)
	}
}

func TestCheck_MultiFileReportsEachViolation(t *testing.T) {
	bad1 := patchFor("a.go", []string{"x = 1"}, []string{"x = 2"})
	bad2 := patchFor("b.go", []string{"y()"}, []string{"z()"})
	result := Check(bad1 + "\n" + bad2)
	if len(result.Reasons) != 2 {
		t.Fatalf("Reasons = %v, want one per file", result.Reasons)
	}
}

func TestCheck_AdditionWithoutRemovalInSourceIsUnsafe(t *testing.T) {
	p := patchFor("main.go", nil, []string{"extraCall()"})
	if result := Check(p); result.Safe {
		t.Fatal("pure addition to source passed the guard")
	}
}
