package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRender_Variables(t *testing.T) {
	out, err := Render("repo {{repo}} range {{base}}..{{head}}", Vars{
		"repo": "acme/widgets",
		"base": "aaa",
		"head": "bbb",
	})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if out != "repo acme/widgets range aaa..bbb" {
		t.Errorf("out = %q", out)
	}
}

func TestRender_MissingVariable(t *testing.T) {
	_, err := Render("hello {{name}}", Vars{})
	if err == nil || !strings.Contains(err.Error(), "name") {
		t.Fatalf("err = %v, want missing-variable error naming 'name'", err)
	}
}

func TestRender_Conditionals(t *testing.T) {
	tmpl := "start{{#if note}} note: {{note}}{{/if}} end"

	out, err := Render(tmpl, Vars{"note": "careful"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "start note: careful end" {
		t.Errorf("out = %q", out)
	}

	out, err = Render(tmpl, Vars{"note": ""})
	if err != nil {
		t.Fatal(err)
	}
	if out != "start end" {
		t.Errorf("out = %q", out)
	}
}

func TestRender_DanglingClose(t *testing.T) {
	if _, err := Render("oops {{/if}}", Vars{}); err == nil {
		t.Fatal("expected error for dangling {{/if}}")
	}
}

func TestLoad_BuiltinsAndOverride(t *testing.T) {
	tmpl, err := Load("refactor.md", "")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !strings.Contains(tmpl, "NO_CHANGES_NEEDED") {
		t.Error("builtin refactor template missing decline sentinel")
	}

	if _, err := Load("nonexistent.md", ""); err == nil {
		t.Fatal("expected error for unknown template")
	}

	workdir := t.TempDir()
	dir := filepath.Join(workdir, ".refinery", "templates")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "refactor.md"), []byte("custom {{diff}}"), 0o644); err != nil {
		t.Fatal(err)
	}
	tmpl, err = Load("refactor.md", workdir)
	if err != nil {
		t.Fatal(err)
	}
	if tmpl != "custom {{diff}}" {
		t.Errorf("override not used: %q", tmpl)
	}
}

func TestBuiltinTemplatesRender(t *testing.T) {
	vars := Vars{
		"repo":         "acme/widgets",
		"base_ref":     "aaa",
		"head_ref":     "bbb",
		"diff":         "--- a/x\n+++ b/x",
		"snapshots":    "### x\ncontent",
		"files":        "x",
		"failed_patch": "bad",
		"apply_error":  "hunk failed",
	}
	for name := range builtinTemplates {
		tmpl, err := Load(name, "")
		if err != nil {
			t.Fatalf("Load(%s): %v", name, err)
		}
		out, err := Render(tmpl, vars)
		if err != nil {
			t.Errorf("Render(%s): %v", name, err)
		}
		if strings.Contains(out, "{{") {
			t.Errorf("%s left unexpanded placeholders:\n%s", name, out)
		}
	}
}
