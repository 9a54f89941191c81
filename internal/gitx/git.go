package gitx

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Runner provides git command execution. Interface for testing.
type Runner interface {
	Run(dir string, args ...string) (string, error)
}

// CmdError is a typed failure from a git command, carrying the captured
// output streams and exit code so callers can feed them back into repair
// prompts or classify the failure.
type CmdError struct {
	Args     []string
	Stdout   string
	Stderr   string
	ExitCode int
}

func (e *CmdError) Error() string {
	msg := e.Stderr
	if msg == "" {
		msg = e.Stdout
	}
	return fmt.Sprintf("git %s: exit %d: %s", strings.Join(e.Args, " "), e.ExitCode, msg)
}

// AsCmdError unwraps a CmdError from err if present.
func AsCmdError(err error) (*CmdError, bool) {
	var ce *CmdError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// ExecGit implements Runner using exec.Command.
type ExecGit struct{}

func (g *ExecGit) Run(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		exit := -1
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			exit = ee.ExitCode()
		}
		return strings.TrimSpace(stdout.String()), &CmdError{
			Args:     args,
			Stdout:   strings.TrimSpace(stdout.String()),
			Stderr:   strings.TrimSpace(stderr.String()),
			ExitCode: exit,
		}
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Client wraps a Runner with a repository directory and exposes the git
// operations the pipeline needs.
type Client struct {
	git Runner
	dir string
}

// NewClient creates a git client rooted at dir.
func NewClient(git Runner, dir string) *Client {
	return &Client{git: git, dir: dir}
}

// Dir returns the repository directory the client operates in.
func (c *Client) Dir() string {
	return c.dir
}

// ChangedFiles lists the files changed between base and head, in git's order.
func (c *Client) ChangedFiles(base, head string) ([]string, error) {
	out, err := c.git.Run(c.dir, "diff", "--name-only", base, head)
	if err != nil {
		return nil, fmt.Errorf("list changed files: %w", err)
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// DiffFile returns the unified diff for a single path between base and head.
func (c *Client) DiffFile(base, head, path string) (string, error) {
	out, err := c.git.Run(c.dir, "diff", base, head, "--", path)
	if err != nil {
		return "", fmt.Errorf("diff %s: %w", path, err)
	}
	return out, nil
}

// Show returns the full content of path at ref.
func (c *Client) Show(ref, path string) (string, error) {
	out, err := c.git.Run(c.dir, "show", ref+":"+path)
	if err != nil {
		return "", fmt.Errorf("show %s at %s: %w", path, ref, err)
	}
	return out, nil
}

// CurrentBranch returns the checked-out branch name, or HEAD when detached.
func (c *Client) CurrentBranch() (string, error) {
	out, err := c.git.Run(c.dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("current branch: %w", err)
	}
	return out, nil
}

// RevParse resolves a ref to a commit SHA.
func (c *Client) RevParse(ref string) (string, error) {
	out, err := c.git.Run(c.dir, "rev-parse", ref)
	if err != nil {
		return "", fmt.Errorf("rev-parse %s: %w", ref, err)
	}
	return out, nil
}

// MergeBase returns the merge base of two refs.
func (c *Client) MergeBase(a, b string) (string, error) {
	out, err := c.git.Run(c.dir, "merge-base", a, b)
	if err != nil {
		return "", fmt.Errorf("merge-base %s %s: %w", a, b, err)
	}
	return out, nil
}

// Apply validates a patch with --check and then stages it with --index.
// The patch is written to a temp file because git reads it by path. On
// failure the returned error wraps a CmdError with the raw apply output.
func (c *Client) Apply(patch string) error {
	f, err := os.CreateTemp("", "refinery-*.patch")
	if err != nil {
		return fmt.Errorf("write patch file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)
	if _, err := f.WriteString(patch); err != nil {
		f.Close()
		return fmt.Errorf("write patch file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write patch file: %w", err)
	}

	if _, err := c.git.Run(c.dir, "apply", "--check", path); err != nil {
		return fmt.Errorf("apply check: %w", err)
	}
	if _, err := c.git.Run(c.dir, "apply", "--index", path); err != nil {
		return fmt.Errorf("apply: %w", err)
	}
	return nil
}

// HasStagedChanges reports whether the index differs from HEAD.
// git diff --cached --quiet exits 1 when staged changes exist.
func (c *Client) HasStagedChanges() (bool, error) {
	_, err := c.git.Run(c.dir, "diff", "--cached", "--quiet")
	if err == nil {
		return false, nil
	}
	if ce, ok := AsCmdError(err); ok && ce.ExitCode == 1 {
		return true, nil
	}
	return false, fmt.Errorf("check staged changes: %w", err)
}

// CheckoutNewBranch creates and checks out a branch at the given start point.
func (c *Client) CheckoutNewBranch(name, startPoint string) error {
	args := []string{"checkout", "-b", name}
	if startPoint != "" {
		args = append(args, startPoint)
	}
	if _, err := c.git.Run(c.dir, args...); err != nil {
		return fmt.Errorf("checkout branch %s: %w", name, err)
	}
	return nil
}

// Checkout switches the working tree to ref.
func (c *Client) Checkout(ref string) error {
	if _, err := c.git.Run(c.dir, "checkout", ref); err != nil {
		return fmt.Errorf("checkout %s: %w", ref, err)
	}
	return nil
}

// Commit records the staged changes with the given message.
func (c *Client) Commit(message string) error {
	if _, err := c.git.Run(c.dir, "commit", "-m", message); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Push pushes branch to remote, setting upstream.
func (c *Client) Push(remote, branch string) error {
	if _, err := c.git.Run(c.dir, "push", "-u", remote, branch); err != nil {
		return fmt.Errorf("push %s: %w", branch, err)
	}
	return nil
}

// ResetWorkingTree discards staged and unstaged changes so no partial
// apply survives a skipped run.
func (c *Client) ResetWorkingTree() error {
	if _, err := c.git.Run(c.dir, "reset", "--hard", "HEAD"); err != nil {
		return fmt.Errorf("reset working tree: %w", err)
	}
	return nil
}

// RepoRoot returns the top-level directory of the repository containing dir.
func RepoRoot(git Runner, dir string) (string, error) {
	out, err := git.Run(dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("rev-parse --show-toplevel: %w", err)
	}
	return filepath.Clean(out), nil
}
