package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/refinerylab/refinery/internal/chunk"
	"github.com/refinerylab/refinery/internal/patch"
	"github.com/refinerylab/refinery/internal/prompt"
)

// Result is a generator's answer for one chunk: either an explicit
// "no changes" or a structurally valid patch. Exactly one case is set.
type Result struct {
	NoChanges bool
	Patch     string
}

// Generator produces candidate patches for diff chunks. Interface for
// testing; implemented by ChatGenerator.
type Generator interface {
	Generate(ctx context.Context, repo, baseRef, headRef string, c *chunk.Chunk) (*Result, error)
	Repair(ctx context.Context, repo, baseRef, headRef string, c *chunk.Chunk, failedPatch, applyError string) (*Result, error)
}

// ChatGenerator implements Generator over a chat-completions client.
// Extraction failures surface as typed errors (patch.ErrNoDiff or
// *patch.ValidationError); transport failures as ErrTimeout or *APIError.
// Classifying them into failure kinds is the pipeline's job.
type ChatGenerator struct {
	client  *Client
	stats   *UsageStats
	workdir string // template override root
}

// NewChatGenerator creates a generator that records usage into stats.
func NewChatGenerator(client *Client, stats *UsageStats, workdir string) *ChatGenerator {
	return &ChatGenerator{client: client, stats: stats, workdir: workdir}
}

const systemPrompt = "You produce unified diffs for behavior-preserving code cleanups. You respond with a single fenced diff block or the line NO_CHANGES_NEEDED, nothing else."

// Generate asks for a candidate patch for the chunk.
func (g *ChatGenerator) Generate(ctx context.Context, repo, baseRef, headRef string, c *chunk.Chunk) (*Result, error) {
	tmpl, err := prompt.Load("refactor.md", g.workdir)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	user, err := prompt.Render(tmpl, prompt.Vars{
		"repo":      repo,
		"base_ref":  baseRef,
		"head_ref":  headRef,
		"diff":      c.Diff,
		"snapshots": formatSnapshots(c),
	})
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}
	return g.request(ctx, user)
}

// Repair asks for a corrected patch after an apply failure, feeding back
// the failing patch text and the raw apply error.
func (g *ChatGenerator) Repair(ctx context.Context, repo, baseRef, headRef string, c *chunk.Chunk, failedPatch, applyError string) (*Result, error) {
	tmpl, err := prompt.Load("repair.md", g.workdir)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	user, err := prompt.Render(tmpl, prompt.Vars{
		"repo":         repo,
		"base_ref":     baseRef,
		"head_ref":     headRef,
		"files":        strings.Join(c.Files, ", "),
		"failed_patch": failedPatch,
		"apply_error":  applyError,
		"snapshots":    formatSnapshots(c),
	})
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}
	return g.request(ctx, user)
}

func (g *ChatGenerator) request(ctx context.Context, user string) (*Result, error) {
	content, usage, err := g.client.Chat(ctx, []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: user},
	})
	if g.stats != nil {
		g.stats.Add(usage)
	}
	if err != nil {
		return nil, err
	}

	extracted, err := patch.Extract(content)
	if err != nil {
		return nil, err
	}
	if extracted.NoChanges {
		return &Result{NoChanges: true}, nil
	}
	return &Result{Patch: extracted.Patch}, nil
}

// formatSnapshots renders the chunk's baseline file contents in stable
// path order.
func formatSnapshots(c *chunk.Chunk) string {
	paths := make([]string, 0, len(c.Snapshots))
	for p := range c.Snapshots {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, p := range paths {
		fmt.Fprintf(&b, "### %s\n```\n%s\n```\n\n", p, c.Snapshots[p])
	}
	return strings.TrimRight(b.String(), "\n")
}
