package config

import (
	"strings"
	"time"
)

// Config is the top-level configuration structure parsed from refinery YAML.
type Config struct {
	Pipeline Pipeline `yaml:"pipeline"`
	GitHub   GitHub   `yaml:"github"`
}

// Pipeline defines one refactor-proposal pipeline: repository, test gate,
// chunking bounds, generation client, and apply policy.
type Pipeline struct {
	Repo         string     `yaml:"repo"` // owner/name, used for PR creation
	BaseBranch   string     `yaml:"base_branch"`
	BranchPrefix string     `yaml:"branch_prefix"`
	TestCommand  string     `yaml:"test_command"`
	TestTimeout  string     `yaml:"test_timeout"`
	Chunking     Chunking   `yaml:"chunking"`
	Generation   Generation `yaml:"generation"`
	Apply        Apply      `yaml:"apply"`
	Watch        Watch      `yaml:"watch"`
	HistoryDB    string     `yaml:"history_db"`
}

// Chunking bounds how the diff is partitioned into work units.
type Chunking struct {
	MaxChars  int      `yaml:"max_chars"`
	MaxFiles  int      `yaml:"max_files"`
	MaxChunks int      `yaml:"max_chunks"` // per-run chunk budget
	Exclude   []string `yaml:"exclude"`    // case-insensitive path regexes
}

// Generation configures the chat-completions client.
type Generation struct {
	Model               string  `yaml:"model"`
	BaseURL             string  `yaml:"base_url"`
	APIKeyEnv           string  `yaml:"api_key_env"`
	Temperature         float64 `yaml:"temperature"`
	Timeout             string  `yaml:"timeout"`
	MaxRetries          int     `yaml:"max_retries"`
	CostPer1KPrompt     float64 `yaml:"cost_per_1k_prompt"`
	CostPer1KCompletion float64 `yaml:"cost_per_1k_completion"`
}

// Apply configures the apply/repair state machine.
type Apply struct {
	RepairAttempts int    `yaml:"repair_attempts"`
	GuardMode      string `yaml:"guard_mode"` // strict | lenient
}

// Watch configures the polling watch mode.
type Watch struct {
	Interval  string `yaml:"interval"`
	EventFile string `yaml:"event_file"` // optional structured commit-range payload
}

// GitHub configures the publication client.
type GitHub struct {
	APIURL   string `yaml:"api_url"`
	TokenEnv string `yaml:"token_env"`
}

// Owner returns the owner half of pipeline.repo.
func (p Pipeline) Owner() string {
	owner, _, _ := strings.Cut(p.Repo, "/")
	return owner
}

// Name returns the repository half of pipeline.repo.
func (p Pipeline) Name() string {
	_, name, _ := strings.Cut(p.Repo, "/")
	return name
}

// StrictGuard reports whether the behavior guard is enabled.
func (p Pipeline) StrictGuard() bool {
	return p.Apply.GuardMode != "lenient"
}

// Duration parses a config duration string, falling back when empty or
// invalid.
func Duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
