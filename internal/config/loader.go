package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a refinery configuration from the given YAML file
// path, then fills in defaults for unset fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault searches standard locations and loads the first config
// found. Search order: ./refinery.yaml, ~/.refinery/config.yaml
func LoadDefault() (*Config, error) {
	candidates := []string{"refinery.yaml"}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".refinery", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	return nil, fmt.Errorf("no refinery config found (searched: %v)", candidates)
}

// applyDefaults fills unset fields with working defaults.
func applyDefaults(cfg *Config) {
	p := &cfg.Pipeline

	if p.BaseBranch == "" {
		p.BaseBranch = "main"
	}
	if p.BranchPrefix == "" {
		p.BranchPrefix = "refinery/"
	}
	if p.TestTimeout == "" {
		p.TestTimeout = "10m"
	}
	if p.Chunking.MaxChars == 0 {
		p.Chunking.MaxChars = 12000
	}
	if p.Chunking.MaxFiles == 0 {
		p.Chunking.MaxFiles = 6
	}
	if p.Chunking.MaxChunks == 0 {
		p.Chunking.MaxChunks = 8
	}
	if p.Generation.BaseURL == "" {
		p.Generation.BaseURL = "https://api.openai.com/v1"
	}
	if p.Generation.APIKeyEnv == "" {
		p.Generation.APIKeyEnv = "OPENAI_API_KEY"
	}
	if p.Generation.Timeout == "" {
		p.Generation.Timeout = "2m"
	}
	if p.Generation.MaxRetries == 0 {
		p.Generation.MaxRetries = 3
	}
	if p.Apply.RepairAttempts == 0 {
		p.Apply.RepairAttempts = 2
	}
	if p.Apply.GuardMode == "" {
		p.Apply.GuardMode = "strict"
	}
	if p.Watch.Interval == "" {
		p.Watch.Interval = "60s"
	}
	if cfg.GitHub.APIURL == "" {
		cfg.GitHub.APIURL = "https://api.github.com"
	}
	if cfg.GitHub.TokenEnv == "" {
		cfg.GitHub.TokenEnv = "GITHUB_TOKEN"
	}
}
