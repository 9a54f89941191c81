package cli

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/refinerylab/refinery/internal/config"
	"github.com/refinerylab/refinery/internal/db"
	"github.com/refinerylab/refinery/internal/github"
	"github.com/refinerylab/refinery/internal/gitx"
	"github.com/refinerylab/refinery/internal/llm"
	"github.com/refinerylab/refinery/internal/pipeline"
	"github.com/refinerylab/refinery/internal/verify"
)

var configFile string

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.Load(configFile)
	}
	return config.LoadDefault()
}

// loadValidConfig loads the config and refuses to proceed on validation
// errors.
func loadValidConfig() (*config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "config: %s\n", e)
		}
		return nil, fmt.Errorf("config has %d validation error(s)", len(errs))
	}
	return cfg, nil
}

// buildRunner wires a pipeline runner from config. The returned cleanup
// closes the history database and flushes the logger.
func buildRunner(cfg *config.Config, log *zap.Logger) (*pipeline.Runner, *gitx.Client, func(), error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("get working directory: %w", err)
	}
	execGit := &gitx.ExecGit{}
	root, err := gitx.RepoRoot(execGit, cwd)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("not inside a git repository: %w", err)
	}
	git := gitx.NewClient(execGit, root)

	p := cfg.Pipeline
	usage := &llm.UsageStats{}
	client := llm.NewClient(llm.Config{
		BaseURL:             p.Generation.BaseURL,
		APIKey:              os.Getenv(p.Generation.APIKeyEnv),
		Model:               p.Generation.Model,
		Temperature:         p.Generation.Temperature,
		Timeout:             config.Duration(p.Generation.Timeout, 0),
		MaxRetries:          p.Generation.MaxRetries,
		CostPer1KPrompt:     p.Generation.CostPer1KPrompt,
		CostPer1KCompletion: p.Generation.CostPer1KCompletion,
	})
	gen := llm.NewChatGenerator(client, usage, root)

	pub := github.NewClient(cfg.GitHub.APIURL, os.Getenv(cfg.GitHub.TokenEnv))
	tests := verify.NewRunner(&verify.ExecRunner{})

	history, err := openHistory(p.HistoryDB)
	if err != nil {
		// Missing history never blocks a run.
		log.Warn("run history unavailable", zap.Error(err))
		history = nil
	}

	runner := pipeline.NewRunner(git, gen, pub, tests, cfg, usage, history, log)
	cleanup := func() {
		if history != nil {
			history.Close()
		}
		_ = log.Sync()
	}
	return runner, git, cleanup, nil
}

func openHistory(path string) (*db.DB, error) {
	if path == "" {
		var err error
		path, err = db.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	return db.Open(path)
}
