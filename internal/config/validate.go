package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a Config for structural and semantic errors.
// It returns a slice of all validation errors found (empty if valid).
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError
	p := cfg.Pipeline

	if p.Repo == "" {
		errs = append(errs, ValidationError{Field: "pipeline.repo", Message: "is required"})
	} else if !strings.Contains(p.Repo, "/") || strings.Count(p.Repo, "/") != 1 {
		errs = append(errs, ValidationError{Field: "pipeline.repo", Message: fmt.Sprintf("%q must be owner/name", p.Repo)})
	}
	if p.TestCommand == "" {
		errs = append(errs, ValidationError{Field: "pipeline.test_command", Message: "is required"})
	}
	if p.Generation.Model == "" {
		errs = append(errs, ValidationError{Field: "pipeline.generation.model", Message: "is required"})
	}

	if p.Chunking.MaxChars < 0 {
		errs = append(errs, ValidationError{Field: "pipeline.chunking.max_chars", Message: "must be positive"})
	}
	if p.Chunking.MaxFiles < 0 {
		errs = append(errs, ValidationError{Field: "pipeline.chunking.max_files", Message: "must be positive"})
	}
	if p.Chunking.MaxChunks < 0 {
		errs = append(errs, ValidationError{Field: "pipeline.chunking.max_chunks", Message: "must be positive"})
	}
	if p.Apply.RepairAttempts < 0 {
		errs = append(errs, ValidationError{Field: "pipeline.apply.repair_attempts", Message: "must be positive"})
	}

	if p.Apply.GuardMode != "strict" && p.Apply.GuardMode != "lenient" {
		errs = append(errs, ValidationError{
			Field:   "pipeline.apply.guard_mode",
			Message: fmt.Sprintf("unknown mode %q (want strict or lenient)", p.Apply.GuardMode),
		})
	}

	for field, value := range map[string]string{
		"pipeline.test_timeout":       p.TestTimeout,
		"pipeline.generation.timeout": p.Generation.Timeout,
		"pipeline.watch.interval":     p.Watch.Interval,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("invalid duration %q", value)})
		}
	}

	for i, pattern := range p.Chunking.Exclude {
		if _, err := regexp.Compile("(?i)" + pattern); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("pipeline.chunking.exclude[%d]", i),
				Message: fmt.Sprintf("invalid regex %q: %v", pattern, err),
			})
		}
	}

	return errs
}
