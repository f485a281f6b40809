package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete megaplan configuration
type Config struct {
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Issue    IssueConfig    `mapstructure:"issue"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// PipelineConfig controls pipeline execution behavior
type PipelineConfig struct {
	// OutputDir is the directory where run artifacts are written (default: ".tmp")
	OutputDir string `mapstructure:"output_dir"`
	// OutputSuffix is the filename suffix for stage output artifacts (default: "-output.md")
	OutputSuffix string `mapstructure:"output_suffix"`
	// MaxParallel caps concurrent stage executions within a tier.
	// 0 means no cap beyond the tier's own stage count.
	MaxParallel int `mapstructure:"max_parallel"`
	// Resume reuses existing non-empty stage outputs instead of re-executing (default: false)
	Resume bool `mapstructure:"resume"`
}

// StageOverride replaces the registry's default backend and model for one stage.
// Empty fields fall back to the registry defaults.
type StageOverride struct {
	Backend string `mapstructure:"backend"`
	Model   string `mapstructure:"model"`
}

// ExecutorConfig controls how stage executors are launched
type ExecutorConfig struct {
	// ClaudeCommand is the claude CLI binary (default: "claude")
	ClaudeCommand string `mapstructure:"claude_command"`
	// CodexCommand is the codex CLI binary (default: "codex")
	CodexCommand string `mapstructure:"codex_command"`
	// PermittedTools are glob patterns for tools stages may request.
	// A stage whose allowlist includes a tool matching no pattern fails
	// validation before dispatch (default: ["*"]).
	PermittedTools []string `mapstructure:"permitted_tools"`
	// TimeoutMinutes is the per-stage execution timeout; 0 disables it (default: 30)
	TimeoutMinutes int `mapstructure:"timeout_minutes"`
	// Overrides replaces the default backend/model per stage name
	Overrides map[string]StageOverride `mapstructure:"overrides"`
}

// IssueConfig controls issue tracker integration
type IssueConfig struct {
	// Enabled publishes plans to the issue tracker (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Labels are added to plan issues (default: ["megaplan:plan"])
	Labels []string `mapstructure:"labels"`
	// TitlePrefix is prepended to issue titles (default: "[plan]")
	TitlePrefix string `mapstructure:"title_prefix"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
}

// Timeout returns the per-stage timeout as a time.Duration (0 means disabled)
func (e *ExecutorConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutMinutes) * time.Minute
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			OutputDir:    ".tmp",
			OutputSuffix: "-output.md",
			MaxParallel:  0, // Tier size bounds concurrency
			Resume:       false,
		},
		Executor: ExecutorConfig{
			ClaudeCommand:  "claude",
			CodexCommand:   "codex",
			PermittedTools: []string{"*"},
			TimeoutMinutes: 30,
			Overrides:      map[string]StageOverride{},
		},
		Issue: IssueConfig{
			Enabled:     true,
			Labels:      []string{"megaplan:plan"},
			TitlePrefix: "[plan]",
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Pipeline defaults
	viper.SetDefault("pipeline.output_dir", defaults.Pipeline.OutputDir)
	viper.SetDefault("pipeline.output_suffix", defaults.Pipeline.OutputSuffix)
	viper.SetDefault("pipeline.max_parallel", defaults.Pipeline.MaxParallel)
	viper.SetDefault("pipeline.resume", defaults.Pipeline.Resume)

	// Executor defaults
	viper.SetDefault("executor.claude_command", defaults.Executor.ClaudeCommand)
	viper.SetDefault("executor.codex_command", defaults.Executor.CodexCommand)
	viper.SetDefault("executor.permitted_tools", defaults.Executor.PermittedTools)
	viper.SetDefault("executor.timeout_minutes", defaults.Executor.TimeoutMinutes)

	// Issue defaults
	viper.SetDefault("issue.enabled", defaults.Issue.Enabled)
	viper.SetDefault("issue.labels", defaults.Issue.Labels)
	viper.SetDefault("issue.title_prefix", defaults.Issue.TitlePrefix)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
}

// Load unmarshals the current viper state into a Config and validates it.
func Load() (*Config, error) {
	cfg := Default()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks config invariants that viper cannot express.
func (c *Config) Validate() error {
	if c.Pipeline.OutputSuffix == "" {
		return fmt.Errorf("pipeline.output_suffix must not be empty")
	}
	if c.Pipeline.MaxParallel < 0 {
		return fmt.Errorf("pipeline.max_parallel must be >= 0, got %d", c.Pipeline.MaxParallel)
	}
	if c.Executor.TimeoutMinutes < 0 {
		return fmt.Errorf("executor.timeout_minutes must be >= 0, got %d", c.Executor.TimeoutMinutes)
	}
	for stage, override := range c.Executor.Overrides {
		switch strings.ToLower(override.Backend) {
		case "", "claude", "codex":
		default:
			return fmt.Errorf("executor.overrides.%s.backend: unknown backend %q", stage, override.Backend)
		}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unknown level %q", c.Logging.Level)
	}
	return nil
}

// ConfigDir returns the directory where megaplan looks for its config file.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "megaplan")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "megaplan")
}
