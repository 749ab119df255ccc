package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a repair run.
// It is immutable after creation via LoadConfig().
type Config struct {
	// Toolchain controls how buffers are compiled
	Toolchain ToolchainConfig `yaml:"toolchain"`

	// Model contains language-model service settings
	Model ModelConfig `yaml:"model"`

	// Loop contains repair loop settings
	Loop LoopConfig `yaml:"loop"`

	// Innovate contains extension pass settings
	Innovate InnovateConfig `yaml:"innovate"`

	// Git contains scratch branch settings
	Git GitConfig `yaml:"git"`

	// RunsDir is where run artifacts (snapshots, logs, reports) land.
	// Relative paths are resolved from the project root.
	RunsDir string `yaml:"runs_dir"`

	// LogLevel controls log verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level"`
}

// ToolchainConfig controls compiler invocation.
type ToolchainConfig struct {
	// Command is the build tool binary (default "lake")
	Command string `yaml:"command"`

	// Fallback is the bare compiler used when Command is missing
	Fallback string `yaml:"fallback"`

	// Timeout bounds one compile, as a duration string
	Timeout string `yaml:"timeout"`
}

// ModelConfig controls the generative repair service.
type ModelConfig struct {
	// Name is the model identifier sent to the service
	Name string `yaml:"name"`

	// MaxTokens caps completion length (0 = service default)
	MaxTokens int `yaml:"max_tokens"`

	// RequestTimeout bounds one service call, as a duration string
	RequestTimeout string `yaml:"request_timeout"`

	// APIKeyFile is a file holding the key, consulted when the
	// environment variable is unset. Relative to the project root.
	APIKeyFile string `yaml:"api_key_file"`
}

// LoopConfig controls repair loop bounds.
type LoopConfig struct {
	// MaxIterations bounds patches applied per session
	MaxIterations int `yaml:"max_iterations"`

	// Beam is how many deterministic candidates to race per iteration
	Beam int `yaml:"beam"`
}

// InnovateConfig controls the post-repair extension passes.
type InnovateConfig struct {
	// Rounds is how many extension attempts to make (0 disables)
	Rounds int `yaml:"rounds"`

	// Theme steers what the extensions are about
	Theme string `yaml:"theme"`

	// Document enables the comment-enrichment pass
	Document bool `yaml:"document"`
}

// GitConfig controls the scratch branch collaborator.
type GitConfig struct {
	// ScratchBranch, when true, parks the run on a fresh branch
	ScratchBranch bool `yaml:"scratch_branch"`

	// BranchPrefix names the branch namespace (default "agent")
	BranchPrefix string `yaml:"branch_prefix"`
}

// ToolchainTimeout parses the compile timeout as a Duration.
func (c *Config) ToolchainTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Toolchain.Timeout)
}

// ModelRequestTimeout parses the service call timeout as a Duration.
func (c *Config) ModelRequestTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Model.RequestTimeout)
}

// ResolveAPIKey returns the service key: the OPENAI_API_KEY environment
// variable when set, otherwise the contents of the configured key file.
// An empty result means generative repair is unavailable.
func (c *Config) ResolveAPIKey(root string) string {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key
	}
	if c.Model.APIKeyFile == "" {
		return ""
	}
	path := c.Model.APIKeyFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// LoadConfig loads configuration from the project root.
// It applies defaults, then file values, then environment overrides,
// then validates.
func LoadConfig(root string) (*Config, error) {
	cfg := DefaultConfig()

	// Missing config file is not an error (use defaults)
	configPath := filepath.Join(root, ".mend.yaml")
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if !filepath.IsAbs(cfg.RunsDir) {
		cfg.RunsDir = filepath.Join(root, cfg.RunsDir)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}
