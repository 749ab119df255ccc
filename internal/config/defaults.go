package config

const (
	DefaultToolchainCommand  = "lake"
	DefaultToolchainFallback = "lean"
	DefaultToolchainTimeout  = "10m"
	DefaultModelName         = "gpt-5"
	DefaultRequestTimeout    = "5m"
	DefaultAPIKeyFile        = "openai_key.txt"
	DefaultMaxIterations     = 20
	DefaultBeam              = 1
	DefaultBranchPrefix      = "agent"
	DefaultRunsDir           = ".mend_runs"
	DefaultLogLevel          = "info"
)

// DefaultConfig returns a Config with all default values applied.
func DefaultConfig() *Config {
	return &Config{
		Toolchain: ToolchainConfig{
			Command:  DefaultToolchainCommand,
			Fallback: DefaultToolchainFallback,
			Timeout:  DefaultToolchainTimeout,
		},
		Model: ModelConfig{
			Name:           DefaultModelName,
			RequestTimeout: DefaultRequestTimeout,
			APIKeyFile:     DefaultAPIKeyFile,
		},
		Loop: LoopConfig{
			MaxIterations: DefaultMaxIterations,
			Beam:          DefaultBeam,
		},
		Git: GitConfig{
			BranchPrefix: DefaultBranchPrefix,
		},
		RunsDir:  DefaultRunsDir,
		LogLevel: DefaultLogLevel,
	}
}
