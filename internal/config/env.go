package config

import (
	"os"
	"strconv"
)

// envOverrides maps environment variables to config field setters.
var envOverrides = []struct {
	envVar string
	apply  func(*Config, string)
}{
	{
		envVar: "MEND_TOOLCHAIN_CMD",
		apply: func(c *Config, v string) {
			c.Toolchain.Command = v
		},
	},
	{
		envVar: "MEND_MODEL",
		apply: func(c *Config, v string) {
			c.Model.Name = v
		},
	},
	{
		envVar: "MEND_MAX_ITERATIONS",
		apply: func(c *Config, v string) {
			if n, err := strconv.Atoi(v); err == nil {
				c.Loop.MaxIterations = n
			}
		},
	},
	{
		envVar: "MEND_RUNS_DIR",
		apply: func(c *Config, v string) {
			c.RunsDir = v
		},
	},
	{
		envVar: "MEND_LOG_LEVEL",
		apply: func(c *Config, v string) {
			c.LogLevel = v
		},
	},
}

// applyEnvOverrides modifies config in place with environment variable values.
func applyEnvOverrides(cfg *Config) {
	for _, override := range envOverrides {
		if val := os.Getenv(override.envVar); val != "" {
			override.apply(cfg, val)
		}
	}
}
