package config

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError contains details about what failed validation.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config.%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// validateConfig checks all config values for validity.
// Returns nil if valid, or joined errors for all validation failures.
func validateConfig(cfg *Config) error {
	var errs []error

	if cfg.Toolchain.Fallback == "" {
		errs = append(errs, &ValidationError{
			Field:   "toolchain.fallback",
			Value:   cfg.Toolchain.Fallback,
			Message: "must not be empty",
		})
	}

	if _, err := time.ParseDuration(cfg.Toolchain.Timeout); err != nil {
		errs = append(errs, &ValidationError{
			Field:   "toolchain.timeout",
			Value:   cfg.Toolchain.Timeout,
			Message: fmt.Sprintf("invalid duration: %v", err),
		})
	}

	if cfg.Model.Name == "" {
		errs = append(errs, &ValidationError{
			Field:   "model.name",
			Value:   cfg.Model.Name,
			Message: "must not be empty",
		})
	}

	if cfg.Model.MaxTokens < 0 {
		errs = append(errs, &ValidationError{
			Field:   "model.max_tokens",
			Value:   cfg.Model.MaxTokens,
			Message: "must be non-negative (0 = service default)",
		})
	}

	if _, err := time.ParseDuration(cfg.Model.RequestTimeout); err != nil {
		errs = append(errs, &ValidationError{
			Field:   "model.request_timeout",
			Value:   cfg.Model.RequestTimeout,
			Message: fmt.Sprintf("invalid duration: %v", err),
		})
	}

	if cfg.Loop.MaxIterations < 1 {
		errs = append(errs, &ValidationError{
			Field:   "loop.max_iterations",
			Value:   cfg.Loop.MaxIterations,
			Message: "must be at least 1",
		})
	}

	if cfg.Loop.Beam < 1 {
		errs = append(errs, &ValidationError{
			Field:   "loop.beam",
			Value:   cfg.Loop.Beam,
			Message: "must be at least 1",
		})
	}

	if cfg.Innovate.Rounds < 0 {
		errs = append(errs, &ValidationError{
			Field:   "innovate.rounds",
			Value:   cfg.Innovate.Rounds,
			Message: "must be non-negative (0 = disabled)",
		})
	}

	// LogLevel must be one of: debug, info, warn, error (case-sensitive)
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, &ValidationError{
			Field:   "log_level",
			Value:   cfg.LogLevel,
			Message: "must be one of: debug, info, warn, error",
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
