package diag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"
)

// Collector produces a CompileResult for a file buffer
type Collector interface {
	// Compile checks the given buffer and returns structured diagnostics.
	// Toolchain launch failures and timeouts are recoverable: they surface
	// as a synthetic diagnostic inside the result, not as an error. The
	// only error return is a ParseError-class defect.
	Compile(ctx context.Context, buffer string) (*CompileResult, error)
}

// Workspace is the minimal surface the collector needs to hand a buffer
// to the external toolchain. Implemented by project.Project.
type Workspace interface {
	// WriteTarget replaces the working file content on disk
	WriteTarget(content string) error

	// TargetPath returns the path of the working file, relative to Root
	TargetPath() string

	// Root returns the directory the toolchain runs in
	Root() string
}

// ToolchainCollector implements Collector by invoking the Lean toolchain
// as a subprocess. It prefers `lake env lean <file>` so Lake-managed
// dependencies are visible, falling back to a bare `lean <file>` when
// lake is not installed.
type ToolchainCollector struct {
	ws       Workspace
	command  string
	fallback string
	timeout  time.Duration
}

// CollectorOption configures a ToolchainCollector
type CollectorOption func(*ToolchainCollector)

// WithCommand overrides the primary toolchain binary (default: "lake")
func WithCommand(command string) CollectorOption {
	return func(c *ToolchainCollector) {
		if command != "" {
			c.command = command
		}
	}
}

// WithFallback overrides the fallback compiler binary (default: "lean")
func WithFallback(fallback string) CollectorOption {
	return func(c *ToolchainCollector) {
		if fallback != "" {
			c.fallback = fallback
		}
	}
}

// WithTimeout bounds a single compile invocation (default: 10 minutes)
func WithTimeout(timeout time.Duration) CollectorOption {
	return func(c *ToolchainCollector) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// NewToolchainCollector creates a collector for the given workspace
func NewToolchainCollector(ws Workspace, opts ...CollectorOption) *ToolchainCollector {
	c := &ToolchainCollector{
		ws:       ws,
		command:  "lake",
		fallback: "lean",
		timeout:  10 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile writes the buffer to the working file and invokes the checker.
func (c *ToolchainCollector) Compile(ctx context.Context, buffer string) (*CompileResult, error) {
	if buffer == "" {
		return nil, ErrEmptyBuffer
	}

	if err := c.ws.WriteTarget(buffer); err != nil {
		return toolchainFailure(c.ws.TargetPath(), fmt.Sprintf("write working file: %v", err)), nil
	}

	cmdCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	exitCode, output, runErr := c.run(cmdCtx, c.command, "env", c.fallback, c.ws.TargetPath())
	if runErr != nil && (errors.Is(runErr, exec.ErrNotFound) || errors.Is(runErr, fs.ErrNotExist)) {
		// No lake available: invoke the compiler directly.
		exitCode, output, runErr = c.run(cmdCtx, c.fallback, c.ws.TargetPath())
	}
	if cmdCtx.Err() == context.DeadlineExceeded {
		return toolchainFailure(c.ws.TargetPath(), ErrTimeout.Error()), nil
	}
	if runErr != nil {
		return toolchainFailure(c.ws.TargetPath(), runErr.Error()), nil
	}

	diags, err := ParseOutput(output)
	if err != nil {
		return nil, err
	}

	result := &CompileResult{
		Success:     exitCode == 0,
		Diagnostics: diags,
		RawOutput:   output,
	}

	// Nonzero exit with no recognizable header lines: collapse the raw
	// text into a single error so the loop still has something to act on.
	if !result.Success && len(diags) == 0 {
		msg := strings.TrimSpace(output)
		if msg == "" {
			msg = fmt.Sprintf("toolchain exited %d with no output", exitCode)
		}
		result.Diagnostics = []Diagnostic{{
			File:     c.ws.TargetPath(),
			Line:     1,
			Col:      1,
			Severity: SeverityError,
			Message:  msg,
		}}
	}

	return result, nil
}

// run executes a toolchain binary and returns (exitCode, combinedOutput, err).
// err is non-nil only for failures to launch or to complete the process;
// a nonzero exit is a normal outcome.
func (c *ToolchainCollector) run(ctx context.Context, name string, args ...string) (int, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = c.ws.Root()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	output := stdout.String()
	if stderr.Len() > 0 {
		if output != "" && !strings.HasSuffix(output, "\n") {
			output += "\n"
		}
		output += stderr.String()
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), output, nil
		}
		return -1, output, err
	}

	return 0, output, nil
}

// toolchainFailure builds the CompileResult for a process-level failure:
// a single synthetic diagnostic, never a parse of partial output.
func toolchainFailure(target, reason string) *CompileResult {
	return &CompileResult{
		Success: false,
		Diagnostics: []Diagnostic{{
			File:      target,
			Line:      1,
			Col:       1,
			Severity:  SeverityError,
			Message:   "toolchain: " + reason,
			Synthetic: true,
		}},
		RawOutput: reason,
	}
}

// MockCollector is a test implementation of Collector
type MockCollector struct {
	// CompileFunc is called when Compile is invoked
	CompileFunc func(ctx context.Context, buffer string) (*CompileResult, error)

	// Calls counts Compile invocations
	Calls int
}

// Compile delegates to CompileFunc
func (m *MockCollector) Compile(ctx context.Context, buffer string) (*CompileResult, error) {
	m.Calls++
	if m.CompileFunc != nil {
		return m.CompileFunc(ctx, buffer)
	}
	return &CompileResult{Success: true}, nil
}
