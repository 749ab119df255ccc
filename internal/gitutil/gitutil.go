// Package gitutil keeps repair runs off the user's working branch by
// parking them on a scratch branch, and records results as commits.
package gitutil

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Runner executes git commands.
type Runner interface {
	Exec(ctx context.Context, dir string, args ...string) (string, error)
	ExecWithStdin(ctx context.Context, dir string, stdin string, args ...string) (string, error)
}

// osRunner executes real git commands via exec.CommandContext.
type osRunner struct{}

func (osRunner) Exec(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s failed: %w\nstderr: %s",
			strings.Join(args, " "), err, stderr.String())
	}

	return stdout.String(), nil
}

func (osRunner) ExecWithStdin(ctx context.Context, dir string, stdin string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Stdin = strings.NewReader(stdin)

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s failed: %w\nstderr: %s",
			strings.Join(args, " "), err, stderr.String())
	}

	return stdout.String(), nil
}

var (
	defaultRunner Runner = osRunner{}
	runnerMu      sync.RWMutex
)

// DefaultRunner returns the current default runner.
func DefaultRunner() Runner {
	runnerMu.RLock()
	defer runnerMu.RUnlock()
	return defaultRunner
}

// SetDefaultRunner replaces the default runner. Intended for tests.
func SetDefaultRunner(runner Runner) {
	runnerMu.Lock()
	defer runnerMu.Unlock()
	if runner == nil {
		defaultRunner = osRunner{}
		return
	}
	defaultRunner = runner
}

func gitExec(ctx context.Context, dir string, args ...string) (string, error) {
	runnerMu.RLock()
	runner := defaultRunner
	runnerMu.RUnlock()
	return runner.Exec(ctx, dir, args...)
}

func gitExecWithStdin(ctx context.Context, dir string, stdin string, args ...string) (string, error) {
	runnerMu.RLock()
	runner := defaultRunner
	runnerMu.RUnlock()
	return runner.ExecWithStdin(ctx, dir, stdin, args...)
}

// IsRepo reports whether dir is inside a git work tree.
func IsRepo(ctx context.Context, dir string) bool {
	out, err := gitExec(ctx, dir, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

// EnsureScratchBranch creates and checks out a timestamped branch under
// prefix (default "agent"). Outside a git repository it is a no-op and
// returns an empty name.
func EnsureScratchBranch(ctx context.Context, dir, prefix string) (string, error) {
	if !IsRepo(ctx, dir) {
		return "", nil
	}
	if prefix == "" {
		prefix = "agent"
	}
	name := fmt.Sprintf("%s/run-%s", prefix, time.Now().Format("20060102-150405"))
	if _, err := gitExec(ctx, dir, "checkout", "-b", name); err != nil {
		return "", err
	}
	return name, nil
}

// CommitAll stages everything under dir and commits it with the given
// message. A clean tree is not an error; it reports committed=false.
func CommitAll(ctx context.Context, dir, message string) (bool, error) {
	status, err := gitExec(ctx, dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(status) == "" {
		return false, nil
	}
	if _, err := gitExec(ctx, dir, "add", "-A"); err != nil {
		return false, err
	}
	if _, err := gitExecWithStdin(ctx, dir, message, "commit", "-F", "-"); err != nil {
		return false, err
	}
	return true, nil
}
