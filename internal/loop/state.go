package loop

import (
	"fmt"

	"github.com/leanworks/mend/internal/diag"
	"github.com/leanworks/mend/internal/patch"
)

// Status is the session state machine state
type Status string

const (
	// StatusRunning means iterations are still in progress
	StatusRunning Status = "running"

	// StatusFixed means the buffer compiles (and passes lint when required)
	StatusFixed Status = "fixed"

	// StatusFailed means no patch was available or a patch failed to apply
	StatusFailed Status = "failed"

	// StatusMaxIterations means the iteration budget ran out
	StatusMaxIterations Status = "max_iterations_exceeded"

	// StatusCycled means two consecutive compiles produced identical
	// diagnostics: further iterations would make no progress
	StatusCycled Status = "cycled"
)

// Terminal reports whether the status permits no further iterations
func (s Status) Terminal() bool {
	return s != StatusRunning
}

// Decision records which fixer produced an iteration's patch
type Decision string

const (
	DecisionDeterministic Decision = "deterministic"
	DecisionGenerative    Decision = "generative"
)

// IterationRecord is one entry of the session audit trail. Never mutated
// after its After result is filled in by the following compile.
type IterationRecord struct {
	// Index is the zero-based iteration number
	Index int `json:"index"`

	// Before is the compile result that triggered this iteration
	Before *diag.CompileResult `json:"before"`

	// Patch is the transformation that was applied
	Patch *patch.Patch `json:"patch"`

	// After is the compile result observed after the patch, filled in
	// when the next compile runs (nil if the loop stopped first)
	After *diag.CompileResult `json:"after,omitempty"`

	// Decision records which fixer produced the patch
	Decision Decision `json:"decision"`
}

// SessionState is the single mutable object owned by the repair loop.
// The buffer is only ever replaced wholesale; a failed apply leaves it
// untouched.
type SessionState struct {
	// Buffer is the current file content
	Buffer string

	// Iteration counts completed iterations (patches applied)
	Iteration int

	// History is the ordered audit trail, one record per completed iteration
	History []*IterationRecord

	// Status is the state machine state
	Status Status

	// Final is the last compile result observed
	Final *diag.CompileResult

	// FailureReason explains Failed terminations
	FailureReason string
}

// Replay reconstructs the buffer after the first n history records by
// reapplying their patches to the initial content. With n equal to the
// history length this reproduces the session's final buffer, so a saved
// history plus the initial buffer is a complete checkpoint.
func Replay(initial string, history []*IterationRecord, n int) (string, error) {
	if n < 0 || n > len(history) {
		return "", fmt.Errorf("replay: %d out of range for %d records", n, len(history))
	}

	buffer := initial
	for _, rec := range history[:n] {
		next, err := patch.Apply(buffer, rec.Patch)
		if err != nil {
			return "", fmt.Errorf("replay iteration %d: %w", rec.Index, err)
		}
		buffer = next
	}
	return buffer, nil
}
