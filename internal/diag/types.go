package diag

import (
	"fmt"
	"sort"
)

// Severity classifies a diagnostic
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// rank orders severities for target selection (lower is more urgent)
func (s Severity) rank() int {
	switch s {
	case SeverityError:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

// Diagnostic is a single structured item emitted by the checker for one
// compile attempt. Immutable once produced.
type Diagnostic struct {
	// File is the path the checker reported the diagnostic for
	File string `json:"file"`

	// Line and Col are 1-based source coordinates
	Line int `json:"line"`
	Col  int `json:"col"`

	// Severity is error, warning or info
	Severity Severity `json:"severity"`

	// Message is the diagnostic body
	Message string `json:"message"`

	// Synthetic is true for diagnostics the collector fabricated itself
	// (toolchain launch failure or timeout), as opposed to source diagnostics
	Synthetic bool `json:"synthetic,omitempty"`
}

// String formats the diagnostic in the checker's own header style
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.File, d.Line, d.Col, d.Severity, d.Message)
}

// CompileResult is the outcome of one compile attempt
type CompileResult struct {
	// Success is true iff the toolchain exited zero
	Success bool `json:"success"`

	// Diagnostics in the order the checker emitted them
	Diagnostics []Diagnostic `json:"diagnostics"`

	// RawOutput is the unparsed toolchain output, kept for reporting
	RawOutput string `json:"raw_output,omitempty"`
}

// Errors returns only the error-severity diagnostics
func (r *CompileResult) Errors() []Diagnostic {
	var errs []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			errs = append(errs, d)
		}
	}
	return errs
}

// ErrorCount returns the number of error-severity diagnostics
func (r *CompileResult) ErrorCount() int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			n++
		}
	}
	return n
}

// First returns the diagnostic the fixer should target next: earliest by
// (line, column), ties broken by severity (errors first). Returns false
// when there are no diagnostics.
func (r *CompileResult) First() (Diagnostic, bool) {
	if len(r.Diagnostics) == 0 {
		return Diagnostic{}, false
	}
	sorted := make([]Diagnostic, len(r.Diagnostics))
	copy(sorted, r.Diagnostics)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Line != sorted[j].Line {
			return sorted[i].Line < sorted[j].Line
		}
		if sorted[i].Col != sorted[j].Col {
			return sorted[i].Col < sorted[j].Col
		}
		return sorted[i].Severity.rank() < sorted[j].Severity.rank()
	})
	return sorted[0], true
}

// SameDiagnostics reports whether two diagnostic sequences carry the same
// multiset of {severity, message, location}. Order does not matter. Used by
// the loop for cycle detection.
func SameDiagnostics(a, b []Diagnostic) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, d := range a {
		counts[multisetKey(d)]++
	}
	for _, d := range b {
		key := multisetKey(d)
		counts[key]--
		if counts[key] < 0 {
			return false
		}
	}
	return true
}

func multisetKey(d Diagnostic) string {
	return fmt.Sprintf("%s\x00%d\x00%d\x00%s", d.Severity, d.Line, d.Col, d.Message)
}
