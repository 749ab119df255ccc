package patch

import (
	"fmt"

	"github.com/leanworks/mend/internal/diag"
)

// Origin identifies which fixer produced a patch
type Origin string

const (
	// OriginDeterministic marks patches from the rule engine
	OriginDeterministic Origin = "deterministic"

	// OriginGenerative marks patches from the language-model adapter
	OriginGenerative Origin = "generative"
)

// Patch is a proposed transformation of the file buffer. A patch is either
// a span replacement (replace buffer[Start:End], which must equal Anchor)
// or a whole-file replacement. It is consumed exactly once by Apply.
type Patch struct {
	// Origin records which fixer produced the patch
	Origin Origin `json:"origin"`

	// Description is a short human-readable label (rule name or model note)
	Description string `json:"description"`

	// Start and End are byte offsets into the buffer for span patches
	Start int `json:"start,omitempty"`
	End   int `json:"end,omitempty"`

	// Anchor is the exact text expected at [Start:End]. A mismatch means
	// the patch was computed against a different buffer and is stale.
	Anchor string `json:"anchor,omitempty"`

	// Replacement is the new span text, or the entire new buffer when
	// WholeFile is set
	Replacement string `json:"replacement"`

	// WholeFile indicates Replacement replaces the buffer wholesale
	WholeFile bool `json:"whole_file,omitempty"`

	// Targets are the diagnostics this patch intends to resolve
	Targets []diag.Diagnostic `json:"targets,omitempty"`
}

// IsNoop reports whether applying the patch would leave the buffer unchanged
func (p *Patch) IsNoop(buffer string) bool {
	if p.WholeFile {
		return p.Replacement == buffer
	}
	return p.Anchor == p.Replacement
}

// ApplyError indicates a patch could not be applied to the current buffer.
// Recoverable at iteration granularity: the loop records it and terminates
// the session without mutating the buffer.
type ApplyError struct {
	Reason string
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("patch apply failed: %s", e.Reason)
}

// Apply produces a new buffer with the patch applied. The input buffer is
// never mutated; on any validation failure the error is an *ApplyError and
// the caller's buffer is untouched.
func Apply(buffer string, p *Patch) (string, error) {
	if p == nil {
		return "", &ApplyError{Reason: "nil patch"}
	}

	if p.WholeFile {
		if p.Replacement == "" {
			return "", &ApplyError{Reason: "empty whole-file replacement"}
		}
		return p.Replacement, nil
	}

	if p.Start < 0 || p.End < p.Start || p.End > len(buffer) {
		return "", &ApplyError{Reason: fmt.Sprintf("span [%d:%d) out of range for %d-byte buffer", p.Start, p.End, len(buffer))}
	}

	if buffer[p.Start:p.End] != p.Anchor {
		return "", &ApplyError{Reason: fmt.Sprintf("stale anchor at [%d:%d): expected %q", p.Start, p.End, p.Anchor)}
	}

	return buffer[:p.Start] + p.Replacement + buffer[p.End:], nil
}
