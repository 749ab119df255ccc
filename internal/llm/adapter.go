package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/leanworks/mend/internal/diag"
	"github.com/leanworks/mend/internal/patch"
)

// Mode selects what the generation request asks the model to do
type Mode string

const (
	// ModeRepair asks for a corrected whole file
	ModeRepair Mode = "repair"

	// ModeExtend asks for the file extended with a new result
	ModeExtend Mode = "extend"

	// ModeDocument asks for the file enriched with comments only
	ModeDocument Mode = "document"
)

// GenerationError indicates the service failed or returned an unusable
// response. Always recoverable at the loop level: it means "no patch
// available this iteration", never a fatal process error.
type GenerationError struct {
	Mode   Mode
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation (%s) failed: %s: %v", e.Mode, e.Reason, e.Err)
	}
	return fmt.Sprintf("generation (%s) failed: %s", e.Mode, e.Reason)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Adapter is the generative repair fallback. It serializes diagnostics and
// file context into a prompt, calls the text-generation service and
// validates the response into a whole-file replacement patch.
type Adapter struct {
	client Client

	// maxDiagnostics bounds how many diagnostics are serialized per request
	maxDiagnostics int
}

// NewAdapter creates an adapter over the given client
func NewAdapter(client Client) *Adapter {
	return &Adapter{client: client, maxDiagnostics: 20}
}

const (
	repairSystem   = "You are a precise Lean 4 refactoring and repair agent."
	extendSystem   = "You extend Lean 4 files with thematically consistent new results."
	documentSystem = "You add documentation and comments to Lean 4 files without changing their semantics."
)

// Propose asks the service for a corrected whole file. The returned patch
// is always a whole-file replacement validated to be non-empty Lean code.
func (a *Adapter) Propose(ctx context.Context, result *diag.CompileResult, buffer string) (*patch.Patch, error) {
	prompt := a.repairPrompt(result, buffer)

	raw, err := a.client.Complete(ctx, repairSystem, prompt)
	if err != nil {
		return nil, &GenerationError{Mode: ModeRepair, Reason: "service call", Err: err}
	}

	code := StripFences(raw)
	if code == "" {
		return nil, &GenerationError{Mode: ModeRepair, Reason: "empty response"}
	}

	targets := result.Diagnostics
	if len(targets) > a.maxDiagnostics {
		targets = targets[:a.maxDiagnostics]
	}

	return &patch.Patch{
		Origin:      patch.OriginGenerative,
		Description: "model whole-file repair",
		Replacement: code,
		WholeFile:   true,
		Targets:     targets,
	}, nil
}

// Extend asks the service to append a new thematically consistent result
// to an already compiling file, returning the extended buffer.
func (a *Adapter) Extend(ctx context.Context, buffer, theme string) (string, error) {
	prompt := fmt.Sprintf(`The current file compiles and comprises results in the following theme: %q.
Add a main new result or definition that is not currently in the file. You may add
supporting lemmas or definitions as long as they are new and necessary for the main
result. Take the comments in the file into consideration and continue the logical
order they establish. Ensure the result still compiles. Return LEAN CODE ONLY.

%s`, theme, fence(buffer))

	raw, err := a.client.Complete(ctx, extendSystem, prompt)
	if err != nil {
		return "", &GenerationError{Mode: ModeExtend, Reason: "service call", Err: err}
	}

	code := StripFences(raw)
	if code == "" {
		return "", &GenerationError{Mode: ModeExtend, Reason: "empty response"}
	}
	return code, nil
}

// Document asks the service to add a module docstring and explanatory
// comments without changing behavior, returning the documented buffer.
func (a *Adapter) Document(ctx context.Context, buffer string) (string, error) {
	prompt := fmt.Sprintf(`Enrich the following Lean file by adding documentation and comments WITHOUT
changing its behavior:
- Add a top-level module docstring using /-! ... -/ summarizing the theme and the
  main definitions, lemmas and theorems.
- Immediately before each def, lemma or theorem, add a brief -- comment.
- For nontrivial proofs, add a few inline -- comments inside by blocks.
- Do NOT rename identifiers. Do NOT reorder imports unless necessary.
- Return LEAN CODE ONLY.

%s`, fence(buffer))

	raw, err := a.client.Complete(ctx, documentSystem, prompt)
	if err != nil {
		return "", &GenerationError{Mode: ModeDocument, Reason: "service call", Err: err}
	}

	code := StripFences(raw)
	if code == "" {
		return "", &GenerationError{Mode: ModeDocument, Reason: "empty response"}
	}
	return code, nil
}

func (a *Adapter) repairPrompt(result *diag.CompileResult, buffer string) string {
	var errs []string
	for i, d := range result.Diagnostics {
		if i == a.maxDiagnostics {
			break
		}
		errs = append(errs, d.String())
	}
	blob := strings.TrimSpace(strings.Join(errs, "\n\n"))
	if blob == "" {
		blob = "(no diagnostics available)"
	}

	return fmt.Sprintf(`The file fails to compile with the following errors:

%s

Return a complete corrected version of the file that compiles. Respond with
LEAN CODE ONLY (no explanations). If imports are needed, add them.

%s`, blob, fence(buffer))
}

func fence(code string) string {
	return "```lean\n" + code + "\n```"
}

// StripFences removes Markdown code fences from a model response. The
// prompts request code only, but models still fence the output at times.
func StripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}

	// Drop the leading ```lang line.
	if i := strings.Index(t, "\n"); i >= 0 {
		t = t[i+1:]
	} else {
		return ""
	}

	// Drop the trailing fence if present.
	if trimmed := strings.TrimRight(t, " \t\n"); strings.HasSuffix(trimmed, "```") {
		t = strings.TrimRight(strings.TrimSuffix(trimmed, "```"), " \t\n")
	}

	return strings.TrimSpace(t)
}
