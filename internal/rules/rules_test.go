package rules

import (
	"strings"
	"testing"

	"github.com/leanworks/mend/internal/diag"
	"github.com/leanworks/mend/internal/patch"
)

func renameDiag(line, col int, from, to string) diag.Diagnostic {
	return diag.Diagnostic{
		File:     "Play.lean",
		Line:     line,
		Col:      col,
		Severity: diag.SeverityError,
		Message:  "unknown identifier '" + from + "', did you mean '" + to + "'?",
	}
}

func TestPropose_RenameSuggestion(t *testing.T) {
	buffer := "example : foo = 1 := rfl\n"
	d := renameDiag(1, 10, "foo", "goo")

	e := NewEngine()
	p := e.Propose(d, buffer)
	if p == nil {
		t.Fatal("expected a patch")
	}

	if p.Origin != patch.OriginDeterministic {
		t.Errorf("expected deterministic origin, got %q", p.Origin)
	}
	if p.Description != "rename-suggestion" {
		t.Errorf("expected rename-suggestion, got %q", p.Description)
	}
	if p.Anchor != "foo" || p.Replacement != "goo" {
		t.Errorf("unexpected patch: anchor=%q replacement=%q", p.Anchor, p.Replacement)
	}

	got, err := patch.Apply(buffer, p)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if got != "example : goo = 1 := rfl\n" {
		t.Errorf("unexpected result: %q", got)
	}
}

func TestPropose_RenameSuggestion_Idempotent(t *testing.T) {
	buffer := "example : foo = 1 := rfl\n"
	d := renameDiag(1, 10, "foo", "goo")

	e := NewEngine()
	p := e.Propose(d, buffer)
	if p == nil {
		t.Fatal("expected a patch")
	}

	fixed, err := patch.Apply(buffer, p)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	// Re-proposing against the rule's own output must return nothing:
	// the span no longer holds the unknown identifier.
	if again := e.Propose(d, fixed); again != nil {
		t.Errorf("expected no patch on already-fixed buffer, got %+v", again)
	}
}

func TestPropose_RenameSuggestion_SpanMismatch(t *testing.T) {
	// Diagnostic computed against a different buffer: span holds bar, not foo.
	buffer := "example : bar = 1 := rfl\n"
	d := renameDiag(1, 10, "foo", "goo")

	if p := NewEngine().Propose(d, buffer); p != nil {
		t.Errorf("expected no patch when span does not hold the identifier, got %+v", p)
	}
}

func TestPropose_ImportForIdentifier(t *testing.T) {
	buffer := "example : Real.log 1 = 0 := by simp\n"
	d := diag.Diagnostic{
		Line: 1, Col: 10,
		Severity: diag.SeverityError,
		Message:  "unknown identifier 'Real.log'",
	}

	e := NewEngine()
	p := e.Propose(d, buffer)
	if p == nil {
		t.Fatal("expected a patch")
	}
	if p.Description != "import-for-identifier" {
		t.Errorf("expected import-for-identifier, got %q", p.Description)
	}

	fixed, err := patch.Apply(buffer, p)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if !strings.HasPrefix(fixed, "import Mathlib.Analysis.SpecialFunctions.Log.Basic\n") {
		t.Errorf("expected import inserted at top, got %q", fixed)
	}

	// Idempotence: the import is present now, so the rule must not fire.
	if again := e.Propose(d, fixed); again != nil {
		t.Errorf("expected no patch once import present, got %+v", again)
	}
}

func TestPropose_OpenClassical(t *testing.T) {
	buffer := "import Mathlib.Data.Finset.Basic\n\nexample : Classical.em p := sorry\n"
	d := diag.Diagnostic{
		Line: 3, Col: 10,
		Severity: diag.SeverityError,
		Message:  "unknown identifier 'Classical.em'",
	}

	e := NewEngine()
	p := e.Propose(d, buffer)
	if p == nil {
		t.Fatal("expected a patch")
	}
	if p.Description != "open-classical" {
		t.Errorf("expected open-classical, got %q", p.Description)
	}

	fixed, err := patch.Apply(buffer, p)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	want := "import Mathlib.Data.Finset.Basic\nopen Classical\n\nexample : Classical.em p := sorry\n"
	if fixed != want {
		t.Errorf("expected open statement after imports, got %q", fixed)
	}

	if again := e.Propose(d, fixed); again != nil {
		t.Errorf("expected no patch once Classical is open, got %+v", again)
	}
}

func TestPropose_ImportForNamespace(t *testing.T) {
	buffer := "example : Finset.card s = 0 := sorry\n"
	d := diag.Diagnostic{
		Line: 1, Col: 10,
		Severity: diag.SeverityError,
		Message:  "unknown namespace 'Finset'",
	}

	e := NewEngine()
	p := e.Propose(d, buffer)
	if p == nil {
		t.Fatal("expected a patch")
	}

	fixed, err := patch.Apply(buffer, p)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if !strings.HasPrefix(fixed, "import Mathlib.Data.Finset.Basic\n") {
		t.Errorf("expected import inserted, got %q", fixed)
	}

	if again := e.Propose(d, fixed); again != nil {
		t.Errorf("expected no patch once import present, got %+v", again)
	}
}

func TestPropose_NoRuleMatches(t *testing.T) {
	buffer := "example : 1 + 1 = 3 := rfl\n"
	d := diag.Diagnostic{
		Line: 1, Col: 0,
		Severity: diag.SeverityError,
		Message:  "type mismatch: the proof does not typecheck",
	}

	if p := NewEngine().Propose(d, buffer); p != nil {
		t.Errorf("expected no patch, got %+v", p)
	}
}

func TestPropose_FirstMatchWins(t *testing.T) {
	calls := []string{}
	mk := func(name string, matches bool) Rule {
		return Rule{
			Name: name,
			Match: func(diag.Diagnostic, string) bool {
				calls = append(calls, name)
				return matches
			},
			Build: func(diag.Diagnostic, string) *patch.Patch {
				return &patch.Patch{Replacement: name, WholeFile: true}
			},
		}
	}

	e := NewEngineWithRules([]Rule{mk("a", false), mk("b", true), mk("c", true)})
	p := e.Propose(diag.Diagnostic{}, "x")
	if p == nil || p.Description != "b" {
		t.Fatalf("expected rule b to win, got %+v", p)
	}
	if len(calls) != 2 {
		t.Errorf("expected evaluation to stop at first match, saw calls %v", calls)
	}
}

func TestProposeCandidates_TargetOrderAndBeam(t *testing.T) {
	buffer := "example : foo = 1 := rfl\nexample : baz = 2 := rfl\n"
	result := &diag.CompileResult{
		Diagnostics: []diag.Diagnostic{
			renameDiag(2, 10, "baz", "qux"),
			renameDiag(1, 10, "foo", "goo"),
		},
	}

	e := NewEngine()

	one := e.ProposeCandidates(result, buffer, 1)
	if len(one) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(one))
	}
	if one[0].Anchor != "foo" {
		t.Errorf("expected earliest diagnostic targeted first, got anchor %q", one[0].Anchor)
	}

	two := e.ProposeCandidates(result, buffer, 3)
	if len(two) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(two))
	}
	if two[1].Anchor != "baz" {
		t.Errorf("expected second candidate for line 2, got anchor %q", two[1].Anchor)
	}
}
