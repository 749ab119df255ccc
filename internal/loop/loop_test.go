package loop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/leanworks/mend/internal/diag"
	"github.com/leanworks/mend/internal/events"
	"github.com/leanworks/mend/internal/llm"
	"github.com/leanworks/mend/internal/patch"
	"github.com/leanworks/mend/internal/rules"
)

func failingResult(msgs ...string) *diag.CompileResult {
	r := &diag.CompileResult{Success: false}
	for i, msg := range msgs {
		r.Diagnostics = append(r.Diagnostics, diag.Diagnostic{
			File:     "Main.lean",
			Line:     i + 1,
			Col:      0,
			Severity: diag.SeverityError,
			Message:  msg,
		})
	}
	return r
}

func okResult() *diag.CompileResult {
	return &diag.CompileResult{Success: true}
}

// appendRule always proposes appending a marker line to the buffer.
func appendRule(name string) rules.Rule {
	return rules.Rule{
		Name:  name,
		Match: func(d diag.Diagnostic, buffer string) bool { return true },
		Build: func(d diag.Diagnostic, buffer string) *patch.Patch {
			return &patch.Patch{
				Start:       len(buffer),
				End:         len(buffer),
				Anchor:      "",
				Replacement: "\n-- " + name,
			}
		},
	}
}

func noRules() *rules.Engine {
	return rules.NewEngineWithRules(nil)
}

type stubGenerator struct {
	proposeFunc func(ctx context.Context, result *diag.CompileResult, buffer string) (*patch.Patch, error)
	calls       int
}

func (g *stubGenerator) Propose(ctx context.Context, result *diag.CompileResult, buffer string) (*patch.Patch, error) {
	g.calls++
	if g.proposeFunc != nil {
		return g.proposeFunc(ctx, result, buffer)
	}
	return nil, nil
}

func TestRunFixedByDeterministicRule(t *testing.T) {
	collector := &diag.MockCollector{
		CompileFunc: func(ctx context.Context, buffer string) (*diag.CompileResult, error) {
			if strings.Contains(buffer, "-- fixit") {
				return okResult(), nil
			}
			return failingResult("unknown identifier 'foo'"), nil
		},
	}

	l := &Loop{
		Collector: collector,
		Rules:     rules.NewEngineWithRules([]rules.Rule{appendRule("fixit")}),
	}

	state, err := l.Run(context.Background(), "theorem t : True := trivial")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if state.Status != StatusFixed {
		t.Fatalf("status = %s, want %s", state.Status, StatusFixed)
	}
	if state.Iteration != 1 {
		t.Errorf("iterations = %d, want 1", state.Iteration)
	}
	if len(state.History) != 1 {
		t.Fatalf("history length = %d, want 1", len(state.History))
	}
	rec := state.History[0]
	if rec.Decision != DecisionDeterministic {
		t.Errorf("decision = %s, want %s", rec.Decision, DecisionDeterministic)
	}
	if rec.After == nil || !rec.After.Success {
		t.Error("final record should carry the successful compile as After")
	}
	if collector.Calls != 2 {
		t.Errorf("compile calls = %d, want 2", collector.Calls)
	}
}

func TestRunFixedByGenerativeFallback(t *testing.T) {
	fixed := "theorem t : True := trivial"
	collector := &diag.MockCollector{
		CompileFunc: func(ctx context.Context, buffer string) (*diag.CompileResult, error) {
			if buffer == fixed {
				return okResult(), nil
			}
			return failingResult("type mismatch"), nil
		},
	}
	gen := &stubGenerator{
		proposeFunc: func(ctx context.Context, result *diag.CompileResult, buffer string) (*patch.Patch, error) {
			return &patch.Patch{
				Origin:      patch.OriginGenerative,
				WholeFile:   true,
				Replacement: fixed,
			}, nil
		},
	}

	l := &Loop{
		Collector: collector,
		Rules:     noRules(),
		Generator: gen,
	}

	state, err := l.Run(context.Background(), "theorem t : True := rfl")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if state.Status != StatusFixed {
		t.Fatalf("status = %s, want %s", state.Status, StatusFixed)
	}
	if gen.calls != 1 {
		t.Errorf("generator calls = %d, want 1", gen.calls)
	}
	if state.History[0].Decision != DecisionGenerative {
		t.Errorf("decision = %s, want %s", state.History[0].Decision, DecisionGenerative)
	}
	if state.Buffer != fixed {
		t.Errorf("buffer = %q, want the generated content", state.Buffer)
	}
}

func TestRunCycleDetection(t *testing.T) {
	// Every compile reports the same diagnostic multiset, regardless of
	// the patch the rule keeps appending.
	collector := &diag.MockCollector{
		CompileFunc: func(ctx context.Context, buffer string) (*diag.CompileResult, error) {
			return failingResult("unsolved goals"), nil
		},
	}

	l := &Loop{
		Collector: collector,
		Rules:     rules.NewEngineWithRules([]rules.Rule{appendRule("spin")}),
	}

	state, err := l.Run(context.Background(), "theorem t : False := sorry")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if state.Status != StatusCycled {
		t.Fatalf("status = %s, want %s", state.Status, StatusCycled)
	}
	if collector.Calls != 2 {
		t.Errorf("compile calls = %d, want exactly 2 before cycling", collector.Calls)
	}
}

func TestRunMaxIterations(t *testing.T) {
	// Diagnostics differ every compile so cycle detection never fires.
	n := 0
	collector := &diag.MockCollector{
		CompileFunc: func(ctx context.Context, buffer string) (*diag.CompileResult, error) {
			n++
			return failingResult(fmt.Sprintf("error variant %d", n)), nil
		},
	}

	l := &Loop{
		Collector:     collector,
		Rules:         rules.NewEngineWithRules([]rules.Rule{appendRule("churn")}),
		MaxIterations: 3,
	}

	state, err := l.Run(context.Background(), "theorem t : True := by")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if state.Status != StatusMaxIterations {
		t.Fatalf("status = %s, want %s", state.Status, StatusMaxIterations)
	}
	if state.Iteration != 3 {
		t.Errorf("iterations = %d, want 3", state.Iteration)
	}
	// One compile per iteration plus none after the budget trips.
	if collector.Calls != 3 {
		t.Errorf("compile calls = %d, want 3", collector.Calls)
	}
	if len(state.History) != 3 {
		t.Errorf("history length = %d, want 3", len(state.History))
	}
}

func TestRunNoPatchAvailable(t *testing.T) {
	collector := &diag.MockCollector{
		CompileFunc: func(ctx context.Context, buffer string) (*diag.CompileResult, error) {
			return failingResult("mystery"), nil
		},
	}

	l := &Loop{Collector: collector, Rules: noRules()}

	state, err := l.Run(context.Background(), "def x := ?")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if state.Status != StatusFailed {
		t.Fatalf("status = %s, want %s", state.Status, StatusFailed)
	}
	if len(state.History) != 0 {
		t.Errorf("history length = %d, want 0", len(state.History))
	}
}

func TestRunGenerationErrorFails(t *testing.T) {
	collector := &diag.MockCollector{
		CompileFunc: func(ctx context.Context, buffer string) (*diag.CompileResult, error) {
			return failingResult("mystery"), nil
		},
	}
	gen := &stubGenerator{
		proposeFunc: func(ctx context.Context, result *diag.CompileResult, buffer string) (*patch.Patch, error) {
			return nil, &llm.GenerationError{Mode: llm.ModeRepair, Reason: "empty response"}
		},
	}

	l := &Loop{Collector: collector, Rules: noRules(), Generator: gen}

	state, err := l.Run(context.Background(), "def x := ?")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if state.Status != StatusFailed {
		t.Fatalf("status = %s, want %s", state.Status, StatusFailed)
	}
	if !strings.Contains(state.FailureReason, "empty response") {
		t.Errorf("failure reason %q should carry the generation failure", state.FailureReason)
	}
}

func TestRunApplyFailureLeavesBufferIntact(t *testing.T) {
	original := "def x := 1"
	collector := &diag.MockCollector{
		CompileFunc: func(ctx context.Context, buffer string) (*diag.CompileResult, error) {
			return failingResult("bad"), nil
		},
	}
	stale := rules.Rule{
		Name:  "stale",
		Match: func(d diag.Diagnostic, buffer string) bool { return true },
		Build: func(d diag.Diagnostic, buffer string) *patch.Patch {
			return &patch.Patch{Start: 0, End: 3, Anchor: "zzz", Replacement: "abc"}
		},
	}

	l := &Loop{
		Collector: collector,
		Rules:     rules.NewEngineWithRules([]rules.Rule{stale}),
	}

	state, err := l.Run(context.Background(), original)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if state.Status != StatusFailed {
		t.Fatalf("status = %s, want %s", state.Status, StatusFailed)
	}
	if state.Buffer != original {
		t.Errorf("buffer mutated by a rejected patch: %q", state.Buffer)
	}
	if !strings.Contains(state.FailureReason, "anchor") {
		t.Errorf("failure reason %q should mention the stale anchor", state.FailureReason)
	}
}

func TestRunParseErrorAborts(t *testing.T) {
	parseErr := &diag.ParseError{Line: "gibberish:-1:0: error: x", Err: errors.New("line out of range")}
	collector := &diag.MockCollector{
		CompileFunc: func(ctx context.Context, buffer string) (*diag.CompileResult, error) {
			return nil, parseErr
		},
	}

	l := &Loop{Collector: collector, Rules: noRules()}

	state, err := l.Run(context.Background(), "def x := 1")
	if err == nil {
		t.Fatal("expected an error for an unparseable toolchain output")
	}
	var pe *diag.ParseError
	if !errors.As(err, &pe) {
		t.Errorf("error %v should wrap the ParseError", err)
	}
	if state.Status != StatusFailed {
		t.Errorf("status = %s, want %s", state.Status, StatusFailed)
	}
}

func TestRunLintKeepsLooping(t *testing.T) {
	// Compiles succeed but the buffer still carries a placeholder; the
	// session must not report fixed until lint passes.
	collector := &diag.MockCollector{
		CompileFunc: func(ctx context.Context, buffer string) (*diag.CompileResult, error) {
			return okResult(), nil
		},
	}
	gen := &stubGenerator{
		proposeFunc: func(ctx context.Context, result *diag.CompileResult, buffer string) (*patch.Patch, error) {
			return &patch.Patch{WholeFile: true, Replacement: "theorem t : True := trivial"}, nil
		},
	}

	l := &Loop{
		Collector: collector,
		Rules:     noRules(),
		Generator: gen,
		LintClean: func(buffer string) bool { return !strings.Contains(buffer, "sorry") },
	}

	state, err := l.Run(context.Background(), "theorem t : True := sorry")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if state.Status != StatusFixed {
		t.Fatalf("status = %s, want %s", state.Status, StatusFixed)
	}
	if gen.calls != 1 {
		t.Errorf("generator calls = %d, want 1", gen.calls)
	}
}

func TestRunBeamPicksFewestErrors(t *testing.T) {
	// The bad candidate targets the earlier diagnostic so it is proposed
	// first; only the compile race can prefer the good one.
	bad := rules.Rule{
		Name:  "bad",
		Match: func(d diag.Diagnostic, buffer string) bool { return d.Line == 1 },
		Build: func(d diag.Diagnostic, buffer string) *patch.Patch {
			return &patch.Patch{WholeFile: true, Replacement: "bad"}
		},
	}
	good := rules.Rule{
		Name:  "good",
		Match: func(d diag.Diagnostic, buffer string) bool { return d.Line == 2 },
		Build: func(d diag.Diagnostic, buffer string) *patch.Patch {
			return &patch.Patch{WholeFile: true, Replacement: "good"}
		},
	}

	collector := &diag.MockCollector{
		CompileFunc: func(ctx context.Context, buffer string) (*diag.CompileResult, error) {
			switch buffer {
			case "good":
				return okResult(), nil
			case "bad":
				return failingResult("a", "b", "c"), nil
			default:
				return failingResult("first", "second"), nil
			}
		},
	}

	l := &Loop{
		Collector: collector,
		Rules:     rules.NewEngineWithRules([]rules.Rule{bad, good}),
		Beam:      2,
	}

	state, err := l.Run(context.Background(), "original")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if state.Status != StatusFixed {
		t.Fatalf("status = %s, want %s", state.Status, StatusFixed)
	}
	if state.Buffer != "good" {
		t.Errorf("buffer = %q, beam search should have kept the cleaner candidate", state.Buffer)
	}
}

func TestRunEmitsLifecycleEvents(t *testing.T) {
	collector := &diag.MockCollector{
		CompileFunc: func(ctx context.Context, buffer string) (*diag.CompileResult, error) {
			if strings.Contains(buffer, "-- fixit") {
				return okResult(), nil
			}
			return failingResult("oops"), nil
		},
	}

	bus := events.NewBus()
	var seen []events.EventType
	bus.Subscribe(func(e events.Event) {
		seen = append(seen, e.Type)
	})

	l := &Loop{
		Collector: collector,
		Rules:     rules.NewEngineWithRules([]rules.Rule{appendRule("fixit")}),
		Events:    bus,
		Session:   "Main.lean",
	}

	if _, err := l.Run(context.Background(), "def x := ?"); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	want := map[events.EventType]bool{
		events.SessionStarted:   false,
		events.CompileFailed:    false,
		events.FixDeterministic: false,
		events.PatchApplied:     false,
		events.CompileOK:        false,
		events.SessionFixed:     false,
	}
	for _, typ := range seen {
		if _, ok := want[typ]; ok {
			want[typ] = true
		}
	}
	for typ, ok := range want {
		if !ok {
			t.Errorf("event %s was never emitted", typ)
		}
	}
}

func TestReplayReconstructsBuffers(t *testing.T) {
	collector := &diag.MockCollector{
		CompileFunc: func(ctx context.Context, buffer string) (*diag.CompileResult, error) {
			n := strings.Count(buffer, "-- step")
			if n >= 3 {
				return okResult(), nil
			}
			return failingResult(fmt.Sprintf("missing step %d", n)), nil
		},
	}

	initial := "def x := 1"
	l := &Loop{
		Collector: collector,
		Rules:     rules.NewEngineWithRules([]rules.Rule{appendRule("step")}),
	}

	state, err := l.Run(context.Background(), initial)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if state.Status != StatusFixed {
		t.Fatalf("status = %s, want %s", state.Status, StatusFixed)
	}

	// Replaying the full history must land on the final buffer exactly.
	full, err := Replay(initial, state.History, len(state.History))
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if full != state.Buffer {
		t.Errorf("replayed buffer diverges from the session buffer")
	}

	// A prefix replay is a valid resume point.
	partial, err := Replay(initial, state.History, 1)
	if err != nil {
		t.Fatalf("Replay prefix: %v", err)
	}
	if strings.Count(partial, "-- step") != 1 {
		t.Errorf("prefix replay = %q, want exactly one applied step", partial)
	}

	if _, err := Replay(initial, state.History, len(state.History)+1); err == nil {
		t.Error("out-of-range replay should fail")
	}
}

func TestReportWrite(t *testing.T) {
	state := &SessionState{
		Status:        StatusFailed,
		Iteration:     2,
		FailureReason: "no patch available",
		Final:         failingResult("leftover"),
	}

	var sb strings.Builder
	now := time.Now()
	r := NewReport("Main.lean", state, now, now)
	if err := r.Write(&sb); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := sb.String()
	for _, want := range []string{`"session": "Main.lean"`, `"status": "failed"`, `"iterations": 2`, `"failure": "no patch available"`} {
		if !strings.Contains(out, want) {
			t.Errorf("report output missing %s", want)
		}
	}
}
