package loop

import (
	"context"
	"fmt"

	"github.com/leanworks/mend/internal/diag"
	"github.com/leanworks/mend/internal/events"
	"github.com/leanworks/mend/internal/patch"
	"github.com/leanworks/mend/internal/rules"
)

// Generator is the fallback patch source consulted when no deterministic
// rule matches. Implemented by llm.Adapter.
type Generator interface {
	Propose(ctx context.Context, result *diag.CompileResult, buffer string) (*patch.Patch, error)
}

// Loop drives one repair session: compile, diagnose, fix, apply,
// recompile, until a terminal status is reached. A Loop instance owns its
// SessionState exclusively; independent files can be repaired concurrently
// by independent Loop instances.
type Loop struct {
	// Collector produces compile results for buffers
	Collector diag.Collector

	// Rules is the deterministic fix engine
	Rules *rules.Engine

	// Generator is the generative fallback (nil disables it)
	Generator Generator

	// Events receives lifecycle events (nil defaults to NopSink)
	Events events.Sink

	// Session labels events, usually the target file path
	Session string

	// MaxIterations bounds completed iterations (default 20)
	MaxIterations int

	// Beam is how many deterministic candidates to race per iteration
	// (default 1: exactly one patch per iteration)
	Beam int

	// LintClean, when set, must also hold for a successful compile to
	// count as fixed (e.g. no `sorry` placeholders left)
	LintClean func(buffer string) bool

	// Snapshot, when set, is called with every newly applied buffer
	Snapshot func(tag, buffer string)
}

// Run executes the session to a terminal status. The only error return is
// a defect-class ParseError from the collector; every other failure is
// expressed in the returned state.
func (l *Loop) Run(ctx context.Context, buffer string) (*SessionState, error) {
	state := &SessionState{
		Buffer: buffer,
		Status: StatusRunning,
	}

	maxIters := l.MaxIterations
	if maxIters <= 0 {
		maxIters = 20
	}
	if l.Events == nil {
		l.Events = events.NopSink{}
	}

	l.emit(events.NewEvent(events.SessionStarted, l.Session))

	var prevDiags []diag.Diagnostic
	havePrev := false
	var last *IterationRecord

	for {
		l.emit(events.NewEvent(events.CompileStarted, l.Session).WithIteration(state.Iteration))

		result, err := l.Collector.Compile(ctx, state.Buffer)
		if err != nil {
			// ParseError-class defect: abort rather than guess.
			state.Status = StatusFailed
			state.FailureReason = err.Error()
			l.emit(events.NewEvent(events.SessionFailed, l.Session).WithError(err))
			return state, fmt.Errorf("collect diagnostics: %w", err)
		}
		state.Final = result
		if last != nil {
			last.After = result
		}

		if result.Success && l.lintOK(state.Buffer) {
			state.Status = StatusFixed
			l.emit(events.NewEvent(events.CompileOK, l.Session).WithIteration(state.Iteration))
			l.emit(events.NewEvent(events.SessionFixed, l.Session))
			return state, nil
		}
		l.emit(events.NewEvent(events.CompileFailed, l.Session).
			WithIteration(state.Iteration).
			WithPayload(map[string]interface{}{"errors": result.ErrorCount()}))

		if havePrev && diag.SameDiagnostics(result.Diagnostics, prevDiags) {
			state.Status = StatusCycled
			l.emit(events.NewEvent(events.SessionCycled, l.Session).WithIteration(state.Iteration))
			return state, nil
		}

		p, decision, genErr := l.nextPatch(ctx, result, state.Buffer)
		if p == nil {
			state.Status = StatusFailed
			state.FailureReason = "no patch available"
			if genErr != nil {
				state.FailureReason = genErr.Error()
			}
			l.emit(events.NewEvent(events.FixUnavailable, l.Session).WithIteration(state.Iteration).WithError(genErr))
			l.emit(events.NewEvent(events.SessionFailed, l.Session).WithError(genErr))
			return state, nil
		}

		next, applyErr := patch.Apply(state.Buffer, p)
		if applyErr != nil {
			// No partial mutation persists: the buffer stays as it was.
			state.Status = StatusFailed
			state.FailureReason = applyErr.Error()
			l.emit(events.NewEvent(events.PatchRejected, l.Session).WithIteration(state.Iteration).WithError(applyErr))
			l.emit(events.NewEvent(events.SessionFailed, l.Session).WithError(applyErr))
			return state, nil
		}

		record := &IterationRecord{
			Index:    state.Iteration,
			Before:   result,
			Patch:    p,
			Decision: decision,
		}
		state.History = append(state.History, record)
		last = record

		state.Buffer = next
		state.Iteration++
		prevDiags = result.Diagnostics
		havePrev = true

		l.emit(events.NewEvent(events.PatchApplied, l.Session).
			WithIteration(record.Index).
			WithPayload(map[string]interface{}{
				"origin":      string(p.Origin),
				"description": p.Description,
			}))
		if l.Snapshot != nil {
			l.Snapshot(fmt.Sprintf("iter%03d_%s", state.Iteration, decision), state.Buffer)
		}

		if state.Iteration >= maxIters {
			state.Status = StatusMaxIterations
			l.emit(events.NewEvent(events.SessionExhausted, l.Session).WithIteration(state.Iteration))
			return state, nil
		}
	}
}

// nextPatch asks the deterministic engine first and falls back to the
// generative adapter. A GenerationError is recoverable: it is reported to
// the caller as "no patch this iteration", never returned as a loop error.
func (l *Loop) nextPatch(ctx context.Context, result *diag.CompileResult, buffer string) (*patch.Patch, Decision, error) {
	if p := l.deterministic(ctx, result, buffer); p != nil {
		l.emit(events.NewEvent(events.FixDeterministic, l.Session).
			WithPayload(map[string]interface{}{"rule": p.Description}))
		return p, DecisionDeterministic, nil
	}

	if l.Generator == nil {
		return nil, "", nil
	}

	p, err := l.Generator.Propose(ctx, result, buffer)
	if err != nil {
		// GenerationError and any other generator failure mean the same
		// thing here: no patch this iteration.
		return nil, "", err
	}

	l.emit(events.NewEvent(events.FixGenerative, l.Session))
	return p, DecisionGenerative, nil
}

// deterministic picks a rule-engine patch, racing up to Beam candidates
// by compiling each and keeping the one with the fewest remaining errors.
func (l *Loop) deterministic(ctx context.Context, result *diag.CompileResult, buffer string) *patch.Patch {
	beam := l.Beam
	if beam < 1 {
		beam = 1
	}

	candidates := l.Rules.ProposeCandidates(result, buffer, beam)
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) == 1 {
		return candidates[0]
	}

	best := candidates[0]
	bestErrs := -1
	for _, cand := range candidates {
		next, err := patch.Apply(buffer, cand)
		if err != nil {
			continue
		}
		res, err := l.Collector.Compile(ctx, next)
		if err != nil {
			continue
		}
		if n := res.ErrorCount(); bestErrs < 0 || n < bestErrs {
			bestErrs = n
			best = cand
		}
	}
	return best
}

func (l *Loop) lintOK(buffer string) bool {
	if l.LintClean == nil {
		return true
	}
	return l.LintClean(buffer)
}

func (l *Loop) emit(e events.Event) {
	l.Events.Emit(e)
}
