// Package innovate grows a verified file with new content and proves the
// growth safe by re-running the repair loop, rolling back to the exact
// prior bytes when verification fails.
package innovate

import (
	"context"
	"fmt"

	"github.com/leanworks/mend/internal/diag"
	"github.com/leanworks/mend/internal/events"
	"github.com/leanworks/mend/internal/loop"
)

// Extender produces candidate file contents. Implemented by llm.Adapter.
type Extender interface {
	Extend(ctx context.Context, buffer, theme string) (string, error)
	Document(ctx context.Context, buffer string) (string, error)
}

// Runner verifies a buffer by driving it to a terminal repair status.
// Implemented by loop.Loop.
type Runner interface {
	Run(ctx context.Context, buffer string) (*loop.SessionState, error)
}

// Round is the outcome of one extend attempt.
type Round struct {
	// Index is the zero-based round number
	Index int

	// Accepted reports whether the extended buffer verified
	Accepted bool

	// Buffer is the content after the round: the verified extension when
	// accepted, the untouched input otherwise
	Buffer string

	// Session is the repair session that judged the extension
	Session *loop.SessionState
}

// Innovator runs extension rounds on top of an already-verified buffer.
type Innovator struct {
	Extender Extender
	Runner   Runner
	Events   events.Sink
	Session  string

	// Theme steers what kind of content gets added
	Theme string

	// Rounds is how many extensions to attempt (default 1)
	Rounds int

	// Document enables the comment-enrichment pass after the last round
	Document bool

	// Verify double-checks a buffer compiles without repairing it. Used
	// by the documentation pass, which must revert rather than repair.
	Verify func(ctx context.Context, buffer string) (*diag.CompileResult, error)
}

// Run returns the final buffer and the per-round outcomes. A rejected
// round leaves the buffer bit-identical to its input; a later round may
// still succeed. The only error return is a collector defect.
func (in *Innovator) Run(ctx context.Context, buffer string) (string, []Round, error) {
	rounds := in.Rounds
	if rounds <= 0 {
		rounds = 1
	}
	if in.Events == nil {
		in.Events = events.NopSink{}
	}

	var results []Round
	for i := 0; i < rounds; i++ {
		round, err := in.extendOnce(ctx, i, buffer)
		if err != nil {
			return buffer, results, err
		}
		results = append(results, round)
		buffer = round.Buffer
	}

	if in.Document {
		buffer = in.documentOnce(ctx, buffer)
	}

	return buffer, results, nil
}

func (in *Innovator) extendOnce(ctx context.Context, index int, buffer string) (Round, error) {
	in.emit(events.NewEvent(events.InnovateStarted, in.Session).WithIteration(index))

	round := Round{Index: index, Buffer: buffer}

	extended, err := in.Extender.Extend(ctx, buffer, in.Theme)
	if err != nil {
		// Generation failures reject the round, they never damage the buffer.
		in.emit(events.NewEvent(events.InnovateRejected, in.Session).WithIteration(index).WithError(err))
		return round, nil
	}
	if extended == buffer {
		in.emit(events.NewEvent(events.InnovateRejected, in.Session).WithIteration(index).
			WithPayload("no new content"))
		return round, nil
	}

	state, err := in.Runner.Run(ctx, extended)
	if err != nil {
		return round, fmt.Errorf("verify extension: %w", err)
	}
	round.Session = state

	if state.Status != loop.StatusFixed {
		in.emit(events.NewEvent(events.InnovateRejected, in.Session).WithIteration(index).
			WithPayload(map[string]interface{}{"status": string(state.Status)}))
		return round, nil
	}

	round.Accepted = true
	round.Buffer = state.Buffer
	in.emit(events.NewEvent(events.InnovateAccepted, in.Session).WithIteration(index).
		WithPayload(map[string]interface{}{"iterations": state.Iteration}))
	return round, nil
}

// documentOnce enriches the buffer with comments and keeps the result only
// when it still compiles. Unlike extension rounds, a broken documented
// buffer is reverted, never repaired.
func (in *Innovator) documentOnce(ctx context.Context, buffer string) string {
	if in.Verify == nil {
		return buffer
	}
	in.emit(events.NewEvent(events.DocStarted, in.Session))

	documented, err := in.Extender.Document(ctx, buffer)
	if err != nil || documented == buffer {
		in.emit(events.NewEvent(events.DocReverted, in.Session).WithError(err))
		return buffer
	}

	result, err := in.Verify(ctx, documented)
	if err != nil || !result.Success {
		in.emit(events.NewEvent(events.DocReverted, in.Session).WithError(err))
		return buffer
	}

	in.emit(events.NewEvent(events.DocApplied, in.Session))
	return documented
}

func (in *Innovator) emit(e events.Event) {
	in.Events.Emit(e)
}
