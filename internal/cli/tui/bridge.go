package tui

import (
	"github.com/leanworks/mend/internal/events"
	tea "github.com/charmbracelet/bubbletea"
)

// Bridge connects the event bus to the bubbletea program
type Bridge struct {
	program *tea.Program
}

// NewBridge creates a new bridge for the given program
func NewBridge(program *tea.Program) *Bridge {
	return &Bridge{
		program: program,
	}
}

// Handler returns an event handler function for the event bus
func (b *Bridge) Handler() events.Handler {
	return func(evt events.Event) {
		msg := b.eventToMsg(evt)
		if msg != nil {
			b.program.Send(msg)
		}
	}
}

// eventToMsg converts an events.Event to a tea.Msg
func (b *Bridge) eventToMsg(evt events.Event) tea.Msg {
	iter := 0
	if evt.Iteration != nil {
		iter = *evt.Iteration
	}

	switch evt.Type {
	case events.CompileStarted:
		return PhaseMsg{
			Iteration: iter,
			Phase:     "compiling",
			PhaseIcon: IconCompile,
		}

	case events.CompileFailed:
		errorCount := 0
		if payload, ok := evt.Payload.(map[string]any); ok {
			if n, ok := payload["errors"].(int); ok {
				errorCount = n
			}
		}
		return CompileResultMsg{
			Iteration:  iter,
			ErrorCount: errorCount,
		}

	case events.CompileOK:
		return CompileResultMsg{
			Iteration: iter,
		}

	case events.FixDeterministic:
		rule := ""
		if payload, ok := evt.Payload.(map[string]any); ok {
			if r, ok := payload["rule"].(string); ok {
				rule = r
			}
		}
		phase := "applying rule"
		if rule != "" {
			phase = "applying rule " + rule
		}
		return PhaseMsg{
			Iteration: iter,
			Phase:     phase,
			PhaseIcon: IconRule,
		}

	case events.FixGenerative:
		return PhaseMsg{
			Iteration: iter,
			Phase:     "asking the model",
			PhaseIcon: IconModel,
		}

	case events.InnovateStarted:
		return PhaseMsg{
			Iteration: iter,
			Phase:     "extending",
			PhaseIcon: IconInnovate,
		}

	case events.SessionFixed, events.SessionFailed, events.SessionCycled, events.SessionExhausted:
		return FinishedMsg{
			Status: statusLabel(evt.Type),
			Error:  evt.Error,
		}

	default:
		return nil
	}
}

func statusLabel(t events.EventType) string {
	switch t {
	case events.SessionFixed:
		return "fixed"
	case events.SessionFailed:
		return "failed"
	case events.SessionCycled:
		return "cycled"
	case events.SessionExhausted:
		return "iteration budget exhausted"
	default:
		return string(t)
	}
}

// SendDone sends a DoneMsg to the program
func (b *Bridge) SendDone() {
	b.program.Send(DoneMsg{})
}

// SendQuit sends a QuitMsg to the program
func (b *Bridge) SendQuit() {
	b.program.Send(QuitMsg{})
}
