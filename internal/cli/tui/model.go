package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Model is the bubbletea model for a repair session display
type Model struct {
	// Configuration
	File          string
	MaxIterations int
	Styles        Styles

	// State
	Iteration  int
	ErrorCount int
	Phase      string
	PhaseIcon  string
	Status     string
	StartTime  time.Time
	LogLines   []string
	LogLimit   int
	Width      int
	Height     int

	// Control
	Quitting bool
	Done     bool
}

// NewModel creates a new TUI model for the given target file
func NewModel(file string, maxIterations int) *Model {
	return &Model{
		File:          file,
		MaxIterations: maxIterations,
		Styles:        DefaultStyles(),
		Phase:         "starting",
		PhaseIcon:     IconWaiting,
		StartTime:     time.Now(),
		LogLimit:      200,
	}
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
	)
}

// TickMsg is sent every second to update the timer
type TickMsg time.Time

// tickCmd returns a command that sends TickMsg every second
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// DoneMsg signals the TUI should exit
type DoneMsg struct{}

// QuitMsg signals the user requested quit (q or Ctrl+C)
type QuitMsg struct{}

// PhaseMsg indicates a change of session phase
type PhaseMsg struct {
	Iteration int
	Phase     string
	PhaseIcon string
}

// CompileResultMsg carries the diagnostics count of a finished compile
type CompileResultMsg struct {
	Iteration  int
	ErrorCount int
}

// FinishedMsg indicates the session reached a terminal status
type FinishedMsg struct {
	Status string
	Error  string
}
