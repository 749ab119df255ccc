package tui

import "github.com/charmbracelet/lipgloss"

// Styles contains all lipgloss styles for the TUI
type Styles struct {
	// Header styling
	Title lipgloss.Style
	Timer lipgloss.Style
	File  lipgloss.Style

	// Iteration styling
	IterActive lipgloss.Style
	IterLabel  lipgloss.Style

	// Progress bar colors
	ProgressFilled lipgloss.Style
	ProgressEmpty  lipgloss.Style

	// Phase icons and text
	PhaseIcon lipgloss.Style
	PhaseText lipgloss.Style

	// Diagnostics counts
	ErrorCount lipgloss.Style

	// Terminal status styling
	StatusFixed  lipgloss.Style
	StatusFailed lipgloss.Style
	StatusOther  lipgloss.Style

	// Footer styling
	Footer    lipgloss.Style
	FooterKey lipgloss.Style

	// Log area styling
	LogTitle lipgloss.Style
	LogLine  lipgloss.Style
}

// DefaultStyles returns the default TUI styles
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		Timer: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		File:  lipgloss.NewStyle().Foreground(lipgloss.Color("250")),

		IterActive: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		IterLabel:  lipgloss.NewStyle().Bold(true),

		ProgressFilled: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		ProgressEmpty:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")),

		PhaseIcon: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		PhaseText: lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Italic(true),

		ErrorCount: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),

		StatusFixed:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		StatusFailed: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		StatusOther:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),

		Footer:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")).MarginTop(1),
		FooterKey: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),

		LogTitle: lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Bold(true),
		LogLine:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

// Icons used in the TUI
const (
	IconActive   = "●"
	IconFixed    = "✓"
	IconFailed   = "✗"
	IconCompile  = "🔧"
	IconRule     = "📐"
	IconModel    = "🤖"
	IconInnovate = "✨"
	IconWaiting  = "⏳"
)
