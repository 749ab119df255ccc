package tui

import tea "github.com/charmbracelet/bubbletea"

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.Quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case TickMsg:
		// Continue ticking for timer updates
		return m, tickCmd()

	case DoneMsg:
		m.Done = true
		return m, tea.Quit

	case QuitMsg:
		m.Quitting = true
		return m, tea.Quit

	case PhaseMsg:
		m.Iteration = msg.Iteration
		m.Phase = msg.Phase
		m.PhaseIcon = msg.PhaseIcon

	case CompileResultMsg:
		m.Iteration = msg.Iteration
		m.ErrorCount = msg.ErrorCount

	case FinishedMsg:
		m.Status = msg.Status
		if msg.Error != "" {
			m.appendLog(msg.Error)
		}

	case LogMsg:
		m.appendLog(msg.Line)
	}

	return m, nil
}

func (m *Model) appendLog(line string) {
	m.LogLines = append(m.LogLines, line)
	if m.LogLimit > 0 && len(m.LogLines) > m.LogLimit {
		m.LogLines = m.LogLines[len(m.LogLines)-m.LogLimit:]
	}
}
