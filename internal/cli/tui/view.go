package tui

import (
	"fmt"
	"strings"
	"time"
)

// View implements tea.Model
func (m *Model) View() string {
	if m.Done || m.Quitting {
		return ""
	}

	var b strings.Builder

	// Header
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	// Session progress
	b.WriteString(m.renderSession())
	b.WriteString("\n")

	// Recent log lines
	b.WriteString(m.renderLog())

	// Footer
	b.WriteString(m.renderFooter())

	return b.String()
}

// renderHeader renders the title line with timer and target file
func (m *Model) renderHeader() string {
	elapsed := time.Since(m.StartTime).Round(time.Second)
	timer := fmt.Sprintf("[%s]", formatDuration(elapsed))

	return fmt.Sprintf("%s  %s  %s",
		m.Styles.Title.Render("Mend"),
		m.Styles.Timer.Render(timer),
		m.Styles.File.Render(m.File),
	)
}

// renderSession renders the iteration progress and current phase
func (m *Model) renderSession() string {
	var b strings.Builder

	// Iteration line: ● iteration [████░░░░░░░░] 2/20  3 errors
	icon := m.Styles.IterActive.Render(IconActive)
	if m.Status != "" {
		icon = m.renderStatusIcon()
	}
	label := m.Styles.IterLabel.Render("iteration")
	progress := m.renderProgressBar(m.Iteration, m.MaxIterations, 20)
	count := fmt.Sprintf("%d/%d", m.Iteration, m.MaxIterations)
	errs := m.Styles.ErrorCount.Render(fmt.Sprintf("%d errors", m.ErrorCount))

	fmt.Fprintf(&b, "  %s %s %s %s  %s\n", icon, label, progress, count, errs)

	// Phase line: 🔧 compiling, or the terminal status once finished
	if m.Status != "" {
		fmt.Fprintf(&b, "      %s\n", m.renderStatus())
	} else {
		phaseIcon := m.Styles.PhaseIcon.Render(m.PhaseIcon)
		phaseText := m.Styles.PhaseText.Render(m.Phase)
		fmt.Fprintf(&b, "      %s %s\n", phaseIcon, phaseText)
	}

	return b.String()
}

func (m *Model) renderStatusIcon() string {
	switch m.Status {
	case "fixed":
		return m.Styles.StatusFixed.Render(IconFixed)
	case "failed":
		return m.Styles.StatusFailed.Render(IconFailed)
	default:
		return m.Styles.StatusOther.Render(IconActive)
	}
}

func (m *Model) renderStatus() string {
	switch m.Status {
	case "fixed":
		return m.Styles.StatusFixed.Render("fixed")
	case "failed":
		return m.Styles.StatusFailed.Render("failed")
	default:
		return m.Styles.StatusOther.Render(m.Status)
	}
}

// renderProgressBar creates a progress bar of the given width
func (m *Model) renderProgressBar(completed, total, width int) string {
	if total == 0 {
		total = 1 // Avoid division by zero
	}

	filled := min((completed*width)/total, width)

	filledStr := strings.Repeat("█", filled)
	emptyStr := strings.Repeat("░", width-filled)

	return "[" +
		m.Styles.ProgressFilled.Render(filledStr) +
		m.Styles.ProgressEmpty.Render(emptyStr) +
		"]"
}

// renderLog renders the tail of the event log
func (m *Model) renderLog() string {
	if len(m.LogLines) == 0 {
		return ""
	}

	show := m.LogLines
	if len(show) > 8 {
		show = show[len(show)-8:]
	}

	var b strings.Builder
	b.WriteString(m.Styles.LogTitle.Render("  recent:"))
	b.WriteString("\n")
	for _, line := range show {
		b.WriteString("  " + m.Styles.LogLine.Render(line) + "\n")
	}
	return b.String()
}

// renderFooter renders the help text
func (m *Model) renderFooter() string {
	key := m.Styles.FooterKey.Render("q")
	return m.Styles.Footer.Render(fmt.Sprintf("  Press %s to quit", key))
}

// formatDuration formats a duration as HH:MM:SS
func formatDuration(d time.Duration) string {
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
