package overlay

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// View implements tea.Model.
func (m model) View() string {
	if m.width == 0 {
		return "starting overlay..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(styles.Divider.Render(strings.Repeat("─", max(1, m.width-4))))
	b.WriteString("\n")
	b.WriteString(m.renderFeed())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return styles.Container.Width(m.width - 2).Render(b.String())
}

func (m model) renderHeader() string {
	title := m.lessonTitle
	if title == "" {
		title = "waiting for session"
	}

	info := m.trackState.Info()
	badge := styles.Badge.Foreground(info.Color).Render(fmt.Sprintf("%s %s", info.Emoji, info.Label))
	if m.paused {
		badge = styles.Badge.Foreground(lipgloss.Color("214")).Render("⏸  Paused")
	}
	if m.ended {
		badge = styles.Badge.Foreground(lipgloss.Color("42")).Render(fmt.Sprintf("■ %s", m.endReason))
	}

	progress := ""
	if m.stepCount > 0 {
		progress = styles.Progress.Render(fmt.Sprintf("%d/%d steps", m.completed, m.stepCount))
	}

	step := ""
	if m.stepTitle != "" && !m.ended {
		step = fmt.Sprintf("%s step %d: %s", m.spinner.View(), m.stepIndex+1, m.stepTitle)
	}

	lines := []string{
		lipgloss.JoinHorizontal(lipgloss.Top,
			styles.Title.Render(title), "  ", badge, "  ", progress),
		step,
		m.renderGuidance(),
	}
	return strings.Join(lines, "\n")
}

func (m model) renderGuidance() string {
	if m.guidance == nil {
		return ""
	}
	return styles.Guidance.Render(fmt.Sprintf("→ tap the highlighted area [%d,%d  %d,%d]",
		m.guidance.Left, m.guidance.Top, m.guidance.Right, m.guidance.Bottom))
}

func (m model) renderFeed() string {
	visible := m.visibleLines()
	start := m.scrollPos
	if start > len(m.feed) {
		start = len(m.feed)
	}
	end := start + visible
	if end > len(m.feed) {
		end = len(m.feed)
	}

	var lines []string
	for _, line := range m.feed[start:end] {
		lines = append(lines, fmt.Sprintf("%s %s",
			styles.Footer.Render(line.Time.Format("15:04:05")),
			line.Style.Render(line.Text)))
	}
	for len(lines) < visible {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (m model) renderFooter() string {
	keys := "q quit · p pause · r resume · ↑/↓ scroll"
	if !m.autoScroll {
		keys += " · G follow"
	}
	return styles.Footer.Render(keys)
}
