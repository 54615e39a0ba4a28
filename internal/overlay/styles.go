package overlay

import "github.com/charmbracelet/lipgloss"

// styles contains all lipgloss styles used by the overlay.
var styles = struct {
	Container lipgloss.Style
	Divider   lipgloss.Style

	Title    lipgloss.Style
	Badge    lipgloss.Style
	Progress lipgloss.Style
	Guidance lipgloss.Style
	Spinner  lipgloss.Style

	Footer lipgloss.Style

	// Feed line styles
	Session   lipgloss.Style
	Step      lipgloss.Style
	Completed lipgloss.Style
	Tracking  lipgloss.Style
	Anomaly   lipgloss.Style
	Error     lipgloss.Style
}{
	Container: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")),

	Divider: lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")),

	Title: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("212")),

	Badge: lipgloss.NewStyle().
		Bold(true),

	Progress: lipgloss.NewStyle().
		Foreground(lipgloss.Color("220")),

	Guidance: lipgloss.NewStyle().
		Foreground(lipgloss.Color("39")),

	Spinner: lipgloss.NewStyle().
		Foreground(lipgloss.Color("205")),

	Footer: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),

	Session: lipgloss.NewStyle().
		Foreground(lipgloss.Color("177")),

	Step: lipgloss.NewStyle().
		Foreground(lipgloss.Color("39")),

	Completed: lipgloss.NewStyle().
		Foreground(lipgloss.Color("114")),

	Tracking: lipgloss.NewStyle().
		Foreground(lipgloss.Color("250")),

	Anomaly: lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")),

	Error: lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")),
}
