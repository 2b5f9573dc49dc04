package cli

import "github.com/charmbracelet/lipgloss"

// Color scheme shared by all command output.
var (
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FAFD7")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00D787"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF005F")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAF00"))
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C6C")).Italic(true)
)

// statusStyle picks a color for a schedule or run status string.
func statusStyle(status string) lipgloss.Style {
	switch status {
	case "active", "ACCEPT_RESULTS":
		return successStyle
	case "paused", "ITERATE", "FALLBACK":
		return warnStyle
	case "completed":
		return hintStyle
	case "NOTIFY_USER":
		return errorStyle
	default:
		return lipgloss.NewStyle()
	}
}
