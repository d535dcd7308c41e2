package render

import "github.com/charmbracelet/lipgloss"

// Color palette shared by the table and the TUI.
var (
	PrimaryColor = lipgloss.Color("#7C3AED") // Purple
	SuccessColor = lipgloss.Color("#10B981") // Green
	WarningColor = lipgloss.Color("#F59E0B") // Amber
	ErrorColor   = lipgloss.Color("#EF4444") // Red
	MutedColor   = lipgloss.Color("#6B7280") // Gray
)

var (
	// HeaderStyle for table headers.
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor)

	// SuccessStyle for ok rows.
	SuccessStyle = lipgloss.NewStyle().Foreground(SuccessColor)

	// WarningStyle for degraded but recoverable states.
	WarningStyle = lipgloss.NewStyle().Foreground(WarningColor)

	// ErrorStyle for failed rows.
	ErrorStyle = lipgloss.NewStyle().Foreground(ErrorColor)

	// MutedStyle for secondary text.
	MutedStyle = lipgloss.NewStyle().Foreground(MutedColor)
)

// StatusStyle returns the style for a result status ("ok" or an error kind).
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "ok":
		return SuccessStyle
	case "timeout", "rate_limited":
		return WarningStyle
	default:
		return ErrorStyle
	}
}
