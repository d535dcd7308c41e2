// Package tui provides the Bubble Tea dashboard for pulse.
//
// The TUI renders the same Snapshot as the table output; it only adds
// a spinner, manual refresh and periodic re-runs.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/pulse/cli/render"
)

var (
	// TitleStyle for the dashboard title.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(render.PrimaryColor).
			MarginBottom(1)

	// ErrorStyle for run-level errors.
	ErrorStyle = render.ErrorStyle

	// SpinnerStyle for the in-flight indicator.
	SpinnerStyle = lipgloss.NewStyle().Foreground(render.WarningColor)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(render.MutedColor).
			MarginTop(1)

	// BoxStyle frames the table.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(render.MutedColor).
			Padding(0, 1)
)
