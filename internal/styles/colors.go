package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Color palette shared by the TUI surfaces
const (
	Primary     = "#7D56F4"
	PrimaryText = "#FAFAFA"

	Success = "#04B575"
	Warning = "#FFA500"
	Error   = "#FF6B6B"
	Info    = "#00CED1"

	TextMuted = "#626262"
	Highlight = "#FFFF00"
)

// Predefined styles for common use cases
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(PrimaryText)).
			Background(lipgloss.Color(Primary)).
			Padding(0, 1)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Success)).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Error)).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Warning)).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Info)).
			Bold(true)

	MutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(TextMuted)).
			Italic(true)

	// Log level styles
	LogDebugStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Info))

	LogInfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Success))

	LogWarnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Warning))

	LogErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Error))
)
