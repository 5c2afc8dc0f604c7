package tui

import "github.com/charmbracelet/lipgloss"

// Colors used by the progress view.
var (
	ColorTitle   = lipgloss.Color("39")  // blue
	ColorLabel   = lipgloss.Color("245") // gray
	ColorSuccess = lipgloss.Color("42")  // green
	ColorWarning = lipgloss.Color("214") // orange
	ColorError   = lipgloss.Color("196") // red
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(ColorTitle).Bold(true)
	statusStyle = lipgloss.NewStyle().Foreground(ColorLabel)
	okStyle     = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	errStyle    = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(ColorLabel).Italic(true)
)
