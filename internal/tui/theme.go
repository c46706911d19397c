package tui

import "github.com/charmbracelet/lipgloss"

// ANSI 0-15 palette so the UI follows the terminal theme.
var (
	colorText      = lipgloss.Color("7")
	colorMuted     = lipgloss.Color("8")
	colorBright    = lipgloss.Color("15")
	colorPrimary   = lipgloss.Color("2")
	colorSecondary = lipgloss.Color("6")
	colorWarning   = lipgloss.Color("3")
	colorDanger    = lipgloss.Color("1")
	colorSurface   = lipgloss.Color("236")
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	subtitleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorSecondary)
	mutedStyle    = lipgloss.NewStyle().Foreground(colorMuted)
	textStyle     = lipgloss.NewStyle().Foreground(colorText)

	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(colorDanger)
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorWarning)
	okStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)

	cursorStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	selectedStyle = lipgloss.NewStyle().Foreground(colorBright).Background(colorSurface)

	entryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1)

	modalBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDanger).
			Padding(1, 2)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(colorMuted)
)
