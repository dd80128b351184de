package tui

import "github.com/charmbracelet/lipgloss"

const (
	colorAccent  lipgloss.Color = "#cba6f7"
	colorText    lipgloss.Color = "#cdd6f4"
	colorMuted   lipgloss.Color = "#7f849c"
	colorError   lipgloss.Color = "#f38ba8"
	colorSuccess lipgloss.Color = "#a6e3a1"
	colorSurface lipgloss.Color = "#313244"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Padding(0, 1)

	selectedCountStyle = lipgloss.NewStyle().
				Foreground(colorSuccess).
				Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Padding(0, 1)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Foreground(colorText).
			Padding(1, 2).
			Width(48)

	modalTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent).
			MarginBottom(1)

	modalHintStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1)
)

func tableStyles() (header, selected lipgloss.Style) {
	header = lipgloss.NewStyle().
		Bold(true).
		Foreground(colorAccent).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorSurface).
		BorderBottom(true).
		Padding(0, 1)
	selected = lipgloss.NewStyle().
		Foreground(colorText).
		Background(colorSurface).
		Bold(true)
	return header, selected
}
