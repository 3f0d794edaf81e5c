package chat

import "github.com/charmbracelet/lipgloss"

// Terminal styles used by the session driver. Kept in one place so the
// conversation output stays visually consistent.
var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("5")).
			Bold(true)

	errorHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("1")).
				Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	toolHeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("6"))

	toolNameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("4"))

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	boldStyle = lipgloss.NewStyle().Bold(true)
)
