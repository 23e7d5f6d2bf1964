package ui

import "github.com/charmbracelet/lipgloss"

// Palette. Provider score colors come from the results themselves; these
// cover the chrome around them.
var (
	Primary   = lipgloss.Color("#7D56F4")
	Secondary = lipgloss.Color("#00D4AA")

	Success = lipgloss.Color("#34d399")
	Warning = lipgloss.Color("#fbbf24")
	Error   = lipgloss.Color("#f87171")
	Muted   = lipgloss.Color("#9ca3af")
	Text    = lipgloss.Color("#FAFAFA")
)

var (
	BannerStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	VersionStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	SectionStyle = lipgloss.NewStyle().
			Foreground(Text).
			Bold(true).
			MarginTop(1)

	DividerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B3B4F"))

	ConfigLabelStyle = lipgloss.NewStyle().
				Foreground(Muted).
				Width(15)

	ConfigValueStyle = lipgloss.NewStyle().
				Foreground(Text)

	SuccessStyle = lipgloss.NewStyle().Foreground(Success).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(Warning)
	ErrorStyle   = lipgloss.NewStyle().Foreground(Error).Bold(true)
	MutedStyle   = lipgloss.NewStyle().Foreground(Muted)

	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(0, 1)

	CardTitleStyle = lipgloss.NewStyle().
			Foreground(Text).
			Bold(true)

	CardLabelStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Width(14)

	LinkStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Underline(true)
)

// ScoreStyle paints a score with a provider's hex color.
func ScoreStyle(hex string) lipgloss.Style {
	if hex == "" {
		hex = string(Muted)
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hex)).Bold(true)
}
