package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/fenilsonani/reclaim/internal/risk"
)

// Theme colors
var (
	Primary   = lipgloss.Color("#7C3AED")
	Secondary = lipgloss.Color("#A78BFA")
	Success   = lipgloss.Color("#10B981")
	Warning   = lipgloss.Color("#F59E0B")
	Danger    = lipgloss.Color("#EF4444")
	Info      = lipgloss.Color("#3B82F6")
	Text      = lipgloss.Color("#F3F4F6")
	TextDim   = lipgloss.Color("#9CA3AF")
	Border    = lipgloss.Color("#4B5563")
	BgDark    = lipgloss.Color("#1F2937")
)

// Common styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary).
			MarginBottom(1)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Border).
			Padding(0, 1)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	FileSizeStyle = lipgloss.NewStyle().
			Foreground(Warning)

	CategoryStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Italic(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Danger).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(TextDim).
			Italic(true)

	StatusBarStyle = lipgloss.NewStyle().
			Foreground(Text).
			Background(BgDark).
			Padding(0, 1)

	DimStyle = lipgloss.NewStyle().
			Foreground(TextDim)

	BoldStyle = lipgloss.NewStyle().
			Bold(true)
)

// RiskColor maps a tier to a theme color.
func RiskColor(t risk.Tier) lipgloss.Color {
	switch t {
	case risk.Safe:
		return Success
	case risk.Low:
		return Info
	case risk.Moderate:
		return Secondary
	case risk.Elevated:
		return Warning
	default:
		return Danger
	}
}

// RiskBadge renders a tier name in its color.
func RiskBadge(t risk.Tier) string {
	return lipgloss.NewStyle().Foreground(RiskColor(t)).Render(t.String())
}

// StateIcon returns the marker for a category state name.
func StateIcon(state string) string {
	switch state {
	case "completed":
		return SuccessStyle.Render("✓")
	case "failed":
		return ErrorStyle.Render("✗")
	case "timed_out":
		return lipgloss.NewStyle().Foreground(Warning).Render("⏱")
	case "running":
		return SelectedStyle.Render("•")
	default:
		return DimStyle.Render("·")
	}
}
