package theme

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
)

// Catppuccin Mocha.
var (
	Base     = lipgloss.Color("#1e1e2e")
	Mantle   = lipgloss.Color("#181825")
	Surface1 = lipgloss.Color("#45475a")
	Text     = lipgloss.Color("#cdd6f4")
	Subtext0 = lipgloss.Color("#a6adc8")
	Lavender = lipgloss.Color("#b4befe")
	Sapphire = lipgloss.Color("#74c7ec")
	Green    = lipgloss.Color("#a6e3a1")
	Yellow   = lipgloss.Color("#f9e2af")
	Peach    = lipgloss.Color("#fab387")
	Red      = lipgloss.Color("#f38ba8")
)

var (
	App = lipgloss.NewStyle().
		Background(Base).
		Foreground(Text).
		Padding(1, 2)

	// Pane frames the timer; PaneActive frames a finished session.
	Pane = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Surface1).
		Foreground(Text).
		Padding(1, 2)
	PaneActive = Pane.BorderForeground(Lavender)

	Title = lipgloss.NewStyle().Foreground(Sapphire).Bold(true)
	Muted = lipgloss.NewStyle().Foreground(Subtext0)
	Hot   = lipgloss.NewStyle().Foreground(Peach).Bold(true)
	Clock = lipgloss.NewStyle().Foreground(Lavender).Bold(true)

	// Overtime is the clock once the target is reached.
	Overtime = Clock.Foreground(Green)

	Saved   = lipgloss.NewStyle().Foreground(Green).Bold(true)
	Pending = lipgloss.NewStyle().Foreground(Yellow)
	Failed  = lipgloss.NewStyle().Foreground(Red).Bold(true)
)

// Streak renders a streak count, brighter once it earns the full bonus.
func Streak(label string, n, full int) string {
	style := Muted
	switch {
	case n >= full:
		style = Hot
	case n > 0:
		style = lipgloss.NewStyle().Foreground(Text)
	}
	return style.Render(label + " " + strconv.Itoa(n))
}
