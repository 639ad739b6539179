package tui

import "github.com/charmbracelet/lipgloss"

var (
	accentFg  = lipgloss.Color("#7C3AED")
	baseDimFg = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	errorFg   = lipgloss.Color("#EF4444")

	titleStyle  = lipgloss.NewStyle().Foreground(accentFg).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(baseDimFg)
	errorStyle  = lipgloss.NewStyle().Foreground(errorFg)
	promptStyle = lipgloss.NewStyle().Foreground(accentFg)
)

// Palette assigns stroke colours to layers in order.
var Palette = []string{"#60A5FA", "#34D399", "#FBBF24", "#F87171", "#A78BFA", "#F472B6"}
