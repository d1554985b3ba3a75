// Package ui holds the lipgloss palette and styles for the reader TUI.
package ui

import "github.com/charmbracelet/lipgloss"

// Palette. Adaptive colors keep text legible on light and dark terminals.
var (
	ColorAccent  = lipgloss.AdaptiveColor{Light: "#005F87", Dark: "#5FD7FF"}
	ColorPlaying = lipgloss.AdaptiveColor{Light: "#008700", Dark: "#87FF87"}
	ColorPaused  = lipgloss.AdaptiveColor{Light: "#AF8700", Dark: "#FFD75F"}
	ColorFailure = lipgloss.AdaptiveColor{Light: "#D70000", Dark: "#FF5F5F"}
	ColorFigure  = lipgloss.AdaptiveColor{Light: "#8700AF", Dark: "#D787FF"}
	ColorText    = lipgloss.AdaptiveColor{Light: "#1C1C1C", Dark: "#EEEEEE"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#767676", Dark: "#8A8A8A"}
	ColorRule    = lipgloss.AdaptiveColor{Light: "#BCBCBC", Dark: "#444444"}
)

// Header and status.
var (
	TitleStyle     = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	StatusStyle    = lipgloss.NewStyle().Foreground(ColorMuted)
	HealthyStyle   = lipgloss.NewStyle().Foreground(ColorPlaying)
	UnhealthyStyle = lipgloss.NewStyle().Foreground(ColorFailure)
	SpinnerStyle   = lipgloss.NewStyle().Foreground(ColorFigure)

	PlayingBadgeStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorPlaying)
	PausedBadgeStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorPaused)
	IdleBadgeStyle    = lipgloss.NewStyle().Foreground(ColorMuted)
)

// Content panes.
var (
	PanelTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorText)
	StageStyle      = lipgloss.NewStyle().Foreground(ColorPaused)
	FigureStyle     = lipgloss.NewStyle().Italic(true).Foreground(ColorFigure)
	SelectedStyle   = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	PromptStyle     = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	DimStyle        = lipgloss.NewStyle().Foreground(ColorMuted)
	DividerStyle    = lipgloss.NewStyle().Foreground(ColorRule)

	// Progress and seek bars.
	BarFilledStyle = lipgloss.NewStyle().Foreground(ColorPlaying)
	BarEmptyStyle  = lipgloss.NewStyle().Foreground(ColorRule)
)

// Errors and footer.
var (
	ErrorStyle      = lipgloss.NewStyle().Bold(true).Foreground(ColorFailure)
	ErrorTextStyle  = lipgloss.NewStyle().Foreground(ColorFailure)
	FooterKeyStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorPaused)
	FooterDescStyle = lipgloss.NewStyle().Foreground(ColorMuted)
)
