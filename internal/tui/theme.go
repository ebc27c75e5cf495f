package tui

import "github.com/charmbracelet/lipgloss"

// Theme defines the color palette for the catalog TUI. All colors use
// lipgloss ANSI 256-color codes for broad terminal compatibility.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Selected row and current page button.
	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color

	// Inline validation messages and failure notices.
	ErrorText lipgloss.Color
	// Validity badges.
	InstantBadge lipgloss.Color
	LimitedBadge lipgloss.Color
}

// DefaultTheme is the built-in dark-terminal color scheme.
var DefaultTheme = Theme{
	NormalText:         lipgloss.Color("252"),
	FaintText:          lipgloss.Color("243"),
	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("229"),
	HeaderForeground:   lipgloss.Color("214"),
	BorderColor:        lipgloss.Color("238"),
	HelpText:           lipgloss.Color("241"),
	ErrorText:          lipgloss.Color("203"),
	InstantBadge:       lipgloss.Color("114"),
	LimitedBadge:       lipgloss.Color("179"),
}

func (theme Theme) header() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(theme.HeaderForeground)
}

func (theme Theme) faint() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(theme.FaintText)
}

func (theme Theme) selected() lipgloss.Style {
	return lipgloss.NewStyle().
		Background(theme.SelectedBackground).
		Foreground(theme.SelectedForeground)
}

func (theme Theme) errorText() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(theme.ErrorText)
}

func (theme Theme) help() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(theme.HelpText)
}

func (theme Theme) box() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.BorderColor).
		Padding(0, 1)
}
