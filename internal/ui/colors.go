package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var styles = newTheme(theme{
	accent: "#7D56F4",
	ok:     "#04B575",
	err:    "#FF5F56",
	warn:   "#FFA500",
	muted:  "#626262",
})

type theme struct {
	accent, ok, err, warn, muted string
}

// stylesheet holds the rendered styles for one [theme].
type stylesheet struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	tab   lipgloss.Style
	act   lipgloss.Style
}

func newTheme(t theme) *stylesheet {
	return &stylesheet{
		title: bold(t.accent).MarginBottom(1),
		ok:    fg(t.ok),
		err:   bold(t.err),
		warn:  fg(t.warn),
		help:  fg(t.muted).Italic(true),
		tab:   fg(t.muted).Padding(0, 2),
		act:   bold(t.accent).Padding(0, 2).Underline(true),
	}
}

func fg(color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

func bold(color string) lipgloss.Style {
	return fg(color).Bold(true)
}
