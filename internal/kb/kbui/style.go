package kbui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	ColorAccent = lipgloss.Color("12")
	ColorWarn   = lipgloss.Color("3")
	ColorPass   = lipgloss.Color("10")
	ColorMuted  = lipgloss.Color("8")
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent).
			Align(lipgloss.Center)

	WarningStyle = lipgloss.NewStyle().Foreground(ColorWarn)
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorPass)
	HintStyle    = lipgloss.NewStyle().Foreground(ColorMuted)
	BorderStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
)

// NewSummaryTable builds a bordered table of the given width for the run
// summary (matched/unmatched/dedup-removed/blacklist counts).
func NewSummaryTable(width int) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(BorderStyle).
		Width(width).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return HeaderStyle
			}
			return lipgloss.NewStyle()
		})
}
