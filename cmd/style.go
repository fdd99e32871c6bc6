package cmd

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	cellStyle   = lipgloss.NewStyle()
	labelStyle  = lipgloss.NewStyle().Width(11).Foreground(lipgloss.Color("8"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

// tableRow renders values in fixed-width columns. Values longer than their
// column are cut with an ellipsis.
func tableRow(widths []int, style lipgloss.Style, values ...string) string {
	cells := make([]string, len(values))
	for i, value := range values {
		width := widths[min(i, len(widths)-1)]
		if lipgloss.Width(value) > width-1 {
			value = truncate(value, width-2) + "…"
		}
		cells[i] = style.Width(width).Render(value)
	}
	return strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, cells...), " ")
}

// truncate cuts s to at most width display cells
func truncate(s string, width int) string {
	var b strings.Builder
	used := 0
	for _, r := range s {
		w := lipgloss.Width(string(r))
		if used+w > width {
			break
		}
		b.WriteRune(r)
		used += w
	}
	return b.String()
}
