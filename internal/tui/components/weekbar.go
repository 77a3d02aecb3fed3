package components

import (
	"strings"

	"github.com/theirongolddev/roundup/internal/tui/theme"
	"github.com/theirongolddev/roundup/internal/week"

	"github.com/charmbracelet/lipgloss"
)

// WeekBarSize is the number of weeks shown in the week bar.
const WeekBarSize = 5

// weekBarSep separates entries in the week bar.
const weekBarSep = "  "

// WeekBarStart returns the first week index shown so that active is always
// visible. The bar pages in blocks of WeekBarSize.
func WeekBarStart(active int) int {
	if active < 0 {
		return 0
	}
	return active / WeekBarSize * WeekBarSize
}

// weekBarEntry is the undecorated label for one week slot.
func weekBarEntry(idx, active int) string {
	name := week.Label(idx)
	if idx == active {
		return "▸ " + name
	}
	return name
}

// RenderWeekBar renders the week selector with the given active week.
// Older weeks are to the right.
func RenderWeekBar(active int, width int) string {
	t := theme.Active

	activeStyle := lipgloss.NewStyle().
		Foreground(t.Accent).
		Bold(true)

	inactiveStyle := lipgloss.NewStyle().
		Foreground(t.TextMuted)

	hintStyle := lipgloss.NewStyle().
		Foreground(t.TextDim)

	start := WeekBarStart(active)
	parts := make([]string, 0, WeekBarSize)
	for i := start; i < start+WeekBarSize; i++ {
		label := weekBarEntry(i, active)
		if i == active {
			parts = append(parts, activeStyle.Render(label))
		} else {
			parts = append(parts, inactiveStyle.Render(label))
		}
	}

	bar := " " + strings.Join(parts, weekBarSep)
	hint := hintStyle.Render("[←/h] newer  [→/l] older")
	if lipgloss.Width(bar)+lipgloss.Width(hint)+2 <= width {
		pad := width - lipgloss.Width(bar) - lipgloss.Width(hint) - 1
		bar += strings.Repeat(" ", pad) + hint
	}
	return bar
}

// WeekAtX returns the week index under column x of the week bar, or -1.
func WeekAtX(active, x int) int {
	start := WeekBarStart(active)
	pos := 1 // leading space
	for i := start; i < start+WeekBarSize; i++ {
		w := lipgloss.Width(weekBarEntry(i, active))
		if x >= pos && x < pos+w {
			return i
		}
		pos += w + len(weekBarSep)
	}
	return -1
}
