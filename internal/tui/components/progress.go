package components

import (
	"fmt"

	"github.com/theirongolddev/roundup/internal/tui/theme"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// GoalBar renders progress toward a savings target, plus where the goal
// would land after the pending round-up.
func GoalBar(saved, pending float64, width int) string {
	t := theme.Active
	saved = clamp01(saved)
	after := clamp01(saved + pending)

	bar := progress.New(
		progress.WithSolidFill(string(t.Green)),
		progress.WithWidth(width),
		progress.WithoutPercentage(),
	)
	bar.EmptyColor = string(t.TextDim)

	pctStyle := lipgloss.NewStyle().Foreground(t.Green).Background(t.Surface).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	out := bar.ViewAs(saved) + " " + pctStyle.Render(fmt.Sprintf("%3.0f%%", saved*100))
	if after > saved {
		out += dimStyle.Render(fmt.Sprintf(" → %.0f%%", after*100))
	}
	return out
}

func clamp01(f float64) float64 {
	return min(max(f, 0), 1)
}
