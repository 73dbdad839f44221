package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/examforge/examforge/internal/ui/theme"
)

// ProgressBar displays a horizontal bar for one section. Generated slots
// fill from the left, corpus fallbacks follow in the accent color.
type ProgressBar struct {
	Label     string
	LabelSize int
	Total     int
	Generated int
	Fallback  int
	Width     int
}

// View renders the progress bar followed by a done/total counter.
func (p ProgressBar) View() string {
	label := p.Label
	if p.LabelSize > 0 {
		label = fmt.Sprintf("%-*s", p.LabelSize, label)
	}
	result := theme.Body.Render(label) + "  "

	counter := fmt.Sprintf("  %d/%d", p.Generated+p.Fallback, p.Total)
	barWidth := p.Width - lipgloss.Width(result) - len(counter)
	if barWidth < 4 {
		barWidth = 4
	}

	gen := cells(barWidth, p.Generated, p.Total)
	fb := cells(barWidth, p.Generated+p.Fallback, p.Total) - gen
	empty := barWidth - gen - fb

	result += theme.ProgressFilled.Render(strings.Repeat(" ", gen))
	result += theme.ProgressFallback.Render(strings.Repeat(" ", fb))
	result += theme.ProgressEmpty.Render(strings.Repeat(" ", empty))
	result += theme.Subtitle.Render(counter)
	return result
}

func cells(width, n, total int) int {
	if total <= 0 || n <= 0 {
		return 0
	}
	if n >= total {
		return width
	}
	return width * n / total
}
