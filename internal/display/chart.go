package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/brensch/midiset/internal/analyser"
)

// chartWidth is the length of the longest bar in cells.
const chartWidth = 40

// Chart draws a horizontal bar chart of the size buckets followed by the
// detailed statistics.
func Chart(w io.Writer, s analyser.Stats) {
	r := lipgloss.NewRenderer(w)
	titleStyle := r.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	labelStyle := r.NewStyle().Width(12)
	barStyle := r.NewStyle().Foreground(lipgloss.Color("39"))
	infoStyle := r.NewStyle().Foreground(lipgloss.Color("244"))

	rule := strings.Repeat("=", 60)
	fmt.Fprintf(w, "\n%s\n%s\n%s\n", rule, titleStyle.Render("MIDI file size distribution"), rule)

	peak := 0
	for _, b := range s.Buckets {
		peak = max(peak, b.Count)
	}
	for _, b := range s.Buckets {
		fmt.Fprintf(w, "%s %s %s\n",
			labelStyle.Render(b.Label),
			barStyle.Render(strings.Repeat("█", barLength(b.Count, peak))),
			infoStyle.Render(FormatCount(b.Count)))
	}

	fmt.Fprintln(w, "\nDetailed statistics:")
	fmt.Fprintf(w, "Total files: %s\n", FormatCount(s.Count))
	fmt.Fprintf(w, "Total size:  %s\n", FormatSize(s.TotalBytes))
	fmt.Fprintf(w, "Mean size:   %s\n", FormatSize(s.MeanBytes))
	fmt.Fprintf(w, "Largest:     %s\n", FormatSize(s.MaxBytes))
	fmt.Fprintf(w, "Smallest:    %s\n", FormatSize(s.MinBytes))

	fmt.Fprintln(w, "\nBy size class:")
	for _, b := range s.Buckets {
		fmt.Fprintf(w, "  %-12s: %6s files (%5.1f%%)\n", b.Label, FormatCount(b.Count), b.Percent)
	}
}

// barLength scales count against peak. Non-zero counts always get a cell.
func barLength(count, peak int) int {
	if peak == 0 || count == 0 {
		return 0
	}
	return max(1, count*chartWidth/peak)
}

// Report prints the group summary and, unless noPlot is set, the chart.
func Report(w io.Writer, s analyser.Stats, noPlot bool) {
	GroupSummary(w, s)
	if !noPlot {
		Chart(w, s)
	}
}
