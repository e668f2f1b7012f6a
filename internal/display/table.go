package display

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/brensch/midiset/internal/analyser"
	"github.com/brensch/midiset/internal/inspector"
)

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.DrawBorder = false
	return tbl
}

// GroupSummary prints the total payload count followed by one line per group.
func GroupSummary(w io.Writer, s analyser.Stats) {
	fmt.Fprintf(w, "\nFound %s MIDI files in %s groups\n", FormatCount(s.Count), FormatCount(len(s.Groups)))

	tbl := newTable()
	tbl.AppendHeader(table.Row{"Group", "Files", "Total size"})
	for _, g := range s.Groups {
		tbl.AppendRow(table.Row{g.Group, FormatCount(g.Count), FormatSize(g.TotalBytes)})
	}
	fmt.Fprintln(w, tbl.Render())
}

// DatasetSummary prints the per-group summary of a written dataset.
func DatasetSummary(w io.Writer, dataset string, groups []inspector.GroupSummary) {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"Group", "Files", "Total size", "Min", "Max"})

	var files, bytes int64
	for _, g := range groups {
		tbl.AppendRow(table.Row{g.Group, FormatCount(g.Files), FormatSize(g.TotalBytes), FormatSize(g.MinBytes), FormatSize(g.MaxBytes)})
		files += g.Files
		bytes += g.TotalBytes
	}
	tbl.AppendFooter(table.Row{"Total", FormatCount(files), FormatSize(bytes), "", ""})

	fmt.Fprintf(w, "Dataset %s\n%s\n", dataset, tbl.Render())
}

// VerifyResult prints the outcome of a dataset check.
func VerifyResult(w io.Writer, dataset string, r inspector.VerifyReport) {
	fmt.Fprintf(w, "Verified %s: %s files, %s rows, %s groups\n",
		dataset, FormatCount(r.Files), FormatCount(r.Rows), FormatCount(len(r.Groups)))
	if r.OK() {
		fmt.Fprintln(w, "All rows have file_size equal to content length.")
		return
	}

	tbl := newTable()
	tbl.AppendHeader(table.Row{"File", "Entry", "Declared", "Actual"})
	for _, v := range r.Violations {
		tbl.AppendRow(table.Row{v.Path, v.FileName, v.Declared, v.Actual})
	}
	fmt.Fprintf(w, "%d rows with mismatched size:\n%s\n", len(r.Violations), tbl.Render())
}
