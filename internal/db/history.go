package db

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// DisplayRuns prints the most recent runs. If runID is set, the archive
// outcomes of that run are printed instead.
func DisplayRuns(ctx context.Context, w io.Writer, l *Ledger, runID string, limit int) error {
	if runID != "" {
		return displayArchiveEvents(ctx, w, l, runID)
	}

	runs, err := l.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "--- Run History (Limit %d) ---\n", limit)
	fmt.Fprintf(w, "%-36s | %-25s | %-9s | %-8s | %-10s | %s\n", "Run ID", "Started (UTC)", "Status", "Archives", "Records", "Output/Message")
	fmt.Fprintln(w, strings.Repeat("-", 130))
	for _, r := range runs {
		records := ""
		if r.Records.Valid {
			records = fmt.Sprintf("%d", r.Records.Int64)
		}
		details := r.OutputDir
		if r.Message != "" {
			details += " (" + r.Message + ")"
		}
		fmt.Fprintf(w, "%-36s | %-25s | %-9s | %-8d | %-10s | %s\n",
			r.ID, r.StartedAt.UTC().Format(time.RFC3339), r.Status, r.Archives, records, details)
	}
	fmt.Fprintf(w, "Displayed %d runs.\n", len(runs))
	return nil
}

func displayArchiveEvents(ctx context.Context, w io.Writer, l *Ledger, runID string) error {
	events, err := l.ArchiveEvents(ctx, runID)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "--- Archives in run %s ---\n", runID)
	fmt.Fprintf(w, "%-50s | %-8s | %-9s | %-7s | %-6s | %-10s | %s\n", "Archive", "Format", "Event", "Records", "Errors", "DurationMS", "Message")
	fmt.Fprintln(w, strings.Repeat("-", 130))
	for _, e := range events {
		fmt.Fprintf(w, "%-50s | %-8s | %-9s | %-7d | %-6d | %-10d | %s\n",
			e.Path, e.Format, e.Event, e.Records, e.EntryErrors, e.Duration.Milliseconds(), e.Message)
	}
	fmt.Fprintf(w, "Displayed %d archives.\n", len(events))
	return nil
}
