package inspector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/brensch/midiset/internal/saver"
)

// ErrNoDataset means the directory holds no partition files.
var ErrNoDataset = errors.New("no parquet partitions found")

// GroupSummary is one row of a dataset summary.
type GroupSummary struct {
	Group      string
	Files      int64 // MIDI payloads, i.e. rows
	TotalBytes int64
	MinBytes   int64
	MaxBytes   int64
}

// PartitionFiles lists every part file of the dataset at dir, keyed by group.
func PartitionFiles(dir string) (map[string][]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dataset directory %s: %w", dir, err)
	}
	files := make(map[string][]string)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		group, ok := saver.PartitionValue(e.Name())
		if !ok {
			continue
		}
		matches, err := filepath.Glob(filepath.Join(dir, e.Name(), "*.parquet"))
		if err != nil {
			return nil, fmt.Errorf("glob partition %s: %w", e.Name(), err)
		}
		if len(matches) == 0 {
			continue
		}
		sort.Strings(matches)
		files[group] = append(files[group], matches...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDataset, dir)
	}
	return files, nil
}

// Summarize queries the dataset with DuckDB and returns per-group counts and
// sizes, largest group first.
func Summarize(ctx context.Context, dataset string, logger *slog.Logger) ([]GroupSummary, error) {
	l := logger.With(slog.String("dataset", dataset))
	if _, err := PartitionFiles(dataset); err != nil {
		return nil, err
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	defer db.Close()

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	l.Debug("Loading Parquet extension.")
	if _, err := conn.ExecContext(ctx, `LOAD parquet;`); err != nil {
		l.Warn("Failed to load parquet extension.", "error", err)
	}

	glob := strings.ReplaceAll(filepath.ToSlash(filepath.Join(dataset, "*", "*.parquet")), "'", "''")
	query := fmt.Sprintf(`
        SELECT "%[2]s", count(*), CAST(sum(%[3]s) AS BIGINT), min(%[3]s), max(%[3]s)
        FROM read_parquet('%[1]s', hive_partitioning = true, hive_types_autocast = false)
        GROUP BY 1
        ORDER BY 2 DESC, 1;`, glob, saver.PartitionColumn, saver.ColumnFileSize)
	l.Debug("Running summary query.", slog.String("glob", glob))

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("summary query over %s: %w", dataset, err)
	}
	defer rows.Close()

	var out []GroupSummary
	for rows.Next() {
		var raw sql.NullString
		var s GroupSummary
		if err := rows.Scan(&raw, &s.Files, &s.TotalBytes, &s.MinBytes, &s.MaxBytes); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		s.Group = raw.String
		if g, ok := saver.PartitionValue(saver.PartitionColumn + "=" + raw.String); ok && raw.Valid {
			s.Group = g
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summary rows: %w", err)
	}
	l.Info("Dataset summarized.", slog.Int("groups", len(out)))
	return out, nil
}
