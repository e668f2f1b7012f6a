package saver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brensch/midiset/internal/config"
	"github.com/brensch/midiset/internal/table"
)

// ErrPersist marks any failure to write the dataset.
var ErrPersist = errors.New("persist dataset")

const (
	// PartitionColumn names the hive partition key in directory names.
	PartitionColumn = "group"
	// DefaultPartitionValue stands in for an empty group, as hive does for nulls.
	DefaultPartitionValue = "__HIVE_DEFAULT_PARTITION__"
)

// PartitionDir returns the directory that holds the files of group.
func PartitionDir(outputDir, group string) string {
	value := DefaultPartitionValue
	if group != "" {
		value = url.PathEscape(group)
	}
	return filepath.Join(outputDir, PartitionColumn+"="+value)
}

// PartitionValue reverses the escaping applied by PartitionDir to a directory
// name of the form group=<value>. ok is false for any other name.
func PartitionValue(dirName string) (group string, ok bool) {
	prefix := PartitionColumn + "="
	if len(dirName) <= len(prefix) || dirName[:len(prefix)] != prefix {
		return "", false
	}
	value := dirName[len(prefix):]
	if value == DefaultPartitionValue {
		return "", true
	}
	group, err := url.PathUnescape(value)
	if err != nil {
		return "", false
	}
	return group, true
}

// SaveTable writes tbl as a zstd-compressed Parquet dataset partitioned by
// group under cfg.OutputDir. Each partition becomes one new file. It returns
// the number of records written. An empty table writes nothing.
func SaveTable(ctx context.Context, cfg config.Config, tbl *table.Table, logger *slog.Logger) (int64, error) {
	l := logger.With(slog.String("output", cfg.OutputDir))
	if tbl.Len() == 0 {
		l.Warn("Table is empty, nothing to save.")
		return 0, nil
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return 0, fmt.Errorf("%w: create output directory %s: %w", ErrPersist, cfg.OutputDir, err)
	}

	groups, byGroup := tbl.Partitions()
	limit := cfg.NumWorkers
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	l.Info("Saving dataset.", slog.Int("records", tbl.Len()), slog.Int("partitions", len(groups)),
		slog.Int("compression_level", cfg.CompressionLevel))
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, group := range groups {
		group := group
		records := byGroup[group]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			dir := PartitionDir(cfg.OutputDir, group)
			path, err := writePartition(dir, records, cfg.CompressionLevel)
			if err != nil {
				l.Error("Failed to write partition.", slog.String("group", group), "error", err)
				return fmt.Errorf("%w: partition %q: %w", ErrPersist, group, err)
			}
			l.Debug("Partition written.", slog.String("group", group), slog.String("path", path), slog.Int("records", len(records)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if !errors.Is(err, ErrPersist) {
			err = fmt.Errorf("%w: %w", ErrPersist, err)
		}
		return 0, err
	}

	l.Info("Dataset saved.", slog.Int("records", tbl.Len()), slog.Duration("duration", time.Since(start).Round(time.Millisecond)))
	return int64(tbl.Len()), nil
}
