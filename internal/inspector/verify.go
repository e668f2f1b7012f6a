package inspector

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
)

// verifyBatch is the number of rows decoded per read.
const verifyBatch = 64

// partRow mirrors the columns of a partition file.
type partRow struct {
	FileName string `parquet:"name=file_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Content  string `parquet:"name=content, type=BYTE_ARRAY"`
	FileSize int64  `parquet:"name=file_size, type=INT64"`
}

// Violation is a row whose declared size does not match its content.
type Violation struct {
	Path     string
	FileName string
	Declared int64
	Actual   int64
}

// VerifyReport summarises a dataset check.
type VerifyReport struct {
	Files      int
	Rows       int64
	Groups     []string
	Violations []Violation
}

// OK reports whether every row passed.
func (r VerifyReport) OK() bool { return len(r.Violations) == 0 }

// Verify re-reads every partition file of dataset and checks that file_size
// equals the content length of each row. Read failures are returned as
// errors; mismatches are listed in the report.
func Verify(dataset string, logger *slog.Logger) (VerifyReport, error) {
	var report VerifyReport
	files, err := PartitionFiles(dataset)
	if err != nil {
		return report, err
	}

	for group := range files {
		report.Groups = append(report.Groups, group)
	}
	sort.Strings(report.Groups)

	for _, group := range report.Groups {
		for _, path := range files[group] {
			l := logger.With(slog.String("group", group), slog.String("file", filepath.Base(path)))
			rows, violations, err := verifyFile(path)
			if err != nil {
				l.Error("Failed to read partition file.", "error", err)
				return report, fmt.Errorf("verify %s: %w", path, err)
			}
			report.Files++
			report.Rows += rows
			report.Violations = append(report.Violations, violations...)
			l.Debug("Partition file verified.", slog.Int64("rows", rows), slog.Int("violations", len(violations)))
		}
	}

	logger.Info("Dataset verified.",
		slog.String("dataset", dataset),
		slog.Int("files", report.Files),
		slog.Int64("rows", report.Rows),
		slog.Int("violations", len(report.Violations)))
	return report, nil
}

func verifyFile(path string) (int64, []Violation, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return 0, nil, fmt.Errorf("open: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(partRow), 1)
	if err != nil {
		return 0, nil, fmt.Errorf("create reader: %w", err)
	}
	defer pr.ReadStop()

	total := pr.GetNumRows()
	var violations []Violation
	for read := int64(0); read < total; {
		n := total - read
		if n > verifyBatch {
			n = verifyBatch
		}
		rows := make([]partRow, n)
		if err := pr.Read(&rows); err != nil {
			return read, violations, fmt.Errorf("read rows %d..%d: %w", read, read+n, err)
		}
		for _, r := range rows {
			if int64(len(r.Content)) != r.FileSize {
				violations = append(violations, Violation{
					Path:     path,
					FileName: r.FileName,
					Declared: r.FileSize,
					Actual:   int64(len(r.Content)),
				})
			}
		}
		read += n
	}
	return total, violations, nil
}
