package saver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
	"github.com/google/uuid"

	"github.com/brensch/midiset/internal/table"
)

// Column names of every partition file.
const (
	ColumnFileName = "file_name"
	ColumnContent  = "content"
	ColumnFileSize = "file_size"
)

// maxBatchBytes bounds the content bytes per record batch, keeping binary
// offsets well inside int32.
const maxBatchBytes = 64 << 20

// FileSchema is the Arrow schema of a partition file. The group lives in the
// directory name.
func FileSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: ColumnFileName, Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: ColumnContent, Type: arrow.BinaryTypes.Binary, Nullable: false},
		{Name: ColumnFileSize, Type: arrow.PrimitiveTypes.Int64, Nullable: false},
	}, nil)
}

// writePartition writes records to a new part file in dir. The file only
// appears under its final name once it is complete.
func writePartition(dir string, records []table.Record, level int) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create partition directory: %w", err)
	}

	finalPath := filepath.Join(dir, fmt.Sprintf("part-%s.parquet", uuid.NewString()))
	tmp, err := os.CreateTemp(dir, ".part-*.parquet.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := writeRecords(tmp, records, level); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename %s: %w", tmpPath, err)
	}
	return finalPath, nil
}

// writeRecords writes records to out and always closes it. Once the parquet
// writer exists it owns out, and closing the writer closes the file.
func writeRecords(out *os.File, records []table.Record, level int) error {
	schema := FileSchema()
	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithCompressionLevel(level),
		parquet.WithDictionaryDefault(false),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	writer, err := pqarrow.NewFileWriter(schema, out, writerProps, arrowProps)
	if err != nil {
		return errors.Join(fmt.Errorf("create parquet writer: %w", err), out.Close())
	}

	alloc := memory.NewGoAllocator()
	for start := 0; start < len(records); {
		end := batchEnd(records, start)
		if err := writeBatch(writer, alloc, schema, records[start:end]); err != nil {
			_ = writer.Close()
			return err
		}
		start = end
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// batchEnd returns the end of the batch starting at start. A batch always
// holds at least one record.
func batchEnd(records []table.Record, start int) int {
	var size int64
	end := start
	for end < len(records) {
		size += records[end].FileSize
		if end > start && size > maxBatchBytes {
			break
		}
		end++
	}
	return end
}

func writeBatch(writer *pqarrow.FileWriter, alloc memory.Allocator, schema *arrow.Schema, records []table.Record) error {
	names := array.NewStringBuilder(alloc)
	defer names.Release()
	contents := array.NewBinaryBuilder(alloc, arrow.BinaryTypes.Binary)
	defer contents.Release()
	sizes := array.NewInt64Builder(alloc)
	defer sizes.Release()

	names.Reserve(len(records))
	contents.Reserve(len(records))
	sizes.Reserve(len(records))
	for _, r := range records {
		names.Append(r.FileName)
		contents.Append(r.Content)
		sizes.Append(r.FileSize)
	}

	nameArr := names.NewArray()
	defer nameArr.Release()
	contentArr := contents.NewArray()
	defer contentArr.Release()
	sizeArr := sizes.NewArray()
	defer sizeArr.Release()

	batch := array.NewRecord(schema, []arrow.Array{nameArr, contentArr, sizeArr}, int64(len(records)))
	defer batch.Release()

	if err := writer.Write(batch); err != nil {
		return fmt.Errorf("write record batch: %w", err)
	}
	return nil
}
