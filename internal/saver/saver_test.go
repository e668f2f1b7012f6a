package saver

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/file"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brensch/midiset/internal/config"
	"github.com/brensch/midiset/internal/table"
	"github.com/brensch/midiset/internal/testutil"
)

type row struct {
	name    string
	content string
	size    int64
}

func testConfig(out string) config.Config {
	return config.Config{OutputDir: out, CompressionLevel: config.DefaultCompressionLevel, NumWorkers: 2}
}

func partFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "part-*.parquet"))
	require.NoError(t, err)
	return matches
}

func readRows(t *testing.T, path string) []row {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	tbl, err := pqarrow.ReadTable(context.Background(), f, nil, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	require.NoError(t, err)
	defer tbl.Release()

	require.Equal(t, int64(3), tbl.NumCols())
	assert.Equal(t, ColumnFileName, tbl.Schema().Field(0).Name)
	assert.Equal(t, ColumnContent, tbl.Schema().Field(1).Name)
	assert.Equal(t, ColumnFileSize, tbl.Schema().Field(2).Name)

	reader := array.NewTableReader(tbl, 1024)
	defer reader.Release()

	var rows []row
	for reader.Next() {
		rec := reader.Record()
		names := rec.Column(0).(*array.String)
		contents := rec.Column(1).(*array.Binary)
		sizes := rec.Column(2).(*array.Int64)
		for i := 0; i < int(rec.NumRows()); i++ {
			rows = append(rows, row{names.Value(i), string(contents.Value(i)), sizes.Value(i)})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].name < rows[j].name })
	return rows
}

func TestSaveTable_HivePartitions(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "dataset")
	tbl := table.New(3)
	tbl.Append(
		table.NewRecord("a", "x.mid", []byte(strings.Repeat("a", 500))),
		table.NewRecord("a", "y.mid", []byte(strings.Repeat("b", 2000))),
		table.NewRecord("b", "z.midi", []byte("zz")),
	)

	n, err := SaveTable(context.Background(), testConfig(out), tbl, testutil.DiscardLogger())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	var dirs []string
	for _, e := range entries {
		dirs = append(dirs, e.Name())
	}
	assert.Equal(t, []string{"group=a", "group=b"}, dirs)

	aFiles := partFiles(t, filepath.Join(out, "group=a"))
	require.Len(t, aFiles, 1)
	assert.Equal(t, []row{
		{"x.mid", strings.Repeat("a", 500), 500},
		{"y.mid", strings.Repeat("b", 2000), 2000},
	}, readRows(t, aFiles[0]))

	bFiles := partFiles(t, filepath.Join(out, "group=b"))
	require.Len(t, bFiles, 1)
	assert.Equal(t, []row{{"z.midi", "zz", 2}}, readRows(t, bFiles[0]))

	leftovers, err := filepath.Glob(filepath.Join(out, "*", ".part-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestSaveTable_SingleRecordLeavesOnlyPartFile(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "dataset")
	tbl := table.New(1)
	tbl.Append(table.NewRecord("g", "song.mid", []byte("MThd")))

	n, err := SaveTable(context.Background(), testConfig(out), tbl, testutil.DiscardLogger())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	dir := PartitionDir(out, "g")
	files := partFiles(t, dir)
	require.Len(t, files, 1)
	assert.Equal(t, []row{{"song.mid", "MThd", 4}}, readRows(t, files[0]))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestSaveTable_UsesZstd(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	tbl := table.New(1)
	tbl.Append(table.NewRecord("g", "a.mid", []byte("MThd")))
	_, err := SaveTable(context.Background(), testConfig(out), tbl, testutil.DiscardLogger())
	require.NoError(t, err)

	files := partFiles(t, filepath.Join(out, "group=g"))
	require.Len(t, files, 1)

	f, err := os.Open(files[0])
	require.NoError(t, err)
	defer f.Close()
	rdr, err := file.NewParquetReader(f)
	require.NoError(t, err)
	defer rdr.Close()

	assert.Equal(t, int64(1), rdr.NumRows())
	rg := rdr.MetaData().RowGroup(0)
	for i := 0; i < rg.NumColumns(); i++ {
		col, err := rg.ColumnChunk(i)
		require.NoError(t, err)
		assert.Equal(t, compress.Codecs.Zstd, col.Compression())
	}
}

func TestSaveTable_EmptyTableWritesNothing(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "never")
	n, err := SaveTable(context.Background(), testConfig(out), table.New(0), testutil.DiscardLogger())
	require.NoError(t, err)
	assert.Zero(t, n)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSaveTable_UnwritableOutput(t *testing.T) {
	t.Parallel()

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	tbl := table.New(1)
	tbl.Append(table.NewRecord("g", "a.mid", []byte("x")))
	_, err := SaveTable(context.Background(), testConfig(filepath.Join(blocker, "out")), tbl, testutil.DiscardLogger())
	assert.ErrorIs(t, err, ErrPersist)
}

func TestSaveTable_ManyBatches(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	big := make([]byte, maxBatchBytes/2+1)
	tbl := table.New(3)
	for _, name := range []string{"1.mid", "2.mid", "3.mid"} {
		tbl.Append(table.NewRecord("big", name, big))
	}
	cfg := testConfig(out)
	cfg.CompressionLevel = 1

	_, err := SaveTable(context.Background(), cfg, tbl, testutil.DiscardLogger())
	require.NoError(t, err)

	files := partFiles(t, filepath.Join(out, "group=big"))
	require.Len(t, files, 1)
	rows := readRows(t, files[0])
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.Equal(t, int64(len(big)), r.size)
	}
}

func TestBatchEnd(t *testing.T) {
	t.Parallel()

	recs := []table.Record{
		{FileSize: maxBatchBytes + 5},
		{FileSize: 10},
		{FileSize: 10},
	}
	assert.Equal(t, 1, batchEnd(recs, 0))
	assert.Equal(t, 3, batchEnd(recs, 1))
}

func TestPartitionDirRoundTrip(t *testing.T) {
	t.Parallel()

	for _, g := range []string{"a", "lakh v2", "100%", "ünï", ""} {
		dir := PartitionDir("/out", g)
		got, ok := PartitionValue(filepath.Base(dir))
		require.True(t, ok, g)
		assert.Equal(t, g, got)
	}
	assert.Equal(t, filepath.Join("/out", "group=lakh%20v2"), PartitionDir("/out", "lakh v2"))

	_, ok := PartitionValue("other=x")
	assert.False(t, ok)
}
