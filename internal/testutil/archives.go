// Package testutil builds zip and tar.gz fixtures for tests.
package testutil

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

// Entry is one member of a fixture archive. Directory entries have a name
// ending in "/" and no body. Symlink entries point at Linkname.
type Entry struct {
	Name     string
	Body     []byte
	Linkname string
}

// File returns a regular-file entry of size n filled with a repeating byte.
func File(name string, n int) Entry {
	return Entry{Name: name, Body: bytes.Repeat([]byte{'m'}, n)}
}

// Dir returns a directory entry.
func Dir(name string) Entry {
	return Entry{Name: name}
}

// Symlink returns a symbolic link entry.
func Symlink(name, target string) Entry {
	return Entry{Name: name, Linkname: target}
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// WriteZip creates a zip archive at path. Entries are stored uncompressed so
// tests can locate and corrupt their bytes.
func WriteZip(t *testing.T, path string, entries ...Entry) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.Name, Method: zip.Store}
		if isDir(e) {
			hdr.SetMode(os.ModeDir | 0o755)
		}
		w, err := zw.CreateHeader(hdr)
		require.NoError(t, err)
		if !isDir(e) {
			_, err = w.Write(e.Body)
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

// WriteTarGz creates a gzip-compressed tar archive at path. The gzip stream
// is flushed after every entry so a truncated file still yields the entries
// written before the cut.
func WriteTarGz(t *testing.T, path string, entries ...Entry) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.Name, Mode: 0o644, Typeflag: tar.TypeReg, Size: int64(len(e.Body))}
		switch {
		case isDir(e):
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0o755
			hdr.Size = 0
		case e.Linkname != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = e.Linkname
			hdr.Size = 0
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if hdr.Typeflag == tar.TypeReg {
			_, err := tw.Write(e.Body)
			require.NoError(t, err)
		}
		require.NoError(t, tw.Flush())
		require.NoError(t, gz.Flush())
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

// WriteGzip writes data as a single gzip stream with no tar framing.
func WriteGzip(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(data)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

// WriteGarbage writes bytes that are neither a valid zip nor a valid gzip stream.
func WriteGarbage(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("this is not an archive at all"), 0o644))
}

// CorruptBytes overwrites the first occurrence of marker in the file at path
// with the same number of 'X' bytes.
func CorruptBytes(t *testing.T, path string, marker []byte) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	idx := bytes.Index(data, marker)
	require.GreaterOrEqual(t, idx, 0, "marker not found in %s", path)
	copy(data[idx:], bytes.Repeat([]byte{'X'}, len(marker)))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

// Truncate cuts the file at path down to keep bytes.
func Truncate(t *testing.T, path string, keep int64) {
	t.Helper()
	require.NoError(t, os.Truncate(path, keep))
}

func isDir(e Entry) bool {
	return len(e.Name) > 0 && e.Name[len(e.Name)-1] == '/'
}
