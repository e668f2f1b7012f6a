// Package extractor pulls MIDI payloads out of a single archive. Every
// failure is contained to the archive (or entry) that caused it.
package extractor

import (
	"archive/tar"
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/brensch/midiset/internal/archive"
	"github.com/brensch/midiset/internal/table"
)

var (
	// ErrArchiveOpen marks an archive that could not be opened or parsed.
	ErrArchiveOpen = errors.New("open archive")
	// ErrEntryRead marks a single entry whose content could not be read.
	ErrEntryRead = errors.New("read entry")
)

var midiExtensions = []string{".mid", ".midi"}

// Result is the outcome of extracting one archive.
type Result struct {
	Archive   archive.Archive
	Records   []table.Record
	OpenErr   error   // non-nil when the whole archive was skipped
	EntryErrs []error // entries skipped because their content could not be read
	Elapsed   time.Duration
}

// Failed reports whether the archive could not be processed at all.
func (r Result) Failed() bool { return r.OpenErr != nil }

// IsMIDIName reports whether an entry name ends in .mid or .midi, ignoring case.
func IsMIDIName(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range midiExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Extract reads every regular MIDI entry from a. It never returns an error:
// open failures yield an empty Result with OpenErr set, read failures skip
// the entry and are listed in EntryErrs.
func Extract(logger *slog.Logger, a archive.Archive) Result {
	l := logger.With(slog.String("archive", a.Path), slog.String("group", a.Group))
	start := time.Now()

	var res Result
	switch a.Format {
	case archive.FormatZip:
		res = extractZip(l, a)
	case archive.FormatTarGzip:
		res = extractTarGz(l, a)
	default:
		res = Result{OpenErr: fmt.Errorf("%w %s: unsupported format %s", ErrArchiveOpen, a.Path, a.Format)}
		l.Error("Unsupported archive format, skipping archive.", "error", res.OpenErr)
	}
	res.Archive = a
	res.Elapsed = time.Since(start)

	l.Debug("Archive extraction finished.",
		slog.Int("records", len(res.Records)),
		slog.Int("entry_errors", len(res.EntryErrs)),
		slog.Bool("skipped", res.Failed()),
		slog.Duration("duration", res.Elapsed.Round(time.Millisecond)))
	return res
}

func extractZip(l *slog.Logger, a archive.Archive) Result {
	var res Result

	zr, err := zip.OpenReader(a.Path)
	if err != nil {
		res.OpenErr = fmt.Errorf("%w %s: %w", ErrArchiveOpen, a.Path, err)
		l.Error("Failed to open zip archive, skipping archive.", "error", err)
		return res
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !IsMIDIName(f.Name) {
			continue
		}
		content, readErr := readZipEntry(f)
		if readErr != nil {
			entryErr := fmt.Errorf("%w %s in %s: %w", ErrEntryRead, f.Name, a.Path, readErr)
			l.Warn("Failed to read entry, skipping entry.", slog.String("entry", f.Name), "error", readErr)
			res.EntryErrs = append(res.EntryErrs, entryErr)
			continue
		}
		res.Records = append(res.Records, table.NewRecord(a.Group, path.Base(f.Name), content))
	}
	return res
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	content, readErr := io.ReadAll(rc)
	closeErr := rc.Close()
	if err := errors.Join(readErr, closeErr); err != nil {
		return nil, err
	}
	return content, nil
}

// extractTarGz streams the archive. A corrupt stream cannot be resynchronised,
// so a failure partway through ends enumeration but keeps what was read.
func extractTarGz(l *slog.Logger, a archive.Archive) Result {
	var res Result

	file, err := os.Open(a.Path)
	if err != nil {
		res.OpenErr = fmt.Errorf("%w %s: %w", ErrArchiveOpen, a.Path, err)
		l.Error("Failed to open tar.gz archive, skipping archive.", "error", err)
		return res
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		res.OpenErr = fmt.Errorf("%w %s: %w", ErrArchiveOpen, a.Path, err)
		l.Error("Failed to read gzip header, skipping archive.", "error", err)
		return res
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for entries := 0; ; entries++ {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if entries == 0 {
				res.OpenErr = fmt.Errorf("%w %s: %w", ErrArchiveOpen, a.Path, err)
				l.Error("Failed to read tar header, skipping archive.", "error", err)
				return res
			}
			entryErr := fmt.Errorf("%w after %d entries in %s: %w", ErrEntryRead, entries, a.Path, err)
			l.Warn("Tar stream corrupted, stopping enumeration.", slog.Int("entries_read", entries), "error", err)
			res.EntryErrs = append(res.EntryErrs, entryErr)
			break
		}
		if !hdr.FileInfo().Mode().IsRegular() || !IsMIDIName(hdr.Name) {
			continue
		}
		content, readErr := io.ReadAll(tr)
		if readErr != nil {
			entryErr := fmt.Errorf("%w %s in %s: %w", ErrEntryRead, hdr.Name, a.Path, readErr)
			l.Warn("Failed to read entry, skipping entry.", slog.String("entry", hdr.Name), "error", readErr)
			res.EntryErrs = append(res.EntryErrs, entryErr)
			continue
		}
		res.Records = append(res.Records, table.NewRecord(a.Group, path.Base(hdr.Name), content))
	}
	return res
}
