// Package archive discovers tar.gz and zip archives under an input directory
// and derives the group name each archive's payloads are filed under.
package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Format identifies the container type of an archive.
type Format int

const (
	FormatUnknown Format = iota
	FormatTarGzip
	FormatZip
)

func (f Format) String() string {
	switch f {
	case FormatTarGzip:
		return "tar-gzip"
	case FormatZip:
		return "zip"
	default:
		return "unknown"
	}
}

const (
	extTarGz = ".tar.gz"
	extTar   = ".tar"
	extGz    = ".gz"
	extZip   = ".zip"
)

var (
	// ErrInputNotFound means the input directory does not exist.
	ErrInputNotFound = errors.New("input directory does not exist")
	// ErrInputNotDir means the input path exists but is not a directory.
	ErrInputNotDir = errors.New("input path is not a directory")
)

// Archive describes one discovered archive file.
type Archive struct {
	Path   string
	Format Format
	Group  string
}

// DetectFormat infers the archive format from its file name. Suffix matching
// ignores case.
func DetectFormat(name string) Format {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, extTarGz):
		return FormatTarGzip
	case strings.HasSuffix(lower, extZip):
		return FormatZip
	default:
		return FormatUnknown
	}
}

// GroupName derives the group from an archive file name: tar-gzip archives
// lose both ".gz" and ".tar", zip archives lose ".zip". The stem keeps its
// original case.
func GroupName(name string) string {
	base := filepath.Base(name)
	switch DetectFormat(base) {
	case FormatTarGzip:
		base = base[:len(base)-len(extGz)]
		return base[:len(base)-len(extTar)]
	case FormatZip:
		return base[:len(base)-len(extZip)]
	default:
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
}

// ValidateInputDir checks that path exists and is a directory.
func ValidateInputDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return fmt.Errorf("stat input directory %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrInputNotDir, path)
	}
	return nil
}

// Locate walks root recursively and returns every *.tar.gz and *.zip file,
// sorted by path. An empty result is not an error.
func Locate(root string, logger *slog.Logger) ([]Archive, error) {
	if err := ValidateInputDir(root); err != nil {
		return nil, err
	}

	var archives []Archive
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subdirectories are skipped, not fatal.
			if path != root {
				logger.Warn("Skipping unreadable path during discovery.", slog.String("path", path), "error", err)
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		format := DetectFormat(d.Name())
		if format == FormatUnknown {
			return nil
		}
		archives = append(archives, Archive{
			Path:   path,
			Format: format,
			Group:  GroupName(d.Name()),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Slice(archives, func(i, j int) bool { return archives[i].Path < archives[j].Path })
	logger.Debug("Archive discovery finished.", slog.String("root", root), slog.Int("archives", len(archives)))
	return archives, nil
}
