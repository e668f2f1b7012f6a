package extractor

import (
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brensch/midiset/internal/archive"
	"github.com/brensch/midiset/internal/testutil"
)

func archiveAt(path string) archive.Archive {
	return archive.Archive{Path: path, Format: archive.DetectFormat(path), Group: archive.GroupName(path)}
}

func names(res Result) []string {
	out := make([]string, 0, len(res.Records))
	for _, r := range res.Records {
		out = append(out, r.FileName)
	}
	sort.Strings(out)
	return out
}

func TestIsMIDIName(t *testing.T) {
	t.Parallel()

	for _, n := range []string{"a.mid", "A.MID", "dir/b.midi", "c.MiDi"} {
		assert.True(t, IsMIDIName(n), n)
	}
	for _, n := range []string{"a.mp3", "mid", "a.mid.txt", "a.midx", "folder.mid/readme"} {
		assert.False(t, IsMIDIName(n), n)
	}
}

func TestExtract_Zip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a.zip")
	testutil.WriteZip(t, path,
		testutil.File("song.mid", 50),
		testutil.Dir("sub/"),
		testutil.File("sub/deep/Tune.MIDI", 1200),
		testutil.File("readme.txt", 10),
		testutil.Dir("fake.mid/"),
	)

	res := Extract(testutil.DiscardLogger(), archiveAt(path))
	require.False(t, res.Failed())
	assert.Empty(t, res.EntryErrs)
	assert.Equal(t, []string{"Tune.MIDI", "song.mid"}, names(res))
	for _, r := range res.Records {
		assert.Equal(t, "a", r.Group)
		assert.Equal(t, int64(len(r.Content)), r.FileSize)
	}
}

func TestExtract_TarGz(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "b.tar.gz")
	testutil.WriteTarGz(t, path,
		testutil.Dir("pack/"),
		testutil.File("pack/tune.midi", 2050),
		testutil.Symlink("pack/link.mid", "tune.midi"),
		testutil.File("pack/cover.jpg", 300),
		testutil.File("pack/other.MID", 0),
	)

	res := Extract(testutil.DiscardLogger(), archiveAt(path))
	require.False(t, res.Failed())
	assert.Empty(t, res.EntryErrs)
	require.Equal(t, []string{"other.MID", "tune.midi"}, names(res))
	for _, r := range res.Records {
		assert.Equal(t, "b", r.Group)
		if r.FileName == "tune.midi" {
			assert.Equal(t, int64(2050), r.FileSize)
		} else {
			assert.Equal(t, int64(0), r.FileSize)
		}
	}
}

func TestExtract_UnreadableArchives(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"bad.zip", "bad.tar.gz"} {
		path := filepath.Join(dir, name)
		testutil.WriteGarbage(t, path)

		res := Extract(testutil.DiscardLogger(), archiveAt(path))
		assert.True(t, res.Failed(), name)
		assert.ErrorIs(t, res.OpenErr, ErrArchiveOpen, name)
		assert.Empty(t, res.Records, name)
	}

	missing := Extract(testutil.DiscardLogger(), archiveAt(filepath.Join(dir, "gone.zip")))
	assert.ErrorIs(t, missing.OpenErr, ErrArchiveOpen)
}

func TestExtract_GzipWithoutTar(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "plain.tar.gz")
	testutil.WriteGzip(t, path, []byte("a gzip stream that holds no tar headers"))

	res := Extract(testutil.DiscardLogger(), archiveAt(path))
	assert.True(t, res.Failed())
	assert.Empty(t, res.Records)
}

func TestExtract_ZipCorruptEntrySkipped(t *testing.T) {
	t.Parallel()

	marker := []byte("CORRUPT-THIS-PAYLOAD")
	path := filepath.Join(t.TempDir(), "mixed.zip")
	testutil.WriteZip(t, path,
		testutil.File("good.mid", 64),
		testutil.Entry{Name: "broken.mid", Body: append([]byte("MThd"), marker...)},
		testutil.File("also-good.midi", 32),
	)
	testutil.CorruptBytes(t, path, marker)

	res := Extract(testutil.DiscardLogger(), archiveAt(path))
	require.False(t, res.Failed())
	require.Len(t, res.EntryErrs, 1)
	assert.ErrorIs(t, res.EntryErrs[0], ErrEntryRead)
	assert.Equal(t, []string{"also-good.midi", "good.mid"}, names(res))
}

func TestExtract_TruncatedTarGzKeepsEarlierEntries(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	big := make([]byte, 256*1024)
	rand.New(rand.NewSource(7)).Read(big)

	// The single-entry archive shares its flushed prefix with the two-entry
	// one, so its size is a cut point inside the second entry.
	prefix := filepath.Join(dir, "prefix.tar.gz")
	testutil.WriteTarGz(t, prefix, testutil.File("first.mid", 100))
	info, err := os.Stat(prefix)
	require.NoError(t, err)

	path := filepath.Join(dir, "cut.tar.gz")
	testutil.WriteTarGz(t, path,
		testutil.File("first.mid", 100),
		testutil.Entry{Name: "second.mid", Body: big},
	)
	testutil.Truncate(t, path, info.Size())

	res := Extract(testutil.DiscardLogger(), archiveAt(path))
	require.False(t, res.Failed())
	assert.Equal(t, []string{"first.mid"}, names(res))
	require.NotEmpty(t, res.EntryErrs)
	assert.ErrorIs(t, res.EntryErrs[0], ErrEntryRead)
}

func TestExtract_UnknownFormat(t *testing.T) {
	t.Parallel()

	res := Extract(testutil.DiscardLogger(), archive.Archive{Path: "x.rar", Group: "x"})
	assert.ErrorIs(t, res.OpenErr, ErrArchiveOpen)
	assert.Equal(t, "x.rar", res.Archive.Path)
}
