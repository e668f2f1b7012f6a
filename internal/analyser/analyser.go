// Package analyser computes size statistics over a finished table. It only
// reads the table.
package analyser

import (
	"log/slog"
	"sort"

	"github.com/brensch/midiset/internal/table"
)

const (
	KB = 1024
	MB = 1024 * KB
)

// bucketBounds are left-inclusive upper bounds; the last bucket is open.
var bucketBounds = []struct {
	label string
	upper int64
}{
	{"<1KB", KB},
	{"1KB-10KB", 10 * KB},
	{"10KB-100KB", 100 * KB},
	{"100KB-1MB", MB},
	{">1MB", -1},
}

// Bucket is one non-empty size class.
type Bucket struct {
	Label   string
	Count   int
	Percent float64 // share of all records, 0..100
}

// GroupSummary aggregates the records of one group.
type GroupSummary struct {
	Group      string
	Count      int
	TotalBytes int64
}

// Stats summarises a table. MeanBytes is truncated toward zero. All byte
// fields are zero for an empty table.
type Stats struct {
	Count      int
	TotalBytes int64
	MeanBytes  int64
	MaxBytes   int64
	MinBytes   int64
	Buckets    []Bucket       // non-empty only, count descending, ties in size order
	Groups     []GroupSummary // count descending, ties by group name
}

// BucketLabel returns the size class for a payload of n bytes.
func BucketLabel(n int64) string {
	return bucketBounds[bucketIndex(n)].label
}

func bucketIndex(n int64) int {
	for i, b := range bucketBounds {
		if b.upper < 0 || n < b.upper {
			return i
		}
	}
	return len(bucketBounds) - 1
}

// Compute derives Stats from tbl.
func Compute(tbl *table.Table) Stats {
	var s Stats
	counts := make([]int, len(bucketBounds))
	groups := make(map[string]*GroupSummary)

	for i, r := range tbl.Records() {
		size := r.FileSize
		s.Count++
		s.TotalBytes += size
		if i == 0 || size > s.MaxBytes {
			s.MaxBytes = size
		}
		if i == 0 || size < s.MinBytes {
			s.MinBytes = size
		}
		counts[bucketIndex(size)]++

		g, ok := groups[r.Group]
		if !ok {
			g = &GroupSummary{Group: r.Group}
			groups[r.Group] = g
		}
		g.Count++
		g.TotalBytes += size
	}
	if s.Count == 0 {
		return s
	}
	s.MeanBytes = s.TotalBytes / int64(s.Count)

	for i, c := range counts {
		if c == 0 {
			continue
		}
		s.Buckets = append(s.Buckets, Bucket{
			Label:   bucketBounds[i].label,
			Count:   c,
			Percent: float64(c) / float64(s.Count) * 100,
		})
	}
	sort.SliceStable(s.Buckets, func(i, j int) bool { return s.Buckets[i].Count > s.Buckets[j].Count })

	s.Groups = make([]GroupSummary, 0, len(groups))
	for _, g := range groups {
		s.Groups = append(s.Groups, *g)
	}
	sort.Slice(s.Groups, func(i, j int) bool {
		if s.Groups[i].Count != s.Groups[j].Count {
			return s.Groups[i].Count > s.Groups[j].Count
		}
		return s.Groups[i].Group < s.Groups[j].Group
	})
	return s
}

// Log writes the statistics as structured log lines.
func Log(logger *slog.Logger, s Stats) {
	logger.Info("Payload statistics.",
		slog.Int("files", s.Count),
		slog.Int64("total_bytes", s.TotalBytes),
		slog.Int64("mean_bytes", s.MeanBytes),
		slog.Int64("max_bytes", s.MaxBytes),
		slog.Int64("min_bytes", s.MinBytes),
		slog.Int("groups", len(s.Groups)))
	for _, b := range s.Buckets {
		logger.Debug("Size bucket.", slog.String("bucket", b.Label), slog.Int("count", b.Count), slog.Float64("percent", b.Percent))
	}
}
