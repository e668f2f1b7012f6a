// Package display renders run statistics for the terminal.
package display

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// FormatSize renders a byte count with one decimal in B, KB, MB or GB
// (powers of 1024).
func FormatSize(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	case n < 1024*1024*1024:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	default:
		return fmt.Sprintf("%.1f GB", float64(n)/(1024*1024*1024))
	}
}

// FormatCount renders a count with thousands separators.
func FormatCount[T ~int | ~int64](n T) string {
	return humanize.Comma(int64(n))
}
