package statistics

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"image-compressor-go/internal/session"
)

// FormatBytes returns a human-readable size such as "1.46 MB".
func FormatBytes(bytes int64, decimals int) string {
	if bytes == 0 {
		return "0 Bytes"
	}
	if decimals < 0 {
		decimals = 0
	}
	sign := ""
	if bytes < 0 {
		sign = "-"
		bytes = -bytes
	}

	const k = 1024
	sizes := []string{"Bytes", "KB", "MB", "GB", "TB"}
	i := 0
	for v := bytes; v >= k && i < len(sizes)-1; v /= k {
		i++
	}
	value := float64(bytes) / math.Pow(k, float64(i))
	// Round, then drop trailing zeros.
	rounded := strconv.FormatFloat(value, 'f', decimals, 64)
	if strings.Contains(rounded, ".") {
		rounded = strings.TrimRight(strings.TrimRight(rounded, "0"), ".")
	}
	return sign + rounded + " " + sizes[i]
}

// FormatDuration renders milliseconds as "450ms", "2.3s" or "1m 30s".
func FormatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	minutes := ms / 60000
	seconds := int64(math.Round(float64(ms%60000) / 1000))
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}

// CalculateSavings returns the percentage saved going from original to compressed.
func CalculateSavings(original, compressed int64) float64 {
	if original == 0 {
		return 0
	}
	return float64(original-compressed) / float64(original) * 100
}

// Summary renders a CompressResult for terminal output.
func Summary(r session.CompressResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Compression Summary:\n\n")
	fmt.Fprintf(&b, "  Total:       %d\n", r.Total)
	fmt.Fprintf(&b, "  Successful:  %d\n", r.Successful)
	fmt.Fprintf(&b, "  Failed:      %d\n", r.Failed)
	fmt.Fprintf(&b, "  Saved:       %s\n", FormatBytes(r.SavedBytes, 2))
	fmt.Fprintf(&b, "  Duration:    %s\n", FormatDuration(r.DurationMs))

	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "\nErrors (%d total):\n", len(r.Errors))
		for i, e := range r.Errors {
			if i >= 10 {
				fmt.Fprintf(&b, "  ... and %d more errors\n", len(r.Errors)-10)
				break
			}
			fmt.Fprintf(&b, "  %s: %s\n", e.Filename, e.Error)
		}
	}
	return b.String()
}
