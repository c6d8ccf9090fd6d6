package ui

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bamsammich/rat/internal/stats"
)

// CompletionSummary builds a final summary line from a snapshot.
// Format: done ✓  inputs 3  size 2.1 GiB  avg 641.0 MiB/s  time 3m 17s  bulk 2.0 GiB  errors 0
func CompletionSummary(snap stats.Snapshot) string {
	var perSec int64
	if secs := snap.Elapsed.Seconds(); secs > 0 {
		perSec = int64(float64(snap.BytesCopied) / secs)
	}

	icon := "✓"
	if snap.InputsFailed > 0 {
		icon = "✗"
	}

	base := fmt.Sprintf("done %s  inputs %s  size %s  avg %s/s  time %s",
		icon,
		groupDigits(snap.InputsCompleted),
		stats.FormatBytes(snap.BytesCopied),
		stats.FormatBytes(perSec),
		formatElapsed(snap.Elapsed),
	)

	if snap.BytesBulk > 0 {
		base += "  bulk " + stats.FormatBytes(snap.BytesBulk)
	}
	if snap.InputsSkipped > 0 {
		base += "  skipped " + groupDigits(snap.InputsSkipped)
	}

	return base + fmt.Sprintf("  errors %d", snap.InputsFailed)
}

// groupDigits renders n with comma thousands separators.
func groupDigits(n int64) string {
	s := strconv.FormatInt(n, 10)
	sign := ""
	if n < 0 {
		sign, s = "-", s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return sign + s
}

// formatElapsed keeps millisecond precision below one second, since most
// concatenations finish well inside it.
func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", max(d, 0).Milliseconds())
	}
	d = d.Round(time.Second)
	h, m, s := int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
