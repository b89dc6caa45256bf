// Package card renders a presence snapshot as a profile card for the
// terminal, either as plain lines or as a live bubbletea view.
package card

import (
	"fmt"
	"time"
)

// FormatClock renders d as m:ss. Negative durations read as 0:00.
func FormatClock(d time.Duration) string {
	total := int(d / time.Second)
	if total < 0 {
		total = 0
	}

	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// FormatElapsed renders d as "Xh Ym", "Xm Ys" or "Xs". A negative duration
// yields an empty string.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		return ""
	}

	total := int(d / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
