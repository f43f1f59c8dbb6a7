package durfmt

import (
	"fmt"
	"time"
)

// Compact returns a short human-friendly rendering of a duration, tuned for
// aligned latency tables: sub-millisecond values in microseconds, then
// milliseconds, then seconds with one decimal.
func Compact(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) - minutes*60
		return fmt.Sprintf("%dm%02ds", minutes, seconds)
	}
}
