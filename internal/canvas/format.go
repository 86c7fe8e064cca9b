package canvas

import (
	"fmt"
	"time"
)

// TimeAgo renders a timestamp as a coarse relative string for status output.
func TimeAgo(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	diff := now.Sub(t)
	switch {
	case diff >= 24*time.Hour:
		days := int(diff.Hours() / 24)
		return fmt.Sprintf("%d day%s ago", days, plural(days))
	case diff >= time.Hour:
		hours := int(diff.Hours())
		return fmt.Sprintf("%d hour%s ago", hours, plural(hours))
	case diff >= time.Minute:
		minutes := int(diff.Minutes())
		return fmt.Sprintf("%d minute%s ago", minutes, plural(minutes))
	default:
		return "just now"
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
