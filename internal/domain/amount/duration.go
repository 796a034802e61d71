package amount

import (
	"fmt"
	"time"
)

// FormatDuration renders a duration with the largest bucket that is at least
// one: years, days, hours, minutes, then seconds. Months are approximated as
// four weeks, matching how stream durations are quoted to users.
func FormatDuration(d time.Duration) string {
	seconds := d.Seconds()
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24
	years := days / 7 / 4 / 12

	switch {
	case years >= 1:
		return fmt.Sprintf("%.2f years", years)
	case days >= 1:
		return fmt.Sprintf("%.2f days", days)
	case hours >= 1:
		return fmt.Sprintf("%.2f hours", hours)
	case minutes >= 1:
		return fmt.Sprintf("%.2f minutes", minutes)
	default:
		return fmt.Sprintf("%.2f seconds", seconds)
	}
}
