package telemetry

import "fmt"

// FormatDuration renders seconds as "45s", "1m" or "1h 1m".
func FormatDuration(seconds int64) string {
	if seconds < 60 {
		if seconds < 0 {
			seconds = 0
		}
		return fmt.Sprintf("%ds", seconds)
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
