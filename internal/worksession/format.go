package worksession

import "fmt"

// FormatMinutes renders a duration in minutes as "45m" or "2h 05m".
func FormatMinutes(minutes int64) string {
	if minutes < 0 {
		minutes = 0
	}
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %02dm", minutes/60, minutes%60)
}
