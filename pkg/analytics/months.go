package analytics

import (
	"fmt"
	"time"
)

// formatMonth renders a cohort month label as "MM/YYYY".
func formatMonth(t time.Time) string {
	return fmt.Sprintf("%02d/%04d", int(t.Month()), t.Year())
}
