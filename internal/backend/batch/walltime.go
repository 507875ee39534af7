package batch

import (
	"fmt"
	"time"
)

// formatWallTime renders d as SLURM/PBS/SGE's common "D-HH:MM:SS" style
// (days omitted when zero).
func formatWallTime(d time.Duration) string {
	total := int64(d.Seconds())
	days := total / 86400
	total -= days * 86400
	hours := total / 3600
	total -= hours * 3600
	minutes := total / 60
	seconds := total - minutes*60

	if days > 0 {
		return fmt.Sprintf("%d-%02d:%02d:%02d", days, hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// formatWallTimeMinutes renders d as LSF's bsub -W format, "[hour:]minute".
func formatWallTimeMinutes(d time.Duration) string {
	total := int64(d.Minutes())
	hours := total / 60
	minutes := total - hours*60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d", hours, minutes)
	}
	return fmt.Sprintf("%d", minutes)
}
