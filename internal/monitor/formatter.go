package monitor

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/owera/internal/project"
)

// FormatPercentage formats a ratio (0-1) as percentage
func FormatPercentage(ratio float64) string {
	return fmt.Sprintf("%.0f%%", ratio*100)
}

// FormatDuration formats an elapsed time as "Xh Ym", "Xm Ys" or "Xs".
func FormatDuration(d time.Duration) string {
	seconds := int64(d.Round(time.Second) / time.Second)
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}

// FormatSteps formats completed lifecycle steps as "done/total".
func FormatSteps(done, total int) string {
	return fmt.Sprintf("%d/%d steps", done, total)
}

// flagMark renders one lifecycle flag.
func flagMark(set bool) string {
	if set {
		return "✓"
	}
	return "·"
}

// featureFlags returns the four lifecycle flags in order.
func featureFlags(f project.Feature) []bool {
	return []bool{f.HasDesign, f.HasImplementation, f.HasPassedTests, f.IsApproved}
}
