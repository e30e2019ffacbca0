package utils

import (
	"fmt"
	"os"
	"time"

	"github.com/andresmejia3/facegate/internal/logger"
)

// ShowError prints the unified error box to stderr.
func ShowError(context string, err error) {
	fmt.Fprintf(os.Stderr, "\n---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "🚨 FACEGATE ERROR: %s\n", context)
	if err != nil {
		fmt.Fprintf(os.Stderr, "DETAILS: %v\n", err)
	}
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
}

// Die is the unified exit strategy for facegate. It flushes the logger before
// exiting so the last structured entries are not lost.
func Die(context string, err error) {
	ShowError(context, err)
	logger.Sync()
	os.Exit(1)
}

// HumanSize formats a byte count for tables. Negative sizes are unknown.
func HumanSize(n int64) string {
	const unit = 1024
	if n < 0 {
		return "?"
	}
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// FormatTime renders a timestamp in the local zone for tables.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
