// Package notify shows session progress on the desktop.
package notify

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/op/go-logging"

	"hyprrec/internal/domain"
)

var log = logging.MustGetLogger("notify")

const barCells = 20

// progressBar renders fraction as a fixed-width bar of filled and empty cells.
func progressBar(fraction float64) string {
	filled := int(math.Round(clamp(fraction) * barCells))
	return strings.Repeat("█", filled) + strings.Repeat("░", barCells-filled)
}

func percent(fraction float64) int {
	return int(math.Round(clamp(fraction) * 100))
}

func clamp(fraction float64) float64 {
	switch {
	case math.IsNaN(fraction) || fraction < 0:
		return 0
	case fraction > 1:
		return 1
	default:
		return fraction
	}
}

func progressBody(fraction float64) string {
	return fmt.Sprintf("%s %d%%", progressBar(fraction), percent(fraction))
}

// finishText returns the summary and body posted when a session ends.
func finishText(outcome domain.Outcome) (string, string) {
	switch outcome.Kind {
	case domain.OutcomeSaved:
		return "Recording saved", filepath.Base(outcome.Path)
	case domain.OutcomeCancelled:
		return "Recording cancelled", "Nothing was saved"
	default:
		reason := outcome.Reason
		if reason == "" {
			reason = "unknown error"
		}
		return "Recording failed", reason
	}
}
