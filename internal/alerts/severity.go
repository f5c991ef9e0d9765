package alerts

import (
	"strings"

	"zyberhero/internal/constants"
)

var severityKeywords = []struct {
	severity string
	words    []string
}{
	{constants.SeverityCritical, []string{"critical", "danger"}},
	{constants.SeverityHigh, []string{"high", "warning"}},
	{constants.SeverityMedium, []string{"medium", "suspicious"}},
}

// Severity classifies an alert type by keyword, case-insensitively. The first
// matching tier wins; anything else is low.
func Severity(alertType string) string {
	t := strings.ToLower(alertType)
	for _, tier := range severityKeywords {
		for _, w := range tier.words {
			if strings.Contains(t, w) {
				return tier.severity
			}
		}
	}
	return constants.SeverityLow
}
