package telemetry

import (
	"sort"

	"zyberhero/internal/database"
)

// AppUsage is one row of a daily comparison.
type AppUsage struct {
	App                  string `json:"app"`
	WindowTitle          string `json:"windowTitle"`
	FocusedTimeSeconds   int64  `json:"focusedTimeSeconds"`
	ScreenTimeSeconds    int64  `json:"screenTimeSeconds"`
	FocusedTimeFormatted string `json:"focusedTimeFormatted"`
	ScreenTimeFormatted  string `json:"screenTimeFormatted"`
	TotalTimeSeconds     int64  `json:"totalTimeSeconds"`
}

type UsageSummary struct {
	TotalFocusedSeconds int64 `json:"totalFocusedSeconds"`
	TotalScreenSeconds  int64 `json:"totalScreenSeconds"`
}

type DailyComparison struct {
	Date    string       `json:"date"`
	Apps    []AppUsage   `json:"apps"`
	Summary UsageSummary `json:"summary"`
}

// Aggregate folds activity rows into per logical app totals, sorted by
// total time descending and then by name. Rows must be oldest first so the
// label is the latest non-empty window title.
func Aggregate(logs []database.ActivityLog) ([]AppUsage, UsageSummary) {
	byApp := make(map[string]*AppUsage)
	var summary UsageSummary

	for _, l := range logs {
		if l.DurationSeconds <= 0 {
			continue
		}
		app := ClassifyApp(l.AppName, l.WindowTitle)
		u, ok := byApp[app]
		if !ok {
			u = &AppUsage{App: app, WindowTitle: app}
			byApp[app] = u
		}
		secs := int64(l.DurationSeconds)
		if l.ScreenTime {
			u.ScreenTimeSeconds += secs
			summary.TotalScreenSeconds += secs
		} else {
			u.FocusedTimeSeconds += secs
			summary.TotalFocusedSeconds += secs
		}
		if l.WindowTitle != "" {
			u.WindowTitle = l.WindowTitle
		}
	}

	apps := make([]AppUsage, 0, len(byApp))
	for _, u := range byApp {
		u.TotalTimeSeconds = u.FocusedTimeSeconds + u.ScreenTimeSeconds
		u.FocusedTimeFormatted = FormatDuration(u.FocusedTimeSeconds)
		u.ScreenTimeFormatted = FormatDuration(u.ScreenTimeSeconds)
		apps = append(apps, *u)
	}
	sort.Slice(apps, func(i, j int) bool {
		if apps[i].TotalTimeSeconds != apps[j].TotalTimeSeconds {
			return apps[i].TotalTimeSeconds > apps[j].TotalTimeSeconds
		}
		return apps[i].App < apps[j].App
	})
	return apps, summary
}
