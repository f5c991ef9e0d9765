package telemetry

import (
	"strings"

	"zyberhero/internal/constants"
)

type titleRule struct {
	needles []string
	app     string
}

// browserRules split a browser process into logical apps by window title.
// Rules are checked in order; the first match wins.
var browserRules = map[string][]titleRule{
	"chrome": {
		{needles: []string{"google chat", "chat.google.com"}, app: "google-chat"},
		{needles: []string{"whatsapp"}, app: "whatsapp"},
		{needles: []string{"youtube"}, app: "youtube"},
		{needles: []string{"gmail"}, app: "gmail"},
		{needles: []string{"netflix"}, app: "netflix"},
	},
	"msedge": {
		{needles: []string{"youtube"}, app: "youtube-edge"},
		{needles: []string{"netflix"}, app: "netflix-edge"},
	},
}

// ClassifyApp returns the logical app for a process name and window title.
// Non-browser processes keep their reported name.
func ClassifyApp(appName, windowTitle string) string {
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return constants.UnknownApp
	}
	rules, ok := browserRules[processKey(appName)]
	if !ok {
		return appName
	}
	title := strings.ToLower(windowTitle)
	for _, rule := range rules {
		for _, needle := range rule.needles {
			if strings.Contains(title, needle) {
				return rule.app
			}
		}
	}
	return processKey(appName)
}

// processKey lowercases a process name and drops a trailing ".exe".
func processKey(appName string) string {
	return strings.TrimSuffix(strings.ToLower(appName), ".exe")
}
