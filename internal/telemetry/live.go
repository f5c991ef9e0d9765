package telemetry

import (
	"context"
	"strings"
	"time"

	"zyberhero/internal/apperr"
	"zyberhero/internal/constants"
	"zyberhero/internal/database"
	"zyberhero/internal/identity"
	"zyberhero/internal/logger"
)

const maxTitleAppName = 128

type LiveApp struct {
	AppName     string
	WindowTitle string
}

type LiveReport struct {
	Device identity.Identifier
	// Apps must be non-nil; an empty list marks every app stopped.
	Apps []LiveApp
}

// LiveAppName names a reported app, falling back to a prefix of the window
// title and then to "unknown". Titles are free text, so the fallback is
// approximate.
func LiveAppName(appName, windowTitle string) string {
	if name := strings.TrimSpace(appName); name != "" {
		return name
	}
	title := []rune(strings.TrimSpace(windowTitle))
	if len(title) == 0 {
		return constants.UnknownApp
	}
	if len(title) > maxTitleAppName {
		title = title[:maxTitleAppName]
	}
	return string(title)
}

// ReportLive replaces the running set of a device with the reported apps.
func (s *Service) ReportLive(ctx context.Context, rep LiveReport) (int, error) {
	if rep.Apps == nil {
		return 0, apperr.Validation("apps array required")
	}
	device, err := s.resolver.Resolve(ctx, identity.Identifier{
		DeviceID:    rep.Device.DeviceID,
		DeviceUUID:  rep.Device.DeviceUUID,
		MachineName: rep.Device.MachineName,
	})
	if err != nil {
		return 0, err
	}

	seen := make(map[string]int, len(rep.Apps))
	rows := make([]database.LiveAppStatus, 0, len(rep.Apps))
	for _, a := range rep.Apps {
		name := LiveAppName(a.AppName, a.WindowTitle)
		if i, dup := seen[name]; dup {
			rows[i].WindowTitle = a.WindowTitle
			continue
		}
		seen[name] = len(rows)
		rows = append(rows, database.LiveAppStatus{AppName: name, WindowTitle: a.WindowTitle})
	}

	now := s.now().UTC()
	if err := s.live.ReplaceForDevice(ctx, device.ID, rows, now); err != nil {
		return 0, apperr.Internal("failed to store live status", err)
	}
	s.resolver.Touch(ctx, device.ID)

	if s.events != nil {
		s.events.Broadcast(constants.ChannelLive, constants.EventLiveUpdated, map[string]interface{}{
			"deviceId": device.ID,
			"apps":     rows,
		})
	}
	logger.Telemetry.Debug().Uint("device_id", device.ID).Int("apps", len(rows)).Msg("live status replaced")
	return len(rows), nil
}

// LiveApps returns apps reported running within the staleness window.
// staleSeconds <= 0 uses the configured default.
func (s *Service) LiveApps(ctx context.Context, dev identity.Identifier, staleSeconds int) ([]database.LiveAppStatus, error) {
	if dev.DeviceID <= 0 && strings.TrimSpace(dev.DeviceUUID) == "" {
		return nil, apperr.MissingIdentifier()
	}
	device, err := s.resolver.Resolve(ctx, identity.Identifier{DeviceID: dev.DeviceID, DeviceUUID: dev.DeviceUUID})
	if err != nil {
		return nil, err
	}
	window := s.opts.StaleWindow
	if staleSeconds > 0 {
		window = time.Duration(staleSeconds) * time.Second
	}
	rows, err := s.live.Running(ctx, device.ID, s.now().UTC().Add(-window))
	if err != nil {
		return nil, apperr.Internal("failed to load live status", err)
	}
	if rows == nil {
		rows = []database.LiveAppStatus{}
	}
	return rows, nil
}
