// Package alerts stores safety events reported by agents and classifies
// their severity for display and notification.
package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"zyberhero/internal/apperr"
	"zyberhero/internal/constants"
	"zyberhero/internal/database"
	"zyberhero/internal/identity"
	"zyberhero/internal/logger"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Publisher pushes events to dashboard subscribers.
type Publisher interface {
	Broadcast(channel, msgType string, data interface{})
}

// Notifier delivers an alert to external channels.
type Notifier interface {
	SendAlert(ctx context.Context, severity, message, detail string)
}

type Options struct {
	// MinSeverity is the lowest severity forwarded to the notifier.
	MinSeverity string
	ListLimit   int
}

type Input struct {
	Device      identity.Identifier
	Type        string
	AppName     string
	URL         string
	WindowTitle string
	BadWords    any
	Details     json.RawMessage
	Timestamp   *time.Time
}

// View is an alert as returned to readers, with its derived severity.
type View struct {
	ID        uint           `json:"id"`
	DeviceID  uint           `json:"deviceId"`
	AppName   string         `json:"appName"`
	Type      string         `json:"type"`
	Severity  string         `json:"severity"`
	Timestamp time.Time      `json:"timestamp"`
	Details   datatypes.JSON `json:"details"`
}

type Store struct {
	resolver *identity.Resolver
	alerts   *database.AlertRepo
	events   Publisher
	notifier Notifier
	opts     Options
	now      func() time.Time
}

func NewStore(db *gorm.DB, resolver *identity.Resolver, events Publisher, notifier Notifier, opts Options) *Store {
	if opts.MinSeverity == "" {
		opts.MinSeverity = constants.SeverityHigh
	}
	if opts.ListLimit <= 0 {
		opts.ListLimit = 20
	}
	return &Store{
		resolver: resolver,
		alerts:   database.NewAlertRepo(db),
		events:   events,
		notifier: notifier,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create appends one alert.
func (s *Store) Create(ctx context.Context, in Input) (*View, error) {
	alertType := strings.TrimSpace(in.Type)
	if alertType == "" {
		return nil, apperr.Validation("type is required")
	}
	if in.Device.DeviceID <= 0 && strings.TrimSpace(in.Device.DeviceUUID) == "" {
		return nil, apperr.MissingIdentifier()
	}
	device, err := s.resolver.Resolve(ctx, identity.Identifier{
		DeviceID:   in.Device.DeviceID,
		DeviceUUID: in.Device.DeviceUUID,
	})
	if err != nil {
		return nil, err
	}

	appName := strings.TrimSpace(in.AppName)
	if appName == "" {
		appName = constants.UnknownApp
	}
	details, err := MergeDetails(in.Details, DetailFields{
		AppName:     strings.TrimSpace(in.AppName),
		WindowTitle: in.WindowTitle,
		URL:         in.URL,
		BadWords:    in.BadWords,
	})
	if err != nil {
		return nil, apperr.Validationf("details could not be encoded: %v", err)
	}
	ts := s.now()
	if in.Timestamp != nil && !in.Timestamp.IsZero() {
		ts = in.Timestamp.UTC()
	}

	row := &database.Alert{
		DeviceID:  device.ID,
		AppName:   appName,
		Type:      alertType,
		Timestamp: ts,
		Details:   details,
	}
	if err := s.alerts.Create(ctx, row); err != nil {
		return nil, apperr.Internal("failed to store alert", err)
	}
	s.resolver.Touch(ctx, device.ID)

	view := toView(row)
	logger.Alert.Info().
		Uint("id", row.ID).
		Uint("device_id", device.ID).
		Str("type", alertType).
		Str("severity", view.Severity).
		Msg("alert recorded")

	if s.events != nil {
		s.events.Broadcast(constants.ChannelAlerts, constants.EventAlertCreated, view)
	}
	s.notify(device, view)
	return &view, nil
}

func (s *Store) notify(device *database.Device, v View) {
	if s.notifier == nil || constants.SeverityRank(v.Severity) < constants.SeverityRank(s.opts.MinSeverity) {
		return
	}
	name := device.DeviceUUID
	if device.MachineName != nil && *device.MachineName != "" {
		name = *device.MachineName
	}
	message := fmt.Sprintf("%s on %s (%s)", v.Type, name, v.AppName)
	detail := string(v.Details)
	go s.notifier.SendAlert(context.Background(), v.Severity, message, detail)
}

// ForDevice returns the newest alerts of a device.
func (s *Store) ForDevice(ctx context.Context, dev identity.Identifier) ([]View, error) {
	device, err := s.device(ctx, dev)
	if err != nil {
		return nil, err
	}
	rows, err := s.alerts.RecentForDevice(ctx, device.ID, s.opts.ListLimit)
	if err != nil {
		return nil, apperr.Internal("failed to list alerts", err)
	}
	return toViews(rows), nil
}

// Latest returns the newest alert of a device, or nil when it has none.
func (s *Store) Latest(ctx context.Context, dev identity.Identifier) (*View, error) {
	device, err := s.device(ctx, dev)
	if err != nil {
		return nil, err
	}
	row, err := s.alerts.LatestForDevice(ctx, device.ID)
	if database.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal("failed to load alert", err)
	}
	v := toView(row)
	return &v, nil
}

// CountLast24h counts alerts of the trailing 24 hours, for one device or,
// with a zero identifier, for all of them.
func (s *Store) CountLast24h(ctx context.Context, dev identity.Identifier) (int64, error) {
	var scope *uint
	if dev.DeviceID > 0 || strings.TrimSpace(dev.DeviceUUID) != "" {
		device, err := s.device(ctx, dev)
		if err != nil {
			return 0, err
		}
		scope = &device.ID
	}
	n, err := s.alerts.CountSince(ctx, s.now().Add(-24*time.Hour), scope)
	if err != nil {
		return 0, apperr.Internal("failed to count alerts", err)
	}
	return n, nil
}

// Page lists alerts for the dashboard with optional filters.
func (s *Store) Page(ctx context.Context, filter database.AlertFilter) ([]View, int64, error) {
	rows, total, err := s.alerts.List(ctx, filter)
	if err != nil {
		return nil, 0, apperr.Internal("failed to list alerts", err)
	}
	return toViews(rows), total, nil
}

func (s *Store) device(ctx context.Context, dev identity.Identifier) (*database.Device, error) {
	if dev.DeviceID <= 0 && strings.TrimSpace(dev.DeviceUUID) == "" {
		return nil, apperr.MissingIdentifier()
	}
	return s.resolver.Resolve(ctx, identity.Identifier{DeviceID: dev.DeviceID, DeviceUUID: dev.DeviceUUID})
}

func toView(a *database.Alert) View {
	return View{
		ID:        a.ID,
		DeviceID:  a.DeviceID,
		AppName:   a.AppName,
		Type:      a.Type,
		Severity:  Severity(a.Type),
		Timestamp: a.Timestamp,
		Details:   a.Details,
	}
}

func toViews(rows []database.Alert) []View {
	out := make([]View, 0, len(rows))
	for i := range rows {
		out = append(out, toView(&rows[i]))
	}
	return out
}
