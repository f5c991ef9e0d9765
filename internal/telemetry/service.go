// Package telemetry ingests activity and live-app reports and derives the
// per-day usage views shown on the dashboard.
package telemetry

import (
	"context"
	"strings"
	"time"

	"zyberhero/internal/apperr"
	"zyberhero/internal/database"
	"zyberhero/internal/identity"
	"zyberhero/internal/logger"

	"gorm.io/gorm"
)

// Publisher pushes events to dashboard subscribers.
type Publisher interface {
	Broadcast(channel, msgType string, data interface{})
}

type Options struct {
	StaleWindow time.Duration
	RecentLimit int
	// Location sets calendar day boundaries; nil means time.Local.
	Location *time.Location
}

type Service struct {
	resolver *identity.Resolver
	devices  *database.DeviceRepo
	activity *database.ActivityRepo
	live     *database.LiveStatusRepo
	events   Publisher
	opts     Options
	now      func() time.Time
}

func NewService(db *gorm.DB, resolver *identity.Resolver, events Publisher, opts Options) *Service {
	if opts.StaleWindow <= 0 {
		opts.StaleWindow = 90 * time.Second
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = 100
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Service{
		resolver: resolver,
		devices:  database.NewDeviceRepo(db),
		activity: database.NewActivityRepo(db),
		live:     database.NewLiveStatusRepo(db),
		events:   events,
		opts:     opts,
		now:      time.Now,
	}
}

type ActivityInput struct {
	Device          identity.Identifier
	AppName         string
	WindowTitle     string
	DurationSeconds int
	ExecutablePath  string
	ScreenTime      bool
	Timestamp       *time.Time
	LocalTimestamp  *time.Time
}

// RecordActivity appends one activity fact for a known device.
func (s *Service) RecordActivity(ctx context.Context, in ActivityInput) (*database.ActivityLog, error) {
	if strings.TrimSpace(in.AppName) == "" {
		return nil, apperr.Validation("appName is required")
	}
	if in.DurationSeconds < 0 {
		return nil, apperr.Validation("durationSeconds must not be negative")
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

	ts := s.now()
	if in.Timestamp != nil && !in.Timestamp.IsZero() {
		ts = *in.Timestamp
	}
	row := &database.ActivityLog{
		DeviceID:        device.ID,
		Timestamp:       ts.UTC(),
		LocalTimestamp:  in.LocalTimestamp,
		AppName:         strings.TrimSpace(in.AppName),
		WindowTitle:     in.WindowTitle,
		DurationSeconds: in.DurationSeconds,
		ExecutablePath:  in.ExecutablePath,
		ScreenTime:      in.ScreenTime,
	}
	if err := s.activity.Create(ctx, row); err != nil {
		return nil, apperr.Internal("failed to store activity", err)
	}
	s.resolver.Touch(ctx, device.ID)

	logger.Telemetry.Debug().
		Uint("device_id", device.ID).
		Str("app", row.AppName).
		Int("duration", row.DurationSeconds).
		Bool("screen_time", row.ScreenTime).
		Msg("activity recorded")
	return row, nil
}

// RecentActivity returns the newest rows across all devices.
func (s *Service) RecentActivity(ctx context.Context, limit int) ([]database.ActivityLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = s.opts.RecentLimit
	}
	logs, err := s.activity.Recent(ctx, limit)
	if err != nil {
		return nil, apperr.Internal("failed to load activity", err)
	}
	return logs, nil
}

// Scope selects the devices a summary covers. All zero means every device.
type Scope struct {
	DeviceID   int64
	DeviceUUID string
	ChildID    int64
}

// DailyComparison computes per logical app usage for one calendar day.
// An empty date means today.
func (s *Service) DailyComparison(ctx context.Context, scope Scope, date string) (*DailyComparison, error) {
	q, label, err := s.activityScope(ctx, scope, date)
	if err != nil {
		return nil, err
	}
	logs, err := s.activity.InRange(ctx, q)
	if err != nil {
		return nil, apperr.Internal("failed to load activity", err)
	}
	apps, summary := Aggregate(logs)
	return &DailyComparison{Date: label, Apps: apps, Summary: summary}, nil
}

type ScreenTimeTotal struct {
	Date                      string `json:"date"`
	TotalScreenTimeSeconds    int64  `json:"totalScreenTimeSeconds"`
	TotalScreenTimeFormatted  string `json:"totalScreenTimeFormatted"`
	TotalFocusedTimeSeconds   int64  `json:"totalFocusedTimeSeconds"`
	TotalFocusedTimeFormatted string `json:"totalFocusedTimeFormatted"`
	TotalTimeSeconds          int64  `json:"totalTimeSeconds"`
}

// ScreenTimeTotal sums focused and screen seconds for one calendar day.
func (s *Service) ScreenTimeTotal(ctx context.Context, scope Scope, date string) (*ScreenTimeTotal, error) {
	q, label, err := s.activityScope(ctx, scope, date)
	if err != nil {
		return nil, err
	}
	focused, screen, err := s.activity.SumDuration(ctx, q)
	if err != nil {
		return nil, apperr.Internal("failed to sum activity", err)
	}
	return &ScreenTimeTotal{
		Date:                      label,
		TotalScreenTimeSeconds:    screen,
		TotalScreenTimeFormatted:  FormatDuration(screen),
		TotalFocusedTimeSeconds:   focused,
		TotalFocusedTimeFormatted: FormatDuration(focused),
		TotalTimeSeconds:          focused + screen,
	}, nil
}

func (s *Service) activityScope(ctx context.Context, scope Scope, date string) (database.ActivityScope, string, error) {
	start, err := s.dayStart(date)
	if err != nil {
		return database.ActivityScope{}, "", err
	}
	ids, err := s.scopeDevices(ctx, scope)
	if err != nil {
		return database.ActivityScope{}, "", err
	}
	return database.ActivityScope{
		DeviceIDs: ids,
		Start:     start.UTC(),
		End:       start.AddDate(0, 0, 1).UTC(),
	}, start.Format("2006-01-02"), nil
}

// dayStart returns local midnight of date, or of today when date is empty.
func (s *Service) dayStart(date string) (time.Time, error) {
	loc := s.opts.Location
	date = strings.TrimSpace(date)
	if date == "" {
		now := s.now().In(loc)
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc), nil
	}
	d, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, apperr.Validationf("invalid date %q, expected YYYY-MM-DD", date)
	}
	return d, nil
}

// scopeDevices returns nil for the global scope and a possibly empty list
// otherwise.
func (s *Service) scopeDevices(ctx context.Context, scope Scope) ([]uint, error) {
	switch {
	case scope.DeviceID > 0:
		d, err := s.resolver.ByID(ctx, scope.DeviceID)
		if err != nil {
			return nil, err
		}
		return []uint{d.ID}, nil
	case strings.TrimSpace(scope.DeviceUUID) != "":
		d, err := s.resolver.ByUUID(ctx, scope.DeviceUUID)
		if err != nil {
			return nil, err
		}
		return []uint{d.ID}, nil
	case scope.ChildID > 0:
		ids, err := s.devices.IDsByChild(ctx, uint(scope.ChildID))
		if err != nil {
			return nil, apperr.Internal("failed to load child devices", err)
		}
		if ids == nil {
			ids = []uint{}
		}
		return ids, nil
	default:
		return nil, nil
	}
}
