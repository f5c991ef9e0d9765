// Package location records GPS fixes reported by agents and evaluates them
// against per-child safe zones.
package location

import (
	"context"
	"strings"
	"time"

	"zyberhero/internal/apperr"
	"zyberhero/internal/constants"
	"zyberhero/internal/database"
	"zyberhero/internal/identity"
	"zyberhero/internal/logger"

	"gorm.io/gorm"
)

// MaxHistoryLimit caps one history read.
const MaxHistoryLimit = 1000

// Publisher pushes events to dashboard subscribers.
type Publisher interface {
	Broadcast(channel, msgType string, data interface{})
}

type Options struct {
	HistoryLimit int
	// Location sets calendar day boundaries for history filters; nil means time.Local.
	Location *time.Location
}

type Fix struct {
	// Device is matched by id or MAC address only.
	Device    identity.Identifier
	Latitude  *float64
	Longitude *float64
	Accuracy  *float64
	Altitude  *float64
	Timestamp *time.Time
}

type HistoryQuery struct {
	Limit int
	// Date is an optional YYYY-MM-DD day filter.
	Date string
}

type Tracker struct {
	resolver  *identity.Resolver
	locations *database.LocationRepo
	zones     *database.SafeZoneRepo
	children  *database.ChildRepo
	events    Publisher
	opts      Options
	now       func() time.Time
}

func NewTracker(db *gorm.DB, resolver *identity.Resolver, events Publisher, opts Options) *Tracker {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 100
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Tracker{
		resolver:  resolver,
		locations: database.NewLocationRepo(db),
		zones:     database.NewSafeZoneRepo(db),
		children:  database.NewChildRepo(db),
		events:    events,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Record appends a fix. The device must already be registered.
func (t *Tracker) Record(ctx context.Context, in Fix) (*database.Location, error) {
	if in.Latitude == nil || in.Longitude == nil {
		return nil, apperr.Validation("latitude and longitude are required")
	}
	if !validCoordinates(*in.Latitude, *in.Longitude) {
		return nil, apperr.Validation("latitude or longitude out of range")
	}

	var (
		device *database.Device
		err    error
	)
	switch {
	case in.Device.DeviceID > 0:
		device, err = t.resolver.ByID(ctx, in.Device.DeviceID)
	case strings.TrimSpace(in.Device.MACAddress) != "":
		device, err = t.resolver.ByMAC(ctx, in.Device.MACAddress)
	default:
		err = apperr.Validation("macAddress is required")
	}
	if err != nil {
		return nil, err
	}

	ts := t.now()
	if in.Timestamp != nil && !in.Timestamp.IsZero() {
		ts = in.Timestamp.UTC()
	}
	loc := &database.Location{
		DeviceID:  device.ID,
		Latitude:  *in.Latitude,
		Longitude: *in.Longitude,
		Accuracy:  in.Accuracy,
		Altitude:  in.Altitude,
		Timestamp: ts,
	}
	if err := t.locations.Create(ctx, loc); err != nil {
		return nil, apperr.Internal("failed to store location", err)
	}
	t.resolver.Touch(ctx, device.ID)

	logger.Location.Debug().Uint("device_id", device.ID).Uint("id", loc.ID).Msg("location recorded")
	if t.events != nil {
		t.events.Broadcast(constants.ChannelDevices, constants.EventLocationUpdated, loc)
	}
	return loc, nil
}

// Latest returns the newest fix of a device.
func (t *Tracker) Latest(ctx context.Context, dev identity.Identifier) (*database.Location, error) {
	device, err := t.device(ctx, dev)
	if err != nil {
		return nil, err
	}
	return t.latest(ctx, device.ID)
}

func (t *Tracker) latest(ctx context.Context, deviceID uint) (*database.Location, error) {
	loc, err := t.locations.Latest(ctx, deviceID)
	if database.IsNotFound(err) {
		return nil, apperr.NotFound("No location data found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load location", err)
	}
	return loc, nil
}

// History returns fixes newest first. An empty result is not an error.
func (t *Tracker) History(ctx context.Context, dev identity.Identifier, q HistoryQuery) ([]database.Location, error) {
	device, err := t.device(ctx, dev)
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = t.opts.HistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	var start, end *time.Time
	if d := strings.TrimSpace(q.Date); d != "" {
		day, err := time.ParseInLocation("2006-01-02", d, t.opts.Location)
		if err != nil {
			return nil, apperr.Validationf("invalid date %q, expected YYYY-MM-DD", d)
		}
		s, e := day.UTC(), day.AddDate(0, 0, 1).UTC()
		start, end = &s, &e
	}

	locs, err := t.locations.History(ctx, device.ID, start, end, limit)
	if err != nil {
		return nil, apperr.Internal("failed to load location history", err)
	}
	if locs == nil {
		locs = []database.Location{}
	}
	return locs, nil
}

func (t *Tracker) device(ctx context.Context, dev identity.Identifier) (*database.Device, error) {
	if dev.DeviceID <= 0 && strings.TrimSpace(dev.DeviceUUID) == "" {
		return nil, apperr.MissingIdentifier()
	}
	return t.resolver.Resolve(ctx, identity.Identifier{DeviceID: dev.DeviceID, DeviceUUID: dev.DeviceUUID})
}
