// Package identity maps the identifiers an agent reports (device id, MAC,
// UUID, machine name) to one canonical device row.
package identity

import (
	"context"
	"strings"
	"time"

	"zyberhero/internal/apperr"
	"zyberhero/internal/database"
	"zyberhero/internal/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Identifier is the tuple an inbound request may carry. Zero values mean absent.
type Identifier struct {
	DeviceID    int64
	DeviceUUID  string
	MACAddress  string
	MachineName string
}

// Registration is the payload of a device check-in.
type Registration struct {
	MACAddress  string
	DeviceUUID  string
	MachineName string
	UserName    string
	OS          string
	ChildID     int64
}

type Resolver struct {
	devices *database.DeviceRepo
	now     func() time.Time
	newUUID func() string
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{
		devices: database.NewDeviceRepo(db),
		now:     func() time.Time { return time.Now().UTC() },
		newUUID: uuid.NewString,
	}
}

// Register creates the device for a new MAC or updates the existing one.
// Concurrent registrations of one MAC resolve to a single row.
func (r *Resolver) Register(ctx context.Context, reg Registration) (*database.Device, error) {
	mac := strings.TrimSpace(reg.MACAddress)
	if mac == "" {
		return nil, apperr.Validation("macAddress is required")
	}

	in := database.DeviceUpsert{
		MACAddress:   mac,
		DeviceUUID:   strings.TrimSpace(reg.DeviceUUID),
		UUIDExplicit: strings.TrimSpace(reg.DeviceUUID) != "",
		MachineName:  optional(reg.MachineName),
		UserName:     optional(reg.UserName),
		OS:           optional(reg.OS),
		SeenAt:       r.now(),
	}
	if !in.UUIDExplicit {
		in.DeviceUUID = r.newUUID()
	}
	if reg.ChildID > 0 {
		id := uint(reg.ChildID)
		in.ChildID = &id
	}

	d, err := r.devices.UpsertByMAC(ctx, in)
	if database.IsUniqueViolation(err) {
		// the row now exists; apply the registration as a plain update
		logger.Device.Debug().Str("mac", mac).Msg("registration raced, retrying as update")
		d, err = r.devices.UpdateByMAC(ctx, in)
	}
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperr.Conflict("device registration conflict", err)
		}
		return nil, apperr.Internal("device registration failed", err)
	}

	logger.Device.Info().
		Uint("device_id", d.ID).
		Str("mac", mac).
		Str("device_uuid", d.DeviceUUID).
		Msg("device registered")
	return d, nil
}

// Resolve applies the lookup order id > MAC > UUID > machine name. Only the
// MAC path creates a device.
func (r *Resolver) Resolve(ctx context.Context, id Identifier) (*database.Device, error) {
	switch {
	case id.DeviceID > 0:
		return r.ByID(ctx, id.DeviceID)
	case strings.TrimSpace(id.MACAddress) != "":
		return r.Register(ctx, Registration{
			MACAddress:  id.MACAddress,
			DeviceUUID:  id.DeviceUUID,
			MachineName: id.MachineName,
		})
	case strings.TrimSpace(id.DeviceUUID) != "":
		return r.lookup(r.devices.FindByUUID(ctx, strings.TrimSpace(id.DeviceUUID)))
	case strings.TrimSpace(id.MachineName) != "":
		return r.lookup(r.devices.FindByMachineName(ctx, strings.TrimSpace(id.MachineName)))
	default:
		return nil, apperr.MissingIdentifier()
	}
}

// ByID is a direct reference; a missing row is NotFound.
func (r *Resolver) ByID(ctx context.Context, id int64) (*database.Device, error) {
	if id <= 0 {
		return nil, apperr.InvalidID("deviceId must be a positive integer")
	}
	d, err := r.devices.FindByID(ctx, uint(id))
	if database.IsNotFound(err) {
		return nil, apperr.NotFound("device not found")
	}
	if err != nil {
		return nil, apperr.Internal("device lookup failed", err)
	}
	return d, nil
}

// ByMAC looks a device up without registering it.
func (r *Resolver) ByMAC(ctx context.Context, mac string) (*database.Device, error) {
	mac = strings.TrimSpace(mac)
	if mac == "" {
		return nil, apperr.MissingIdentifier()
	}
	return r.lookup(r.devices.FindByMAC(ctx, mac))
}

// ByUUID looks a device up by UUID without registering it.
func (r *Resolver) ByUUID(ctx context.Context, deviceUUID string) (*database.Device, error) {
	deviceUUID = strings.TrimSpace(deviceUUID)
	if deviceUUID == "" {
		return nil, apperr.MissingIdentifier()
	}
	return r.lookup(r.devices.FindByUUID(ctx, deviceUUID))
}

// Touch refreshes lastSeen. Failures are logged, never returned.
func (r *Resolver) Touch(ctx context.Context, deviceID uint) {
	if err := r.devices.Touch(ctx, deviceID, r.now()); err != nil {
		logger.Device.Warn().Err(err).Uint("device_id", deviceID).Msg("failed to refresh last seen")
	}
}

// List returns every device, most recently seen first.
func (r *Resolver) List(ctx context.Context) ([]database.Device, error) {
	devices, err := r.devices.List(ctx)
	if err != nil {
		return nil, apperr.Internal("device list failed", err)
	}
	return devices, nil
}

// Unassigned returns devices not linked to a child.
func (r *Resolver) Unassigned(ctx context.Context) ([]database.Device, error) {
	devices, err := r.devices.ListUnassigned(ctx)
	if err != nil {
		return nil, apperr.Internal("device list failed", err)
	}
	return devices, nil
}

func (r *Resolver) lookup(d *database.Device, err error) (*database.Device, error) {
	if database.IsNotFound(err) {
		return nil, apperr.DeviceNotRegistered()
	}
	if err != nil {
		return nil, apperr.Internal("device lookup failed", err)
	}
	return d, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
